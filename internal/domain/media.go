package domain

import (
	"errors"
	"fmt"
	"strings"
)

// RenditionKind описывает вид скачиваемого варианта медиа.
type RenditionKind string

const (
	KindVideo     RenditionKind = "video"
	KindAudio     RenditionKind = "audio"
	KindImage     RenditionKind = "image"
	KindThumbnail RenditionKind = "thumbnail"
)

// Rendition — один конкретный вариант медиа (разрешение/битрейт/язык).
// Идентификатор уникален в пределах одного результата извлечения и
// неизменяем после создания.
type Rendition struct {
	ID              string `json:"id"`
	SourceURL       string `json:"url"`
	DisplayName     string `json:"name"`
	Width           *int   `json:"width,omitempty"`
	Height          *int   `json:"height,omitempty"`
	FPS             *int   `json:"fps,omitempty"`
	Bitrate         *int   `json:"total_bitrate,omitempty"`
	HasAudio        bool   `json:"has_audio,omitempty"`
	Language        string `json:"language,omitempty"`
	LanguagePref    *int   `json:"language_preference,omitempty"`
	DurationSeconds *int   `json:"duration,omitempty"`
	Caption         string `json:"caption,omitempty"`
}

// MediaInfo — результат успешного извлечения по одной ссылке.
// Создаётся один раз и не мутируется: повторное извлечение порождает
// новый MediaInfo, замещающий копии в кэше и сессии.
type MediaInfo struct {
	OriginURL  string      `json:"url"`
	Platform   Platform    `json:"platform"`
	Title      string      `json:"title,omitempty"`
	AuthorName string      `json:"author_name,omitempty"`
	IsVideo    bool        `json:"is_video"`
	IsImage    bool        `json:"is_image"`
	Videos     []Rendition `json:"videos,omitempty"`
	Audios     []Rendition `json:"audios,omitempty"`
	Images     []Rendition `json:"images,omitempty"`
	Thumbnails []Rendition `json:"thumbnails,omitempty"`
}

// FindRendition ищет вариант по виду и идентификатору только внутри
// коллекций этого результата. Глобального поиска по id нет намеренно:
// ссылка на чужой результат — это устаревший callback.
func (m MediaInfo) FindRendition(kind RenditionKind, id string) (Rendition, bool) {
	var list []Rendition
	switch kind {
	case KindVideo:
		list = m.Videos
	case KindAudio:
		list = m.Audios
	case KindImage:
		list = m.Images
	case KindThumbnail:
		list = m.Thumbnails
	default:
		return Rendition{}, false
	}
	for _, r := range list {
		if r.ID == id {
			return r, true
		}
	}
	return Rendition{}, false
}

// Session — состояние диалога с пользователем после успешного извлечения.
type Session struct {
	ChatID    int64     `json:"chat_id"`
	OriginURL string    `json:"url"`
	Platform  Platform  `json:"platform"`
	Media     MediaInfo `json:"media_data"`
}

// LeaseKind — вид пользовательской активности, ограниченной single-flight.
type LeaseKind string

const (
	LeaseExtract  LeaseKind = "extract"
	LeaseDownload LeaseKind = "download"
)

// ActivityLease — маркер выполняющейся операции пользователя.
// Само наличие записи означает «занято»; TTL служит предохранителем
// от зависших задач.
type ActivityLease struct {
	ChatID    int64     `json:"chat_id"`
	Kind      LeaseKind `json:"kind"`
	OriginURL string    `json:"url"`
	Platform  Platform  `json:"platform"`
}

// ErrBadChoice возвращается при нераспознаваемом callback от кнопки.
var ErrBadChoice = errors.New("некорректный выбор варианта")

// ParseChoice разбирает callback вида "{kind}:{renditionId}".
func ParseChoice(data string) (RenditionKind, string, error) {
	kindRaw, id, ok := strings.Cut(data, ":")
	if !ok || id == "" {
		return "", "", fmt.Errorf("%w: %q", ErrBadChoice, data)
	}
	kind := RenditionKind(kindRaw)
	switch kind {
	case KindVideo, KindAudio, KindImage, KindThumbnail:
		return kind, id, nil
	}
	return "", "", fmt.Errorf("%w: неизвестный вид %q", ErrBadChoice, kindRaw)
}
