// Package selector содержит чистые детерминированные алгоритмы выбора
// вариантов медиа: группировку видео по качеству, выбор лучшей
// аудиодорожки и лучшего превью.
package selector

import (
	"fmt"
	"sort"

	"tg-media-bot/internal/domain"
)

// Ряды клавиатуры: видео и изображения в первом, аудио во втором,
// превью в третьем.
const (
	RowMedia   = 1
	RowAudio   = 2
	RowPreview = 3
)

// Button — готовая кнопка предложения.
type Button struct {
	Row      int
	Label    string
	Callback string
	URL      string
}

func intVal(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}

// betterVideo сравнивает кандидатов одной корзины: сначала наличие
// аудиодорожки, затем языковой приоритет, затем битрейт.
func betterVideo(a, b domain.Rendition) bool {
	if a.HasAudio != b.HasAudio {
		return a.HasAudio
	}
	if intVal(a.LanguagePref) != intVal(b.LanguagePref) {
		return intVal(a.LanguagePref) > intVal(b.LanguagePref)
	}
	return intVal(a.Bitrate) > intVal(b.Bitrate)
}

// bucketKey возвращает ключ корзины качества: ширину, а если сервис
// её не заполняет — высоту. Кандидат без обоих измерений исключается
// из группировки.
func bucketKey(r domain.Rendition) (int, bool) {
	if r.Width != nil {
		return *r.Width, true
	}
	if r.Height != nil {
		return *r.Height, true
	}
	return 0, false
}

// VideoButtons группирует видео по разрешению и отдаёт по кнопке на
// корзину, от высокого качества к низкому. Единственная корзина
// сворачивается в одну кнопку без метки качества.
func VideoButtons(videos []domain.Rendition) []Button {
	if len(videos) == 0 {
		return nil
	}

	byQuality := make(map[int]domain.Rendition)
	for _, video := range videos {
		key, ok := bucketKey(video)
		if !ok {
			continue
		}
		best, exists := byQuality[key]
		if !exists || betterVideo(video, best) {
			byQuality[key] = video
		}
	}
	if len(byQuality) == 0 {
		return nil
	}

	qualities := make([]int, 0, len(byQuality))
	for q := range byQuality {
		qualities = append(qualities, q)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(qualities)))

	if len(qualities) == 1 {
		video := byQuality[qualities[0]]
		return []Button{{
			Row:      RowMedia,
			Label:    "🎬 Video",
			Callback: fmt.Sprintf("%s:%s", domain.KindVideo, video.ID),
		}}
	}

	buttons := make([]Button, 0, len(qualities))
	for _, q := range qualities {
		video := byQuality[q]
		label := fmt.Sprintf("🎬 %dp", q)
		if video.Height != nil {
			label = fmt.Sprintf("🎬 %dp", *video.Height)
		}
		if video.HasAudio {
			label += " 🔊"
		}
		buttons = append(buttons, Button{
			Row:      RowMedia,
			Label:    label,
			Callback: fmt.Sprintf("%s:%s", domain.KindVideo, video.ID),
		})
	}
	return buttons
}

// BestAudio выбирает единственную лучшую аудиодорожку по паре
// (языковой приоритет, битрейт); отсутствующие значения считаются
// нулём. Аудио не раскладывается по корзинам качества.
func BestAudio(audios []domain.Rendition) (domain.Rendition, bool) {
	if len(audios) == 0 {
		return domain.Rendition{}, false
	}
	best := audios[0]
	for _, candidate := range audios[1:] {
		if intVal(candidate.LanguagePref) != intVal(best.LanguagePref) {
			if intVal(candidate.LanguagePref) > intVal(best.LanguagePref) {
				best = candidate
			}
			continue
		}
		if intVal(candidate.Bitrate) > intVal(best.Bitrate) {
			best = candidate
		}
	}
	return best, true
}

// AudioButton отдаёт кнопку лучшей аудиодорожки, если она есть.
func AudioButton(audios []domain.Rendition) (Button, bool) {
	best, ok := BestAudio(audios)
	if !ok {
		return Button{}, false
	}
	return Button{
		Row:      RowAudio,
		Label:    "🎵 Audio",
		Callback: fmt.Sprintf("%s:%s", domain.KindAudio, best.ID),
		URL:      best.SourceURL,
	}, true
}

// BestThumbnail выбирает превью с наибольшей площадью. Сервисы обычно
// отдают превью по возрастанию качества, поэтому при равной площади
// побеждает более поздний кандидат.
func BestThumbnail(thumbnails []domain.Rendition) (domain.Rendition, bool) {
	if len(thumbnails) == 0 {
		return domain.Rendition{}, false
	}
	best := thumbnails[0]
	for _, candidate := range thumbnails[1:] {
		if area(candidate) >= area(best) {
			best = candidate
		}
	}
	return best, true
}

func area(r domain.Rendition) int {
	return intVal(r.Width) * intVal(r.Height)
}

// ThumbnailButton отдаёт кнопку лучшего превью, если оно есть.
func ThumbnailButton(thumbnails []domain.Rendition) (Button, bool) {
	best, ok := BestThumbnail(thumbnails)
	if !ok {
		return Button{}, false
	}
	return Button{
		Row:      RowPreview,
		Label:    "🖼️ Preview",
		Callback: fmt.Sprintf("%s:%s", domain.KindThumbnail, best.ID),
		URL:      best.SourceURL,
	}, true
}

// ImageButton группирует изображения по ширине и отдаёт одну кнопку
// лучшей группы. Кандидаты без ширины исключаются из группировки.
func ImageButton(images []domain.Rendition) (Button, bool) {
	if len(images) == 0 {
		return Button{}, false
	}

	byWidth := make(map[int][]domain.Rendition)
	for _, image := range images {
		if image.Width == nil {
			continue
		}
		byWidth[*image.Width] = append(byWidth[*image.Width], image)
	}
	if len(byWidth) == 0 {
		return Button{}, false
	}

	maxWidth := 0
	for width := range byWidth {
		if width > maxWidth {
			maxWidth = width
		}
	}
	group := byWidth[maxWidth]
	best := group[0]

	label := "🖼️ Image"
	if len(group) > 1 {
		label = "🖼️ Images"
	}
	return Button{
		Row:      RowMedia,
		Label:    label,
		Callback: fmt.Sprintf("%s:%s", domain.KindImage, best.ID),
		URL:      best.SourceURL,
	}, true
}
