package extractor

import (
	"testing"

	"github.com/rs/zerolog"

	"tg-media-bot/internal/domain"
)

func fptr(v float64) *float64 { return &v }
func iptr(v int) *int         { return &v }

func TestClassify(t *testing.T) {
	cases := []struct {
		output string
		want   domain.ErrorCode
	}{
		{"ERROR: Private video. Sign in if you've been granted access", codePrivate},
		{"ERROR: Sign in to confirm your age", codeAgeGate},
		{"ERROR: Video unavailable", codeUnavailable},
		{"HTTP Error 404: Not Found", codeUnavailable},
		{"ERROR: Unsupported URL: https://example.com", codeUnsupported},
		{"ERROR: Requested format is not available", codeNoFormat},
		{"urlopen error timed out", codeNetwork},
		{"что-то совсем другое", domain.CodeUnexpected},
	}
	for _, c := range cases {
		if got := classify(c.output); got != c.want {
			t.Fatalf("вывод %q: ожидали %s, получили %s", c.output, c.want, got)
		}
	}
}

func TestDescribeFallsBack(t *testing.T) {
	y := New(domain.PlatformYouTube, "", zerolog.Nop())
	if desc := y.Describe(codePrivate); desc != codeDescriptions[codePrivate] {
		t.Fatalf("ожидали описание из таблицы, получили %q", desc)
	}
	if desc := y.Describe("NO_SUCH_CODE"); desc != codeDescriptions[domain.CodeUnexpected] {
		t.Fatalf("незнакомый код должен падать в общее описание, получили %q", desc)
	}
}

func TestToMediaSplitsFormats(t *testing.T) {
	info := ytdlpInfo{
		Title:    "пример",
		Uploader: "автор",
		Duration: fptr(61.5),
		Formats: []ytdlpFormat{
			{FormatID: "137", URL: "https://cdn/v137", Width: iptr(1920), Height: iptr(1080), TBR: fptr(4000), VCodec: "avc1", ACodec: "none"},
			{FormatID: "18", URL: "https://cdn/v18", Width: iptr(640), Height: iptr(360), TBR: fptr(500), VCodec: "avc1", ACodec: "mp4a"},
			{FormatID: "251", URL: "https://cdn/a251", ABR: fptr(160), VCodec: "none", ACodec: "opus"},
			{FormatID: "meta", VCodec: "avc1"}, // без ссылки — пропускается
		},
		Thumbnails: []ytdlpThumbnail{
			{ID: "0", URL: "https://img/0.jpg", Width: iptr(120), Height: iptr(90)},
			{URL: "https://img/1.jpg", Width: iptr(1280), Height: iptr(720)},
		},
	}

	media := info.toMedia("https://youtu.be/abc", domain.PlatformYouTube)

	if !media.IsVideo || media.IsImage {
		t.Fatalf("результат с видеоформатами должен быть видео")
	}
	if media.Title != "пример" || media.AuthorName != "автор" {
		t.Fatalf("метаданные потеряны: %+v", media)
	}
	if len(media.Videos) != 2 {
		t.Fatalf("ожидали 2 видео, получили %d", len(media.Videos))
	}
	if media.Videos[0].HasAudio {
		t.Fatalf("формат 137 без аудиодорожки")
	}
	if !media.Videos[1].HasAudio {
		t.Fatalf("формат 18 со звуком")
	}
	if len(media.Audios) != 1 || media.Audios[0].ID != "251" {
		t.Fatalf("ожидали одну аудиодорожку 251: %+v", media.Audios)
	}
	if got := *media.Audios[0].Bitrate; got != 160 {
		t.Fatalf("битрейт аудио берётся из abr, получили %d", got)
	}
	if got := *media.Videos[0].DurationSeconds; got != 61 {
		t.Fatalf("длительность округляется вниз, получили %d", got)
	}

	if len(media.Thumbnails) != 2 {
		t.Fatalf("ожидали 2 превью, получили %d", len(media.Thumbnails))
	}
	// Превью без идентификатора получает позиционный.
	if media.Thumbnails[1].ID != "thumb-1" {
		t.Fatalf("ожидали thumb-1, получили %q", media.Thumbnails[1].ID)
	}
}

func TestToMediaAudioOnly(t *testing.T) {
	info := ytdlpInfo{
		Formats: []ytdlpFormat{
			{FormatID: "251", URL: "https://cdn/a", ABR: fptr(160), ACodec: "opus", VCodec: "none"},
		},
	}
	media := info.toMedia("u", domain.PlatformYouTube)
	if media.IsVideo {
		t.Fatalf("результат без видеоформатов не должен быть видео")
	}
	if len(media.Audios) != 1 {
		t.Fatalf("ожидали одну аудиодорожку")
	}
}

func TestRegistryLookup(t *testing.T) {
	registry := NewRegistry()
	y := New(domain.PlatformYouTube, "", zerolog.Nop())
	registry.Register(domain.PlatformYouTube, y)

	if got, ok := registry.Lookup(domain.PlatformYouTube); !ok || got != domain.Extractor(y) {
		t.Fatalf("ожидали зарегистрированный извлекатель")
	}
	if _, ok := registry.Lookup(domain.PlatformReddit); ok {
		t.Fatalf("не ожидали извлекатель для незарегистрированного сервиса")
	}
}
