package extractor

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/lrstanley/go-ytdlp"
	"github.com/rs/zerolog"

	"tg-media-bot/internal/domain"
	"tg-media-bot/internal/infra/metrics"
)

// YTDLP — извлекатель одного сервиса поверх бинаря yt-dlp. Один и тот
// же код обслуживает все сервисы; различие — в имени сервиса для
// логов/метрик и, при необходимости, в файле cookies.
type YTDLP struct {
	platform   domain.Platform
	cookiePath string
	log        zerolog.Logger
}

// New создаёт извлекатель сервиса.
func New(platform domain.Platform, cookiePath string, log zerolog.Logger) *YTDLP {
	return &YTDLP{platform: platform, cookiePath: cookiePath, log: log}
}

// ExtractInfo запрашивает метаданные без скачивания и строит из них
// неизменяемый результат извлечения.
func (y *YTDLP) ExtractInfo(ctx context.Context, url string) domain.ExtractResult {
	cmd := ytdlp.New().
		SkipDownload().
		NoPlaylist().
		DumpSingleJSON()
	if y.cookiePath != "" {
		cmd = cmd.Cookies(y.cookiePath)
	}

	start := time.Now()
	res, err := cmd.Run(ctx, url)
	metrics.ObserveNetworkRequest("ytdlp", "extract_info", string(y.platform), start, err)
	if err != nil {
		output := err.Error()
		if res != nil {
			output += "\n" + res.Stderr
		}
		code := classify(output)
		y.log.Warn().Str("url", url).Str("code", string(code)).Msg("ytdlp: извлечение не удалось")
		return domain.ExtractResult{Status: domain.StatusError, Code: code, Context: output}
	}

	var info ytdlpInfo
	if err := json.Unmarshal([]byte(res.Stdout), &info); err != nil {
		y.log.Error().Err(err).Str("url", url).Msg("ytdlp: не удалось разобрать метаданные")
		return domain.ExtractResult{Status: domain.StatusError, Code: domain.CodeUnexpected, Context: err.Error()}
	}

	media := info.toMedia(url, y.platform)
	return domain.ExtractResult{Status: domain.StatusSuccess, Code: domain.CodeSuccess, Media: &media}
}

// Download скачивает вариант по его идентификатору формата в
// указанный каталог и возвращает локальный путь файла.
func (y *YTDLP) Download(ctx context.Context, url, renditionID, outputDir string) domain.DownloadResult {
	cmd := ytdlp.New().
		Format(renditionID).
		ForceOverwrites().
		RestrictFilenames().
		NoPlaylist().
		Output(filepath.Join(outputDir, "%(id)s.%(format_id)s.%(ext)s"))
	if y.cookiePath != "" {
		cmd = cmd.Cookies(y.cookiePath)
	}

	start := time.Now()
	res, err := cmd.Run(ctx, url)
	metrics.ObserveNetworkRequest("ytdlp", "download", string(y.platform), start, err)
	if err != nil {
		output := err.Error()
		if res != nil {
			output += "\n" + res.Stderr
		}
		code := classify(output)
		y.log.Warn().Str("url", url).Str("code", string(code)).Msg("ytdlp: загрузка не удалась")
		return domain.DownloadResult{Status: domain.StatusError, Code: code, Context: output}
	}

	path := extractedPath(res)
	if path == "" {
		y.log.Error().Str("url", url).Msg("ytdlp: результат без имени файла")
		return domain.DownloadResult{Status: domain.StatusError, Code: domain.CodeUnexpected, Context: "download finished without filename"}
	}
	return domain.DownloadResult{Status: domain.StatusSuccess, Code: domain.CodeSuccess, LocalPath: path}
}

// Describe переводит код ошибки в человекочитаемую причину.
func (y *YTDLP) Describe(code domain.ErrorCode) string {
	if desc, ok := codeDescriptions[code]; ok {
		return desc
	}
	return codeDescriptions[domain.CodeUnexpected]
}

func extractedPath(res *ytdlp.Result) string {
	if res == nil {
		return ""
	}
	info, err := res.GetExtractedInfo()
	if err != nil || len(info) == 0 {
		return ""
	}
	if info[0].Filename != nil {
		return *info[0].Filename
	}
	return ""
}

// ytdlpInfo — подмножество вывода yt-dlp --dump-single-json.
type ytdlpInfo struct {
	ID         string           `json:"id"`
	Title      string           `json:"title"`
	Uploader   string           `json:"uploader"`
	Channel    string           `json:"channel"`
	Duration   *float64         `json:"duration"`
	Formats    []ytdlpFormat    `json:"formats"`
	Thumbnails []ytdlpThumbnail `json:"thumbnails"`
}

type ytdlpFormat struct {
	FormatID     string   `json:"format_id"`
	FormatNote   string   `json:"format_note"`
	URL          string   `json:"url"`
	Ext          string   `json:"ext"`
	Width        *int     `json:"width"`
	Height       *int     `json:"height"`
	FPS          *float64 `json:"fps"`
	TBR          *float64 `json:"tbr"`
	ABR          *float64 `json:"abr"`
	ACodec       string   `json:"acodec"`
	VCodec       string   `json:"vcodec"`
	Language     string   `json:"language"`
	LanguagePref *int     `json:"language_preference"`
}

type ytdlpThumbnail struct {
	ID     string `json:"id"`
	URL    string `json:"url"`
	Width  *int   `json:"width"`
	Height *int   `json:"height"`
}

func (f ytdlpFormat) hasVideo() bool {
	return f.VCodec != "" && f.VCodec != "none"
}

func (f ytdlpFormat) hasAudio() bool {
	return f.ACodec != "" && f.ACodec != "none"
}

func (f ytdlpFormat) displayName() string {
	if f.FormatNote != "" {
		return f.FormatNote
	}
	return f.FormatID
}

func (info ytdlpInfo) toMedia(url string, platform domain.Platform) domain.MediaInfo {
	media := domain.MediaInfo{
		OriginURL:  url,
		Platform:   platform,
		Title:      info.Title,
		AuthorName: info.author(),
	}

	duration := floatToInt(info.Duration)

	for _, f := range info.Formats {
		if f.URL == "" {
			continue
		}
		switch {
		case f.hasVideo():
			media.Videos = append(media.Videos, domain.Rendition{
				ID:              f.FormatID,
				SourceURL:       f.URL,
				DisplayName:     f.displayName(),
				Width:           f.Width,
				Height:          f.Height,
				FPS:             floatToInt(f.FPS),
				Bitrate:         floatToInt(f.TBR),
				HasAudio:        f.hasAudio(),
				Language:        f.Language,
				LanguagePref:    f.LanguagePref,
				DurationSeconds: duration,
			})
		case f.hasAudio():
			bitrate := f.ABR
			if bitrate == nil {
				bitrate = f.TBR
			}
			media.Audios = append(media.Audios, domain.Rendition{
				ID:              f.FormatID,
				SourceURL:       f.URL,
				DisplayName:     f.displayName(),
				Bitrate:         floatToInt(bitrate),
				Language:        f.Language,
				LanguagePref:    f.LanguagePref,
				DurationSeconds: duration,
			})
		}
	}

	for i, t := range info.Thumbnails {
		if t.URL == "" {
			continue
		}
		id := t.ID
		if id == "" {
			id = fmt.Sprintf("thumb-%d", i)
		}
		media.Thumbnails = append(media.Thumbnails, domain.Rendition{
			ID:          id,
			SourceURL:   t.URL,
			DisplayName: "preview",
			Width:       t.Width,
			Height:      t.Height,
		})
	}

	media.IsVideo = len(media.Videos) > 0
	media.IsImage = !media.IsVideo && len(media.Images) > 0
	return media
}

func (info ytdlpInfo) author() string {
	if info.Uploader != "" {
		return info.Uploader
	}
	return info.Channel
}

func floatToInt(f *float64) *int {
	if f == nil {
		return nil
	}
	v := int(*f)
	return &v
}
