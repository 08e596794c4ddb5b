// Package extractor реализует внешних извлекателей медиа поверх
// yt-dlp и реестр для их выбора по сервису.
package extractor

import (
	"tg-media-bot/internal/domain"
)

// Registry хранит извлекатели по сервисам. Собирается один раз при
// старте процесса и дальше только читается.
type Registry struct {
	byPlatform map[domain.Platform]domain.Extractor
}

// NewRegistry создаёт пустой реестр.
func NewRegistry() *Registry {
	return &Registry{byPlatform: make(map[domain.Platform]domain.Extractor)}
}

// Register привязывает извлекатель к сервису.
func (r *Registry) Register(platform domain.Platform, ex domain.Extractor) {
	r.byPlatform[platform] = ex
}

// Lookup возвращает извлекатель сервиса.
func (r *Registry) Lookup(platform domain.Platform) (domain.Extractor, bool) {
	ex, ok := r.byPlatform[platform]
	return ex, ok
}
