package domain

import (
	"context"
	"time"
)

// Имена очередей. Извлечение лёгкое и читающее, поэтому общая очередь;
// загрузки изолируются по сервисам, чтобы деградация одного сервиса не
// задерживала остальные. Аудио-загрузки делят одну очередь.
const (
	LaneInformation = "information_queue"
	LaneAudio       = "audio_queue"
)

// VideoLane возвращает имя сервисной очереди загрузок.
func VideoLane(platform Platform) string {
	return string(platform) + "_queue"
}

// DownloadLaneFor возвращает имя очереди для задачи загрузки.
func DownloadLaneFor(job DownloadJob) string {
	if job.Kind == KindAudio {
		return LaneAudio
	}
	return VideoLane(job.Platform)
}

// Версии форматов задач. Поля добавляются только с ростом версии,
// чтобы издатель и исполнитель не разъезжались молча.
const (
	ExtractJobVersion  = 1
	DownloadJobVersion = 1
)

// ExtractJob — самодостаточные параметры задачи извлечения метаданных.
type ExtractJob struct {
	Version     int       `json:"v"`
	ID          string    `json:"job_id"`
	ChatID      int64     `json:"chat_id"`
	URL         string    `json:"url"`
	Platform    Platform  `json:"platform"`
	RequestedAt time.Time `json:"requested_at"`
}

// DownloadJob — самодостаточные параметры задачи загрузки. Помимо
// идентификатора варианта переносит поля дескриптора, нужные
// исполнителю, чтобы не ходить за сессией второй раз.
type DownloadJob struct {
	Version     int           `json:"v"`
	ID          string        `json:"job_id"`
	ChatID      int64         `json:"chat_id"`
	URL         string        `json:"url"`
	Platform    Platform      `json:"platform"`
	Kind        RenditionKind `json:"kind"`
	RenditionID string        `json:"rendition_id"`
	SourceURL   string        `json:"source_url,omitempty"`
	DisplayName string        `json:"name,omitempty"`
	Height      int           `json:"height,omitempty"`
	OutputHint  string        `json:"output_hint,omitempty"`
	RequestedAt time.Time     `json:"requested_at"`
}

// AckFunc подтверждает обработку задачи или возвращает её в очередь.
type AckFunc func(success bool) error

// ExtractQueue — очередь задач извлечения.
type ExtractQueue interface {
	Enqueue(ctx context.Context, job ExtractJob) error
	Receive(ctx context.Context) (ExtractJob, AckFunc, error)
}

// DownloadQueue — очередь задач загрузки одной конкретной линии.
type DownloadQueue interface {
	Enqueue(ctx context.Context, job DownloadJob) error
	Receive(ctx context.Context) (DownloadJob, AckFunc, error)
}

// DownloadDispatcher маршрутизирует задачу загрузки в её линию.
// Отправка неблокирующая: завершение наблюдается только через
// уведомления исполнителя.
type DownloadDispatcher interface {
	Dispatch(ctx context.Context, job DownloadJob) error
}
