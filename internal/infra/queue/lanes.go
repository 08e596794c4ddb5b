package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"tg-media-bot/internal/domain"
)

// ExtractLane — типизированная очередь задач извлечения поверх общей
// линии information_queue.
type ExtractLane struct {
	lane Lane
}

// NewExtractLane открывает линию извлечения.
func NewExtractLane(opener LaneOpener) (*ExtractLane, error) {
	lane, err := opener.Open(domain.LaneInformation)
	if err != nil {
		return nil, err
	}
	return &ExtractLane{lane: lane}, nil
}

// Enqueue публикует задачу извлечения.
func (q *ExtractLane) Enqueue(ctx context.Context, job domain.ExtractJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	return q.lane.Publish(ctx, payload)
}

// Receive блокирующе читает задачу извлечения.
func (q *ExtractLane) Receive(ctx context.Context) (domain.ExtractJob, domain.AckFunc, error) {
	payload, ack, err := q.lane.Receive(ctx)
	if err != nil {
		return domain.ExtractJob{}, nil, err
	}
	var job domain.ExtractJob
	if err := json.Unmarshal(payload, &job); err != nil {
		return domain.ExtractJob{}, ack, fmt.Errorf("decode job: %w", err)
	}
	return job, ack, nil
}

// DownloadLane — типизированная очередь задач загрузки одной линии.
type DownloadLane struct {
	lane Lane
	name string
}

// NewDownloadLane открывает линию загрузки по имени.
func NewDownloadLane(opener LaneOpener, name string) (*DownloadLane, error) {
	lane, err := opener.Open(name)
	if err != nil {
		return nil, err
	}
	return &DownloadLane{lane: lane, name: name}, nil
}

// Name возвращает имя линии.
func (q *DownloadLane) Name() string { return q.name }

// Enqueue публикует задачу загрузки.
func (q *DownloadLane) Enqueue(ctx context.Context, job domain.DownloadJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	return q.lane.Publish(ctx, payload)
}

// Receive блокирующе читает задачу загрузки.
func (q *DownloadLane) Receive(ctx context.Context) (domain.DownloadJob, domain.AckFunc, error) {
	payload, ack, err := q.lane.Receive(ctx)
	if err != nil {
		return domain.DownloadJob{}, nil, err
	}
	var job domain.DownloadJob
	if err := json.Unmarshal(payload, &job); err != nil {
		return domain.DownloadJob{}, ack, fmt.Errorf("decode job: %w", err)
	}
	return job, ack, nil
}

// Dispatcher маршрутизирует задачи загрузки по линиям. Линии
// открываются лениво и переиспользуются.
type Dispatcher struct {
	opener LaneOpener

	mu    sync.Mutex
	lanes map[string]*DownloadLane
}

// NewDispatcher создаёт маршрутизатор.
func NewDispatcher(opener LaneOpener) *Dispatcher {
	return &Dispatcher{opener: opener, lanes: make(map[string]*DownloadLane)}
}

// Dispatch публикует задачу в линию, соответствующую её виду и сервису.
func (d *Dispatcher) Dispatch(ctx context.Context, job domain.DownloadJob) error {
	name := domain.DownloadLaneFor(job)
	lane, err := d.laneFor(name)
	if err != nil {
		return err
	}
	return lane.Enqueue(ctx, job)
}

func (d *Dispatcher) laneFor(name string) (*DownloadLane, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if lane, ok := d.lanes[name]; ok {
		return lane, nil
	}
	lane, err := NewDownloadLane(d.opener, name)
	if err != nil {
		return nil, err
	}
	d.lanes[name] = lane
	return lane, nil
}
