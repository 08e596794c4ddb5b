package queue

import (
	"context"
	"testing"

	"tg-media-bot/internal/domain"
)

// memLane — линия в памяти для тестов маршрутизации.
type memLane struct {
	name     string
	payloads [][]byte
}

func (l *memLane) Publish(_ context.Context, payload []byte) error {
	l.payloads = append(l.payloads, payload)
	return nil
}

func (l *memLane) Receive(_ context.Context) ([]byte, domain.AckFunc, error) {
	payload := l.payloads[0]
	l.payloads = l.payloads[1:]
	return payload, func(bool) error { return nil }, nil
}

type memOpener struct {
	lanes map[string]*memLane
	opens int
}

func newMemOpener() *memOpener {
	return &memOpener{lanes: make(map[string]*memLane)}
}

func (o *memOpener) Open(name string) (Lane, error) {
	o.opens++
	if lane, ok := o.lanes[name]; ok {
		return lane, nil
	}
	lane := &memLane{name: name}
	o.lanes[name] = lane
	return lane, nil
}

func TestExtractLaneRoundTrip(t *testing.T) {
	opener := newMemOpener()
	lane, err := NewExtractLane(opener)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if _, ok := opener.lanes[domain.LaneInformation]; !ok {
		t.Fatalf("линия извлечения должна открываться как %s", domain.LaneInformation)
	}

	job := domain.ExtractJob{Version: domain.ExtractJobVersion, ID: "j1", ChatID: 42, URL: "https://youtu.be/a", Platform: domain.PlatformYouTube}
	if err := lane.Enqueue(context.Background(), job); err != nil {
		t.Fatalf("не ожидали ошибку публикации: %v", err)
	}

	got, ack, err := lane.Receive(context.Background())
	if err != nil {
		t.Fatalf("не ожидали ошибку чтения: %v", err)
	}
	if got.ID != "j1" || got.ChatID != 42 || got.Platform != domain.PlatformYouTube {
		t.Fatalf("задача исказилась при передаче: %+v", got)
	}
	if err := ack(true); err != nil {
		t.Fatalf("подтверждение не должно падать: %v", err)
	}
}

func TestDispatcherRoutesByKind(t *testing.T) {
	opener := newMemOpener()
	dispatcher := NewDispatcher(opener)
	ctx := context.Background()

	video := domain.DownloadJob{ID: "v", Platform: domain.PlatformYouTube, Kind: domain.KindVideo}
	audio := domain.DownloadJob{ID: "a", Platform: domain.PlatformYouTube, Kind: domain.KindAudio}
	tiktok := domain.DownloadJob{ID: "t", Platform: domain.PlatformTikTok, Kind: domain.KindVideo}

	for _, job := range []domain.DownloadJob{video, audio, tiktok} {
		if err := dispatcher.Dispatch(ctx, job); err != nil {
			t.Fatalf("не ожидали ошибку отправки: %v", err)
		}
	}

	if got := len(opener.lanes["youtube_queue"].payloads); got != 1 {
		t.Fatalf("видео должно уйти в youtube_queue, сообщений %d", got)
	}
	if got := len(opener.lanes["audio_queue"].payloads); got != 1 {
		t.Fatalf("аудио должно уйти в audio_queue, сообщений %d", got)
	}
	if got := len(opener.lanes["tiktok_queue"].payloads); got != 1 {
		t.Fatalf("tiktok-видео должно уйти в tiktok_queue, сообщений %d", got)
	}
}

func TestDispatcherReusesLanes(t *testing.T) {
	opener := newMemOpener()
	dispatcher := NewDispatcher(opener)
	ctx := context.Background()

	job := domain.DownloadJob{Platform: domain.PlatformReddit, Kind: domain.KindVideo}
	for i := 0; i < 3; i++ {
		if err := dispatcher.Dispatch(ctx, job); err != nil {
			t.Fatalf("не ожидали ошибку отправки: %v", err)
		}
	}
	if opener.opens != 1 {
		t.Fatalf("линия должна открываться один раз, открытий %d", opener.opens)
	}
}
