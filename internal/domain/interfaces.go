package domain

import (
	"context"
	"time"
)

// KV — эфемерное key-value хранилище с TTL. Get атомарно продлевает
// TTL при попадании, чтобы активно используемые записи не истекали
// посреди работы. Ошибки сериализации и сети не поднимаются наверх:
// Put/PutNX возвращают false, Get ведёт себя как промах.
type KV interface {
	Put(ctx context.Context, key string, value any, ttl time.Duration) bool
	PutNX(ctx context.Context, key string, value any, ttl time.Duration) bool
	Get(ctx context.Context, key string, dest any, ttl time.Duration) bool
	Delete(ctx context.Context, key string) bool
}

// MediaCache кэширует результаты извлечения по исходной ссылке.
// Чистая оптимизация: промах означает только «нужно извлечь заново».
type MediaCache interface {
	Store(ctx context.Context, url string, media MediaInfo) bool
	Fetch(ctx context.Context, url string) (MediaInfo, bool)
}

// SessionStore хранит последний результат извлечения на чат, чтобы
// нажатие кнопки разрешалось без повторной отправки ссылки.
type SessionStore interface {
	Create(ctx context.Context, chatID int64, url string, platform Platform, media MediaInfo) bool
	Fetch(ctx context.Context, chatID int64) (Session, bool)
}

// ActivityLedger ограничивает пользователя одной извлекающей и одной
// загружающей операцией одновременно. TryAcquire возвращает false при
// живой аренде того же вида — без очереди и без ожидания. Release
// идемпотентен: удаление несуществующей аренды возвращает false и не
// является ошибкой.
type ActivityLedger interface {
	TryAcquire(ctx context.Context, chatID int64, kind LeaseKind, url string, platform Platform) bool
	Peek(ctx context.Context, chatID int64, kind LeaseKind) (ActivityLease, bool)
	Release(ctx context.Context, chatID int64, kind LeaseKind) bool
}

// ResultStatus — исход операции внешнего извлекателя.
type ResultStatus string

const (
	StatusSuccess ResultStatus = "success"
	StatusError   ResultStatus = "error"
)

// ErrorCode — непрозрачный код ошибки сервиса. Этот слой не ветвится
// по конкретным кодам, а только переводит их в человекочитаемый текст
// через таблицу извлекателя.
type ErrorCode string

const (
	CodeSuccess    ErrorCode = "SUCCESS"
	CodeUnexpected ErrorCode = "UNEXPECTED_ERROR"
)

// ExtractResult — результат извлечения метаданных.
type ExtractResult struct {
	Status  ResultStatus
	Code    ErrorCode
	Context string
	Media   *MediaInfo
}

// DownloadResult — результат загрузки одного варианта.
type DownloadResult struct {
	Status    ResultStatus
	Code      ErrorCode
	Context   string
	LocalPath string
}

// Extractor — внешний коллаборатор одного сервиса: извлечение
// метаданных и загрузка выбранного варианта. Ожидаемые сбои
// возвращаются значением, не ошибкой Go.
type Extractor interface {
	ExtractInfo(ctx context.Context, url string) ExtractResult
	Download(ctx context.Context, url, renditionID, outputDir string) DownloadResult
	Describe(code ErrorCode) string
}

// ExtractorRegistry отдаёт извлекатель для сервиса.
type ExtractorRegistry interface {
	Lookup(platform Platform) (Extractor, bool)
}

// MessageHandle — идентификатор отправленного сообщения, достаточный
// для его последующего удаления.
type MessageHandle struct {
	ChatID    int64
	MessageID int
}

// OfferButton — одна кнопка предложения вариантов. Row группирует
// кнопки по строкам клавиатуры.
type OfferButton struct {
	Row      int
	Label    string
	Callback string
	URL      string
}

// MediaOffer — сообщение с выбором вариантов загрузки.
type MediaOffer struct {
	Caption    string
	PreviewURL string
	Buttons    []OfferButton
}

// Notifier превращает исход задачи ровно в одно исходящее действие.
// Каждый Deliver*/Fail сначала убирает плейсхолдер от NotifyStart;
// неудача удаления логируется и не мешает доставке.
type Notifier interface {
	NotifyStart(ctx context.Context, chatID int64, text string) (MessageHandle, error)
	OfferChoices(ctx context.Context, chatID int64, placeholder MessageHandle, offer MediaOffer) error
	DeliverVideo(ctx context.Context, chatID int64, placeholder MessageHandle, path, caption string) error
	DeliverAudio(ctx context.Context, chatID int64, placeholder MessageHandle, path, caption string) error
	DeliverPhotoURL(ctx context.Context, chatID int64, placeholder MessageHandle, url, caption string) error
	DeliverFailure(ctx context.Context, chatID int64, placeholder MessageHandle, reason string) error
}
