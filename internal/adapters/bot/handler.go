// Package bot обслуживает вебхук Telegram: команды, ссылки и нажатия
// кнопок выбора вариантов.
package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"tg-media-bot/internal/domain"
	"tg-media-bot/internal/infra/metrics"
)

// Handler обслуживает вебхук бота.
type Handler struct {
	bot        *tgbotapi.BotAPI
	log        zerolog.Logger
	ledger     domain.ActivityLedger
	sessions   domain.SessionStore
	extracts   domain.ExtractQueue
	dispatcher domain.DownloadDispatcher
	mediaDir   string
}

// NewHandler создаёт обработчик.
func NewHandler(bot *tgbotapi.BotAPI, log zerolog.Logger, ledger domain.ActivityLedger, sessions domain.SessionStore, extracts domain.ExtractQueue, dispatcher domain.DownloadDispatcher, mediaDir string) *Handler {
	return &Handler{
		bot:        bot,
		log:        log,
		ledger:     ledger,
		sessions:   sessions,
		extracts:   extracts,
		dispatcher: dispatcher,
		mediaDir:   mediaDir,
	}
}

// HandleUpdate обрабатывает входящий апдейт.
func (h *Handler) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	if upd.Message != nil {
		h.handleMessage(ctx, upd.Message)
	} else if upd.CallbackQuery != nil {
		h.handleCallback(ctx, upd.CallbackQuery)
	}
}

func (h *Handler) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		text = strings.TrimSpace(msg.Caption)
	}
	switch {
	case strings.HasPrefix(text, "/start"):
		h.reply(msg.Chat.ID, buildStartMessage())
	case strings.HasPrefix(text, "/help"):
		h.reply(msg.Chat.ID, buildHelpMessage())
	default:
		h.handleURL(ctx, msg.Chat.ID, text)
	}
}

func (h *Handler) handleURL(ctx context.Context, chatID int64, text string) {
	platform, isURL := domain.PlatformFromURL(text)
	if !isURL {
		h.reply(chatID, "🤔 Не понял ваше сообщение. Отправьте ссылку на медиа или используйте /help")
		return
	}
	if platform == domain.PlatformUnsupported {
		h.reply(chatID, fmt.Sprintf("❌ Этот домен не поддерживается.\n\nПоддерживаемые сервисы: %s", strings.Join(domain.SupportedDomains(), ", ")))
		return
	}

	if !h.ledger.TryAcquire(ctx, chatID, domain.LeaseExtract, text, platform) {
		metrics.AdmissionRejectedTotal.WithLabelValues(string(domain.LeaseExtract)).Inc()
		h.reply(chatID, "⏳ Уже обрабатываю вашу предыдущую ссылку. Дождитесь результата")
		return
	}

	job := domain.ExtractJob{
		Version:     domain.ExtractJobVersion,
		ID:          uuid.NewString(),
		ChatID:      chatID,
		URL:         text,
		Platform:    platform,
		RequestedAt: time.Now().UTC(),
	}
	if err := h.extracts.Enqueue(ctx, job); err != nil {
		h.log.Error().Err(err).Int64("chat_id", chatID).Msg("не удалось поставить задачу извлечения")
		h.ledger.Release(ctx, chatID, domain.LeaseExtract)
		h.reply(chatID, "❌ Не удалось принять ссылку в обработку. Попробуйте позже")
		return
	}
	h.log.Info().Str("job_id", job.ID).Int64("chat_id", chatID).Str("platform", string(platform)).Msg("задача извлечения поставлена")
	h.reply(chatID, "📥 Получил ссылку! Сейчас проверю и подготовлю данные...")
}

func (h *Handler) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	defer h.answerCallback(cb)
	if cb.Message == nil {
		return
	}
	chatID := cb.Message.Chat.ID

	kind, renditionID, err := domain.ParseChoice(cb.Data)
	if err != nil {
		h.log.Warn().Str("data", cb.Data).Msg("нераспознанный callback")
		return
	}

	session, ok := h.sessions.Fetch(ctx, chatID)
	if !ok {
		h.reply(chatID, "❌ Сессия не найдена. Отправьте ссылку заново")
		return
	}

	// Вариант ищется только в коллекциях текущей сессии: ссылка на
	// чужой или устаревший результат для пользователя неотличима от
	// истёкшей сессии.
	rendition, ok := session.Media.FindRendition(kind, renditionID)
	if !ok {
		h.reply(chatID, "❌ Сессия не найдена. Отправьте ссылку заново")
		return
	}

	if !h.ledger.TryAcquire(ctx, chatID, domain.LeaseDownload, session.OriginURL, session.Platform) {
		metrics.AdmissionRejectedTotal.WithLabelValues(string(domain.LeaseDownload)).Inc()
		h.reply(chatID, "⏳ Предыдущая загрузка ещё идёт. Дождитесь её завершения")
		return
	}

	job := domain.DownloadJob{
		Version:     domain.DownloadJobVersion,
		ID:          uuid.NewString(),
		ChatID:      chatID,
		URL:         session.OriginURL,
		Platform:    session.Platform,
		Kind:        kind,
		RenditionID: rendition.ID,
		SourceURL:   rendition.SourceURL,
		DisplayName: rendition.DisplayName,
		Height:      heightOf(rendition),
		OutputHint:  h.mediaDir,
		RequestedAt: time.Now().UTC(),
	}
	if err := h.dispatcher.Dispatch(ctx, job); err != nil {
		h.log.Error().Err(err).Int64("chat_id", chatID).Msg("не удалось поставить задачу загрузки")
		h.ledger.Release(ctx, chatID, domain.LeaseDownload)
		h.reply(chatID, "❌ Не удалось начать загрузку. Попробуйте позже")
		return
	}
	h.log.Info().Str("job_id", job.ID).Int64("chat_id", chatID).Str("lane", domain.DownloadLaneFor(job)).Msg("задача загрузки поставлена")
}

func (h *Handler) answerCallback(cb *tgbotapi.CallbackQuery) {
	start := time.Now()
	_, err := h.bot.Request(tgbotapi.NewCallback(cb.ID, ""))
	metrics.ObserveNetworkRequest("telegram_bot", "answer_callback", strconv.FormatInt(cb.From.ID, 10), start, err)
	if err != nil {
		h.log.Error().Err(err).Msg("не удалось ответить на callback")
	}
}

func (h *Handler) reply(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	start := time.Now()
	_, err := h.bot.Send(msg)
	metrics.ObserveNetworkRequest("telegram_bot", "send_message", strconv.FormatInt(chatID, 10), start, err)
	if err != nil {
		metrics.DeliveryErrorsTotal.Inc()
		h.log.Error().Err(err).Int64("chat_id", chatID).Msg("не удалось отправить сообщение")
	}
}

func heightOf(r domain.Rendition) int {
	if r.Height != nil {
		return *r.Height
	}
	return 0
}

func buildStartMessage() string {
	return strings.Join([]string{
		"🎉 Добро пожаловать в Медиа Бот!",
		"",
		"Отправьте ссылку на видео или пост, и я предложу доступные варианты загрузки.",
		"",
		"Поддерживаются: YouTube, Instagram, TikTok, Reddit, Rutube.",
	}, "\n")
}

func buildHelpMessage() string {
	return strings.Join([]string{
		"🤖 Медиа Бот — помощь",
		"",
		"Просто отправьте ссылку из поддерживаемого сервиса, и я предложу варианты для скачивания.",
		"",
		"Поддерживаемые домены: " + strings.Join(domain.SupportedDomains(), ", "),
		"",
		"Команды:",
		"/start — начать работу",
		"/help — показать справку",
	}, "\n")
}
