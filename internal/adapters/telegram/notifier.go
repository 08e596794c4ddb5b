// Package telegram реализует доставку уведомлений через Bot API.
package telegram

import (
	"context"
	"sort"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"tg-media-bot/internal/domain"
	"tg-media-bot/internal/infra/metrics"
)

// В одной строке клавиатуры помещается не больше трёх кнопок.
const maxButtonsPerRow = 3

// Notifier превращает исход задачи в исходящее сообщение бота.
// Контракт: перед любым финальным сообщением плейсхолдер удаляется;
// неудача удаления логируется и не мешает доставке.
type Notifier struct {
	bot *tgbotapi.BotAPI
	log zerolog.Logger
}

// NewNotifier создаёт уведомитель поверх общего клиента бота.
func NewNotifier(bot *tgbotapi.BotAPI, log zerolog.Logger) *Notifier {
	return &Notifier{bot: bot, log: log}
}

// NotifyStart отправляет плейсхолдер «работаю» и возвращает его
// идентификатор для последующего удаления.
func (n *Notifier) NotifyStart(ctx context.Context, chatID int64, text string) (domain.MessageHandle, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	start := time.Now()
	sent, err := n.bot.Send(msg)
	metrics.ObserveNetworkRequest("telegram_bot", "send_message", strconv.FormatInt(chatID, 10), start, err)
	if err != nil {
		return domain.MessageHandle{}, err
	}
	return domain.MessageHandle{ChatID: chatID, MessageID: sent.MessageID}, nil
}

// OfferChoices удаляет плейсхолдер и отправляет предложение вариантов:
// фото с клавиатурой, если есть превью, иначе текст с клавиатурой.
func (n *Notifier) OfferChoices(ctx context.Context, chatID int64, placeholder domain.MessageHandle, offer domain.MediaOffer) error {
	n.removePlaceholder(placeholder)

	markup := buildKeyboard(offer.Buttons)
	start := time.Now()
	var err error
	if offer.PreviewURL != "" {
		photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileURL(offer.PreviewURL))
		photo.Caption = offer.Caption
		photo.ReplyMarkup = markup
		_, err = n.bot.Send(photo)
	} else {
		msg := tgbotapi.NewMessage(chatID, offer.Caption)
		msg.ReplyMarkup = markup
		_, err = n.bot.Send(msg)
	}
	metrics.ObserveNetworkRequest("telegram_bot", "send_offer", strconv.FormatInt(chatID, 10), start, err)
	return err
}

// DeliverVideo удаляет плейсхолдер и отправляет видеофайл.
func (n *Notifier) DeliverVideo(ctx context.Context, chatID int64, placeholder domain.MessageHandle, path, caption string) error {
	n.removePlaceholder(placeholder)

	video := tgbotapi.NewVideo(chatID, tgbotapi.FilePath(path))
	video.Caption = caption
	video.SupportsStreaming = true
	start := time.Now()
	_, err := n.bot.Send(video)
	metrics.ObserveNetworkRequest("telegram_bot", "send_video", strconv.FormatInt(chatID, 10), start, err)
	return err
}

// DeliverAudio удаляет плейсхолдер и отправляет аудиофайл.
func (n *Notifier) DeliverAudio(ctx context.Context, chatID int64, placeholder domain.MessageHandle, path, caption string) error {
	n.removePlaceholder(placeholder)

	audio := tgbotapi.NewAudio(chatID, tgbotapi.FilePath(path))
	audio.Caption = caption
	start := time.Now()
	_, err := n.bot.Send(audio)
	metrics.ObserveNetworkRequest("telegram_bot", "send_audio", strconv.FormatInt(chatID, 10), start, err)
	return err
}

// DeliverPhotoURL удаляет плейсхолдер и отправляет изображение по
// прямой ссылке: файл забирает сам Telegram.
func (n *Notifier) DeliverPhotoURL(ctx context.Context, chatID int64, placeholder domain.MessageHandle, url, caption string) error {
	n.removePlaceholder(placeholder)

	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileURL(url))
	photo.Caption = caption
	start := time.Now()
	_, err := n.bot.Send(photo)
	metrics.ObserveNetworkRequest("telegram_bot", "send_photo", strconv.FormatInt(chatID, 10), start, err)
	return err
}

// DeliverFailure удаляет плейсхолдер и отправляет сообщение об ошибке
// с человекочитаемой причиной.
func (n *Notifier) DeliverFailure(ctx context.Context, chatID int64, placeholder domain.MessageHandle, reason string) error {
	n.removePlaceholder(placeholder)

	text := "❌ Ой! Не удалось обработать запрос.\nПричина: " + reason + "\n\nПопробуйте другую ссылку 😉"
	msg := tgbotapi.NewMessage(chatID, text)
	start := time.Now()
	_, err := n.bot.Send(msg)
	metrics.ObserveNetworkRequest("telegram_bot", "send_failure", strconv.FormatInt(chatID, 10), start, err)
	return err
}

func (n *Notifier) removePlaceholder(placeholder domain.MessageHandle) {
	if placeholder.MessageID == 0 {
		return
	}
	start := time.Now()
	_, err := n.bot.Request(tgbotapi.NewDeleteMessage(placeholder.ChatID, placeholder.MessageID))
	metrics.ObserveNetworkRequest("telegram_bot", "delete_message", strconv.FormatInt(placeholder.ChatID, 10), start, err)
	if err != nil {
		n.log.Warn().Err(err).Int64("chat_id", placeholder.ChatID).Int("message_id", placeholder.MessageID).Msg("не удалось удалить плейсхолдер")
	}
}

// buildKeyboard раскладывает кнопки по строкам: сначала группировка по
// номеру ряда, затем нарезка длинных рядов по три кнопки.
func buildKeyboard(buttons []domain.OfferButton) tgbotapi.InlineKeyboardMarkup {
	byRow := make(map[int][]domain.OfferButton)
	for _, b := range buttons {
		byRow[b.Row] = append(byRow[b.Row], b)
	}
	rowNums := make([]int, 0, len(byRow))
	for row := range byRow {
		rowNums = append(rowNums, row)
	}
	sort.Ints(rowNums)

	var rows [][]tgbotapi.InlineKeyboardButton
	for _, rowNum := range rowNums {
		group := byRow[rowNum]
		for i := 0; i < len(group); i += maxButtonsPerRow {
			end := i + maxButtonsPerRow
			if end > len(group) {
				end = len(group)
			}
			row := make([]tgbotapi.InlineKeyboardButton, 0, end-i)
			for _, b := range group[i:end] {
				row = append(row, tgbotapi.NewInlineKeyboardButtonData(b.Label, b.Callback))
			}
			rows = append(rows, row)
		}
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}
