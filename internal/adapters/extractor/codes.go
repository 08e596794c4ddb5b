package extractor

import (
	"strings"

	"tg-media-bot/internal/domain"
)

// Коды ошибок извлекателя. Для оркестрации они непрозрачны: наружу
// уходит только описание из таблицы.
const (
	codePrivate     domain.ErrorCode = "PRIVATE_CONTENT"
	codeUnavailable domain.ErrorCode = "CONTENT_UNAVAILABLE"
	codeAgeGate     domain.ErrorCode = "AGE_RESTRICTED"
	codeUnsupported domain.ErrorCode = "UNSUPPORTED_CONTENT"
	codeNetwork     domain.ErrorCode = "NETWORK_ERROR"
	codeNoFormat    domain.ErrorCode = "FORMAT_NOT_FOUND"
)

var codeDescriptions = map[domain.ErrorCode]string{
	codePrivate:           "контент приватный или доступен только авторизованным пользователям",
	codeUnavailable:       "контент удалён или недоступен",
	codeAgeGate:           "контент имеет возрастное ограничение",
	codeUnsupported:       "этот тип контента не поддерживается",
	codeNetwork:           "сервис не ответил, попробуйте позже",
	codeNoFormat:          "выбранный вариант больше недоступен",
	domain.CodeUnexpected: "неожиданная ошибка при обработке",
}

// classify переводит текст ошибки yt-dlp в код. Подбор по подстрокам
// сознательно грубый: точная причина всё равно уходит пользователю
// только как строка описания.
func classify(output string) domain.ErrorCode {
	lower := strings.ToLower(output)
	switch {
	case strings.Contains(lower, "private"):
		return codePrivate
	case strings.Contains(lower, "age"):
		return codeAgeGate
	case strings.Contains(lower, "unavailable"), strings.Contains(lower, "removed"), strings.Contains(lower, "404"):
		return codeUnavailable
	case strings.Contains(lower, "unsupported url"):
		return codeUnsupported
	case strings.Contains(lower, "requested format"):
		return codeNoFormat
	case strings.Contains(lower, "timed out"), strings.Contains(lower, "connection"), strings.Contains(lower, "network"):
		return codeNetwork
	}
	return domain.CodeUnexpected
}
