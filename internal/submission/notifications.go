package submission

import (
	"errors"

	"github.com/wolfman30/landing-leads/internal/webhook"
)

// Notification is a toast the landing page renders after a submission.
type Notification struct {
	Title   string `json:"title"`
	Message string `json:"message"`
	Type    string `json:"type"`
}

var (
	NotifySuccess = Notification{
		Title:   "Успешно!",
		Message: "Заявка отправлена! Мы свяжемся с вами в ближайшее время.",
		Type:    "success",
	}
	NotifyError = Notification{
		Title:   "Ошибка",
		Message: "Произошла ошибка при отправке. Попробуйте позже.",
		Type:    "error",
	}
	NotifyValidation = Notification{
		Title:   "Проверьте данные",
		Message: "Пожалуйста, заполните все обязательные поля.",
		Type:    "warning",
	}
	NotifyConnection = Notification{
		Title:   "Проблема с подключением",
		Message: "Не удается подключиться к серверу. Проверьте настройки.",
		Type:    "error",
	}
)

const (
	messageCrossOrigin = "Проблема с CORS. Заявка может быть отправлена, но ответ не получен."
	messageNetwork     = "Не удалось подключиться к серверу. Проверьте интернет-соединение."
	messageTimeout     = "Превышено время ожидания. Попробуйте еще раз."
	messageRejected    = "Неизвестная ошибка"
	messageGeneric     = "Ошибка сети. Попробуйте еще раз."
)

// Notification picks the toast for r.
func (r Result) Notification() Notification {
	if r.Success {
		return NotifySuccess
	}
	switch r.Kind {
	case KindValidation:
		return NotifyValidation
	case ErrorKind(webhook.KindNetwork), ErrorKind(webhook.KindCrossOrigin):
		return NotifyConnection
	default:
		return NotifyError
	}
}

// failureMessage is the human-readable error for a final transport failure.
// A rejection carries the server's own reason when it gave one.
func failureMessage(err error) string {
	switch webhook.KindOf(err) {
	case webhook.KindCrossOrigin:
		return messageCrossOrigin
	case webhook.KindNetwork:
		return messageNetwork
	case webhook.KindTimeout:
		return messageTimeout
	case webhook.KindRejected:
		var werr *webhook.Error
		if errors.As(err, &werr) && werr.Message != "" {
			return werr.Message
		}
		return messageRejected
	default:
		return messageGeneric
	}
}
