package domain

import "time"

// OfferEvent — тип события жизненного цикла; используется в истории и уведомлениях.
type OfferEvent string

const (
	EventCreated   OfferEvent = "created"
	EventActivated OfferEvent = "activated"
	EventAccepted  OfferEvent = "accepted"
	EventCompleted OfferEvent = "completed"
	EventCancelled OfferEvent = "cancelled"
)

// Valid проверяет, что событие известно.
func (e OfferEvent) Valid() bool {
	switch e {
	case EventCreated, EventActivated, EventAccepted, EventCompleted, EventCancelled:
		return true
	default:
		return false
	}
}

// EventForStatus возвращает событие, соответствующее входу в статус.
func EventForStatus(status OfferStatus) OfferEvent {
	switch status {
	case OfferStatusDraft:
		return EventCreated
	case OfferStatusActive:
		return EventActivated
	case OfferStatusAccepted:
		return EventAccepted
	case OfferStatusCompleted:
		return EventCompleted
	case OfferStatusCancelled:
		return EventCancelled
	default:
		return ""
	}
}

// ActorCustomerPrefix помечает переходы, выполненные клиентом через публичную ссылку.
const ActorCustomerPrefix = "customer:"

// StatusHistoryEntry — неизменяемая запись журнала смены статусов.
type StatusHistoryEntry struct {
	ID      string
	OfferID string
	// FromStatus пуст у записи о создании.
	FromStatus  OfferStatus
	ToStatus    OfferStatus
	Event       OfferEvent
	Description string
	// Actor пуст для системных переходов.
	Actor              string
	Metadata           map[string]string
	NotificationSent   bool
	NotificationMethod string
	CreatedAt          time.Time
}
