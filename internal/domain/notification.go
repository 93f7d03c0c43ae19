package domain

import "time"

// NotificationMethodEmail — единственный поддерживаемый канал доставки.
const NotificationMethodEmail = "email"

// NotificationPolicy — системные настройки уведомлений по событиям.
type NotificationPolicy map[OfferEvent]bool

// DefaultNotificationPolicy: о создании черновика клиента не уведомляем.
func DefaultNotificationPolicy() NotificationPolicy {
	return NotificationPolicy{
		EventCreated:   false,
		EventActivated: true,
		EventAccepted:  true,
		EventCompleted: true,
		EventCancelled: true,
	}
}

// Recipient — адресат уведомления.
type Recipient struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// NotificationRequest передаётся внешнему транспорту уведомлений.
type NotificationRequest struct {
	OfferID       string     `json:"offer_id"`
	OfferNumber   string     `json:"offer_number"`
	Event         OfferEvent `json:"event"`
	Method        string     `json:"method"`
	Recipient     Recipient  `json:"recipient"`
	AttachmentURL string     `json:"attachment_url,omitempty"`
	RequestedAt   time.Time  `json:"requested_at"`
}
