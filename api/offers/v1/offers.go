package offersv1

import "time"

// Статусы предложения в API.
const (
	OfferStatusDraft     = "draft"
	OfferStatusActive    = "active"
	OfferStatusAccepted  = "accepted"
	OfferStatusCompleted = "completed"
	OfferStatusCancelled = "cancelled"
)

// Customer — снимок данных клиента.
type Customer struct {
	Name    string `json:"name" validate:"required,max=255"`
	Email   string `json:"email" validate:"required,email"`
	Phone   string `json:"phone,omitempty" validate:"max=64"`
	Address string `json:"address,omitempty" validate:"max=1024"`
}

// NewItem — позиция, добавляемая в предложение.
type NewItem struct {
	ItemType       string `json:"item_type" validate:"required,oneof=product service"`
	ProductId      string `json:"product_id" validate:"required"`
	VariantId      string `json:"variant_id,omitempty"`
	Name           string `json:"name,omitempty" validate:"max=255"`
	Quantity       int64  `json:"quantity" validate:"gt=0"`
	UnitPriceMinor int64  `json:"unit_price_minor" validate:"gte=0"`
	DiscountMinor  int64  `json:"discount_minor,omitempty" validate:"gte=0"`
	// TaxRate — процент десятичной строкой, например "19" или "7.5".
	TaxRate   string `json:"tax_rate,omitempty" validate:"omitempty,numeric"`
	SortOrder int32  `json:"sort_order,omitempty" validate:"gte=0"`
}

// OfferItem — позиция предложения.
type OfferItem struct {
	Id              string    `json:"id"`
	ItemType        string    `json:"item_type"`
	ProductId       string    `json:"product_id"`
	VariantId       string    `json:"variant_id,omitempty"`
	Name            string    `json:"name"`
	Quantity        int64     `json:"quantity"`
	UnitPriceMinor  int64     `json:"unit_price_minor"`
	DiscountMinor   int64     `json:"discount_minor"`
	TotalPriceMinor int64     `json:"total_price_minor"`
	TaxRate         string    `json:"tax_rate"`
	TaxMinor        int64     `json:"tax_minor"`
	SortOrder       int32     `json:"sort_order"`
	ReservationId   string    `json:"reservation_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// Offer — предложение.
type Offer struct {
	Id                    string          `json:"id"`
	Number                string          `json:"number"`
	Status                string          `json:"status"`
	Currency              string          `json:"currency"`
	SubtotalMinor         int64           `json:"subtotal_minor"`
	TaxMinor              int64           `json:"tax_minor"`
	TotalMinor            int64           `json:"total_minor"`
	Customer              *Customer       `json:"customer"`
	Notes                 string          `json:"notes,omitempty"`
	Items                 []*OfferItem    `json:"items"`
	NotificationOverrides map[string]bool `json:"notification_overrides,omitempty"`
	PdfUrl                string          `json:"pdf_url,omitempty"`
	HasReservations       bool            `json:"has_reservations"`
	ReservationExpiresAt  *time.Time      `json:"reservation_expires_at,omitempty"`
	Version               int64           `json:"version"`
	CreatedAt             time.Time       `json:"created_at"`
	UpdatedAt             time.Time       `json:"updated_at"`
	AcceptedAt            *time.Time      `json:"accepted_at,omitempty"`
	CompletedAt           *time.Time      `json:"completed_at,omitempty"`
	CancelledAt           *time.Time      `json:"cancelled_at,omitempty"`
}

// HistoryEntry — запись журнала статусов.
type HistoryEntry struct {
	Id                 string            `json:"id"`
	FromStatus         string            `json:"from_status,omitempty"`
	ToStatus           string            `json:"to_status"`
	Event              string            `json:"event"`
	Description        string            `json:"description,omitempty"`
	Actor              string            `json:"actor,omitempty"`
	Metadata           map[string]string `json:"metadata,omitempty"`
	NotificationSent   bool              `json:"notification_sent"`
	NotificationMethod string            `json:"notification_method,omitempty"`
	CreatedAt          time.Time         `json:"created_at"`
}

// ItemAvailability — остаток по позиции.
type ItemAvailability struct {
	ItemId     string `json:"item_id"`
	VariantId  string `json:"variant_id"`
	Requested  int64  `json:"requested"`
	Available  int64  `json:"available"`
	Reserved   bool   `json:"reserved"`
	Sufficient bool   `json:"sufficient"`
}

type CreateOfferRequest struct {
	Currency              string          `json:"currency" validate:"required,len=3,alpha"`
	Customer              *Customer       `json:"customer" validate:"required"`
	Notes                 string          `json:"notes,omitempty" validate:"max=4096"`
	Items                 []*NewItem      `json:"items" validate:"omitempty,dive,required"`
	NotificationOverrides map[string]bool `json:"notification_overrides,omitempty" validate:"omitempty,dive,keys,oneof=created activated accepted completed cancelled,endkeys"`
}

type CreateOfferResponse struct {
	Offer *Offer `json:"offer"`
}

type GetOfferRequest struct {
	OfferId string `json:"offer_id" validate:"required"`
}

func (x *GetOfferRequest) GetOfferId() string {
	if x != nil {
		return x.OfferId
	}
	return ""
}

type GetOfferResponse struct {
	Offer *Offer `json:"offer"`
}

type ListOffersRequest struct {
	Status string `json:"status,omitempty" validate:"omitempty,oneof=draft active accepted completed cancelled"`
	Limit  int32  `json:"limit,omitempty" validate:"gte=0"`
	Offset int32  `json:"offset,omitempty" validate:"gte=0"`
}

type ListOffersResponse struct {
	Offers []*Offer `json:"offers"`
	Total  int32    `json:"total"`
}

type UpdateOfferRequest struct {
	OfferId               string          `json:"offer_id" validate:"required"`
	ExpectedVersion       int64           `json:"expected_version,omitempty" validate:"gte=0"`
	Notes                 *string         `json:"notes,omitempty" validate:"omitempty,max=4096"`
	Customer              *Customer       `json:"customer,omitempty"`
	NotificationOverrides map[string]bool `json:"notification_overrides,omitempty" validate:"omitempty,dive,keys,oneof=created activated accepted completed cancelled,endkeys"`
}

type UpdateOfferResponse struct {
	Offer *Offer `json:"offer"`
}

type DeleteOfferRequest struct {
	OfferId string `json:"offer_id" validate:"required"`
}

func (x *DeleteOfferRequest) GetOfferId() string {
	if x != nil {
		return x.OfferId
	}
	return ""
}

type DeleteOfferResponse struct {
	OfferId string `json:"offer_id"`
}

type AddItemRequest struct {
	OfferId string   `json:"offer_id" validate:"required"`
	Item    *NewItem `json:"item" validate:"required"`
}

type AddItemResponse struct {
	Offer *Offer `json:"offer"`
}

type RemoveItemRequest struct {
	OfferId string `json:"offer_id" validate:"required"`
	ItemId  string `json:"item_id" validate:"required"`
}

type RemoveItemResponse struct {
	Offer *Offer `json:"offer"`
}

// TransitionRequest используется операциями Activate/Accept/Complete/Cancel.
type TransitionRequest struct {
	OfferId string `json:"offer_id" validate:"required"`
}

func (x *TransitionRequest) GetOfferId() string {
	if x != nil {
		return x.OfferId
	}
	return ""
}

type TransitionResponse struct {
	Offer *Offer `json:"offer"`
}

type ListHistoryRequest struct {
	OfferId string `json:"offer_id" validate:"required"`
}

type ListHistoryResponse struct {
	Entries []*HistoryEntry `json:"entries"`
}

type CheckAvailabilityRequest struct {
	OfferId string `json:"offer_id" validate:"required"`
}

type CheckAvailabilityResponse struct {
	Items         []*ItemAvailability `json:"items"`
	AllSufficient bool                `json:"all_sufficient"`
}

type IssueAcceptanceTokenRequest struct {
	OfferId string `json:"offer_id" validate:"required"`
}

type IssueAcceptanceTokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	AcceptUrl string    `json:"accept_url"`
}
