package httpapi

import (
	"time"

	"github.com/vladislavdragonenkov/offers/internal/domain"
)

type acceptRequest struct {
	Token string `json:"token" form:"token"`
	Email string `json:"email" form:"email" binding:"required,email"`
}

type acceptResponse struct {
	OfferID     string    `json:"offer_id"`
	OfferNumber string    `json:"offer_number"`
	Status      string    `json:"status"`
	AcceptedAt  time.Time `json:"accepted_at"`
}

type documentInfoResponse struct {
	OfferID      string     `json:"offer_id"`
	Exists       bool       `json:"exists"`
	Fresh        bool       `json:"fresh"`
	Size         int        `json:"size,omitempty"`
	LastModified *time.Time `json:"last_modified,omitempty"`
}

type customerResponse struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone,omitempty"`
	Address string `json:"address,omitempty"`
}

type itemResponse struct {
	ID              string `json:"id"`
	ItemType        string `json:"item_type"`
	ProductID       string `json:"product_id"`
	VariantID       string `json:"variant_id,omitempty"`
	Name            string `json:"name"`
	Quantity        int64  `json:"quantity"`
	UnitPriceMinor  int64  `json:"unit_price_minor"`
	DiscountMinor   int64  `json:"discount_minor"`
	TotalPriceMinor int64  `json:"total_price_minor"`
	TaxRate         string `json:"tax_rate"`
	TaxMinor        int64  `json:"tax_minor"`
	SortOrder       int    `json:"sort_order"`
	ReservationID   string `json:"reservation_id,omitempty"`
}

type offerResponse struct {
	ID            string           `json:"id"`
	Number        string           `json:"number"`
	Status        string           `json:"status"`
	Currency      string           `json:"currency"`
	SubtotalMinor int64            `json:"subtotal_minor"`
	TaxMinor      int64            `json:"tax_minor"`
	TotalMinor    int64            `json:"total_minor"`
	Customer      customerResponse `json:"customer"`
	Notes         string           `json:"notes,omitempty"`
	Items         []itemResponse   `json:"items"`
	PDFURL        string           `json:"pdf_url,omitempty"`
	Version       int64            `json:"version"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
	AcceptedAt    *time.Time       `json:"accepted_at,omitempty"`
	CompletedAt   *time.Time       `json:"completed_at,omitempty"`
	CancelledAt   *time.Time       `json:"cancelled_at,omitempty"`
}

type offerListResponse struct {
	Data   []offerResponse `json:"data"`
	Total  int             `json:"total"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

type historyResponse struct {
	ID                 string            `json:"id"`
	FromStatus         string            `json:"from_status,omitempty"`
	ToStatus           string            `json:"to_status"`
	Event              string            `json:"event"`
	Description        string            `json:"description"`
	Actor              string            `json:"actor,omitempty"`
	Metadata           map[string]string `json:"metadata,omitempty"`
	NotificationSent   bool              `json:"notification_sent"`
	NotificationMethod string            `json:"notification_method,omitempty"`
	CreatedAt          time.Time         `json:"created_at"`
}

func toOfferResponse(o domain.Offer) offerResponse {
	items := make([]itemResponse, 0, len(o.Items))
	for _, it := range o.ItemsInDisplayOrder() {
		items = append(items, itemResponse{
			ID:              it.ID,
			ItemType:        string(it.ItemType),
			ProductID:       it.ProductID,
			VariantID:       it.VariantID,
			Name:            it.Name,
			Quantity:        it.Quantity,
			UnitPriceMinor:  it.UnitPriceMinor,
			DiscountMinor:   it.DiscountMinor,
			TotalPriceMinor: it.TotalPriceMinor,
			TaxRate:         it.TaxRate.String(),
			TaxMinor:        it.TaxMinor,
			SortOrder:       it.SortOrder,
			ReservationID:   it.ReservationID,
		})
	}
	return offerResponse{
		ID:            o.ID,
		Number:        o.Number,
		Status:        string(o.Status),
		Currency:      o.Currency,
		SubtotalMinor: o.SubtotalMinor,
		TaxMinor:      o.TaxMinor,
		TotalMinor:    o.TotalMinor,
		Customer: customerResponse{
			Name:    o.Customer.Name,
			Email:   o.Customer.Email,
			Phone:   o.Customer.Phone,
			Address: o.Customer.Address,
		},
		Notes:       o.Notes,
		Items:       items,
		PDFURL:      o.PDFURL,
		Version:     o.Version,
		CreatedAt:   o.CreatedAt,
		UpdatedAt:   o.UpdatedAt,
		AcceptedAt:  o.AcceptedAt,
		CompletedAt: o.CompletedAt,
		CancelledAt: o.CancelledAt,
	}
}

func toHistoryResponse(e domain.StatusHistoryEntry) historyResponse {
	return historyResponse{
		ID:                 e.ID,
		FromStatus:         string(e.FromStatus),
		ToStatus:           string(e.ToStatus),
		Event:              string(e.Event),
		Description:        e.Description,
		Actor:              e.Actor,
		Metadata:           e.Metadata,
		NotificationSent:   e.NotificationSent,
		NotificationMethod: e.NotificationMethod,
		CreatedAt:          e.CreatedAt,
	}
}
