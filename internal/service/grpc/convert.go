package grpcsvc

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	offersv1 "github.com/vladislavdragonenkov/offers/api/offers/v1"
	"github.com/vladislavdragonenkov/offers/internal/domain"
)

func toDomainItem(item *offersv1.NewItem) (domain.OfferItem, error) {
	rate := decimal.Zero
	if item.TaxRate != "" {
		parsed, err := decimal.NewFromString(item.TaxRate)
		if err != nil {
			return domain.OfferItem{}, domain.NewValidationError([]error{fmt.Errorf("%w: %q", domain.ErrTaxRateInvalid, item.TaxRate)})
		}
		rate = parsed
	}
	return domain.OfferItem{
		ItemType:       domain.ItemType(item.ItemType),
		ProductID:      item.ProductId,
		VariantID:      item.VariantId,
		Name:           item.Name,
		Quantity:       item.Quantity,
		UnitPriceMinor: item.UnitPriceMinor,
		DiscountMinor:  item.DiscountMinor,
		TaxRate:        rate,
		SortOrder:      int(item.SortOrder),
	}, nil
}

func toDomainCustomer(c *offersv1.Customer) domain.CustomerSnapshot {
	return domain.CustomerSnapshot{
		Name:    strings.TrimSpace(c.Name),
		Email:   strings.TrimSpace(c.Email),
		Phone:   c.Phone,
		Address: c.Address,
	}
}

func toDomainOverrides(in map[string]bool) map[domain.OfferEvent]bool {
	if in == nil {
		return nil
	}
	out := make(map[domain.OfferEvent]bool, len(in))
	for event, enabled := range in {
		out[domain.OfferEvent(event)] = enabled
	}
	return out
}

func toAPIOffer(offer domain.Offer) *offersv1.Offer {
	items := make([]*offersv1.OfferItem, 0, len(offer.Items))
	for _, item := range offer.ItemsInDisplayOrder() {
		items = append(items, &offersv1.OfferItem{
			Id:              item.ID,
			ItemType:        string(item.ItemType),
			ProductId:       item.ProductID,
			VariantId:       item.VariantID,
			Name:            item.Name,
			Quantity:        item.Quantity,
			UnitPriceMinor:  item.UnitPriceMinor,
			DiscountMinor:   item.DiscountMinor,
			TotalPriceMinor: item.TotalPriceMinor,
			TaxRate:         item.TaxRate.String(),
			TaxMinor:        item.TaxMinor,
			SortOrder:       int32(item.SortOrder), //nolint:gosec // порядок отображения небольшой.
			ReservationId:   item.ReservationID,
			CreatedAt:       item.CreatedAt,
		})
	}

	var overrides map[string]bool
	if len(offer.NotificationOverrides) > 0 {
		overrides = make(map[string]bool, len(offer.NotificationOverrides))
		for event, enabled := range offer.NotificationOverrides {
			overrides[string(event)] = enabled
		}
	}

	return &offersv1.Offer{
		Id:            offer.ID,
		Number:        offer.Number,
		Status:        string(offer.Status),
		Currency:      offer.Currency,
		SubtotalMinor: offer.SubtotalMinor,
		TaxMinor:      offer.TaxMinor,
		TotalMinor:    offer.TotalMinor,
		Customer: &offersv1.Customer{
			Name:    offer.Customer.Name,
			Email:   offer.Customer.Email,
			Phone:   offer.Customer.Phone,
			Address: offer.Customer.Address,
		},
		Notes:                 offer.Notes,
		Items:                 items,
		NotificationOverrides: overrides,
		PdfUrl:                offer.PDFURL,
		HasReservations:       offer.HasReservations(),
		ReservationExpiresAt:  offer.ReservationExpiresAt,
		Version:               offer.Version,
		CreatedAt:             offer.CreatedAt,
		UpdatedAt:             offer.UpdatedAt,
		AcceptedAt:            offer.AcceptedAt,
		CompletedAt:           offer.CompletedAt,
		CancelledAt:           offer.CancelledAt,
	}
}

func toAPIHistory(entries []domain.StatusHistoryEntry) []*offersv1.HistoryEntry {
	out := make([]*offersv1.HistoryEntry, 0, len(entries))
	for _, entry := range entries {
		out = append(out, &offersv1.HistoryEntry{
			Id:                 entry.ID,
			FromStatus:         string(entry.FromStatus),
			ToStatus:           string(entry.ToStatus),
			Event:              string(entry.Event),
			Description:        entry.Description,
			Actor:              entry.Actor,
			Metadata:           entry.Metadata,
			NotificationSent:   entry.NotificationSent,
			NotificationMethod: entry.NotificationMethod,
			CreatedAt:          entry.CreatedAt,
		})
	}
	return out
}

// validationStatus собирает ошибки validator в один InvalidArgument.
func validationStatus(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return status.Error(codes.InvalidArgument, "request is invalid")
	}
	parts := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		parts = append(parts, fmt.Sprintf("%s: %s", fe.Namespace(), fe.Tag()))
	}
	return status.Error(codes.InvalidArgument, "validation failed: "+strings.Join(parts, "; "))
}
