package domain_test

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/offers/internal/domain"
)

// makeOffer собирает черновик с товаром и услугой.
func makeOffer() domain.Offer {
	now := time.Now().UTC()
	offer := domain.Offer{
		ID:       "offer-1",
		Number:   "ANG-00001",
		Status:   domain.OfferStatusDraft,
		Currency: "EUR",
		Customer: domain.CustomerSnapshot{Name: "Jane Roe", Email: "jane@example.com"},
		Items: []domain.OfferItem{
			{
				ID:             "item-2",
				ItemType:       domain.ItemTypeService,
				ProductID:      "install",
				Quantity:       1,
				UnitPriceMinor: 5000,
				TaxRate:        decimal.NewFromInt(19),
				SortOrder:      2,
			},
			{
				ID:             "item-1",
				ItemType:       domain.ItemTypeProduct,
				ProductID:      "sofa",
				VariantID:      "sofa-grey",
				Quantity:       2,
				UnitPriceMinor: 11900,
				DiscountMinor:  1900,
				TaxRate:        decimal.NewFromInt(19),
				SortOrder:      1,
			},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	offer.RecalculateTotals()
	return offer
}

func TestTransitionGraph(t *testing.T) {
	cases := []struct {
		from, to domain.OfferStatus
		want     bool
	}{
		{domain.OfferStatusDraft, domain.OfferStatusActive, true},
		{domain.OfferStatusDraft, domain.OfferStatusCancelled, true},
		{domain.OfferStatusDraft, domain.OfferStatusAccepted, false},
		{domain.OfferStatusActive, domain.OfferStatusAccepted, true},
		{domain.OfferStatusActive, domain.OfferStatusDraft, false},
		{domain.OfferStatusAccepted, domain.OfferStatusCompleted, true},
		{domain.OfferStatusAccepted, domain.OfferStatusCancelled, true},
		{domain.OfferStatusCompleted, domain.OfferStatusCancelled, false},
		{domain.OfferStatusCancelled, domain.OfferStatusDraft, false},
	}
	for _, tc := range cases {
		if got := domain.CanTransition(tc.from, tc.to); got != tc.want {
			t.Fatalf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
	if len(domain.NextStatuses(domain.OfferStatusCompleted)) != 0 {
		t.Fatal("completed must be terminal")
	}
}

func TestRecalculateTotals(t *testing.T) {
	offer := makeOffer()

	// 2*11900-1900 = 21900; tax 21900*19/119 = 3496.6 -> 3497.
	item, _ := offer.ItemByID("item-1")
	if item.TotalPriceMinor != 21900 || item.TaxMinor != 3497 {
		t.Fatalf("unexpected product totals: total=%d tax=%d", item.TotalPriceMinor, item.TaxMinor)
	}
	if offer.TotalMinor != 26900 {
		t.Fatalf("expected total 26900, got %d", offer.TotalMinor)
	}
	if offer.SubtotalMinor+offer.TaxMinor != offer.TotalMinor {
		t.Fatalf("subtotal %d + tax %d != total %d", offer.SubtotalMinor, offer.TaxMinor, offer.TotalMinor)
	}
	if errs := offer.ValidateInvariants(); len(errs) != 0 {
		t.Fatalf("expected no invariant violations, got %v", errs)
	}
}

func TestValidateInvariants_Errors(t *testing.T) {
	cases := []struct {
		name string
		mut  func(o *domain.Offer)
		want error
	}{
		{name: "no currency", mut: func(o *domain.Offer) { o.Currency = "" }, want: domain.ErrCurrencyRequired},
		{name: "bad email", mut: func(o *domain.Offer) { o.Customer.Email = "nope" }, want: domain.ErrCustomerEmailInvalid},
		{name: "total mismatch", mut: func(o *domain.Offer) { o.TotalMinor++ }, want: domain.ErrAmountMismatch},
		{name: "zero qty", mut: func(o *domain.Offer) { o.Items[0].Quantity = 0 }, want: domain.ErrItemQtyInvalid},
		{name: "tax rate", mut: func(o *domain.Offer) { o.Items[0].TaxRate = decimal.NewFromInt(101) }, want: domain.ErrTaxRateInvalid},
		{name: "discount", mut: func(o *domain.Offer) { o.Items[0].DiscountMinor = -1 }, want: domain.ErrItemDiscountInvalid},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			offer := makeOffer()
			tc.mut(&offer)
			err := domain.NewValidationError(offer.ValidateInvariants())
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v in %v", tc.want, err)
			}
		})
	}
}

func TestHasReservationsAndDisplayOrder(t *testing.T) {
	offer := makeOffer()
	if offer.HasReservations() {
		t.Fatal("fresh offer must not hold reservations")
	}

	ordered := offer.ItemsInDisplayOrder()
	if ordered[0].ID != "item-1" || ordered[1].ID != "item-2" {
		t.Fatalf("unexpected display order: %s, %s", ordered[0].ID, ordered[1].ID)
	}
	if !ordered[0].Reservable() || ordered[1].Reservable() {
		t.Fatal("only products are reservable")
	}
	if ordered[0].InventoryVariant() != "sofa-grey" {
		t.Fatalf("expected variant ref, got %s", ordered[0].InventoryVariant())
	}

	offer.Items[1].ReservationID = "res-1"
	if !offer.HasReservations() {
		t.Fatal("expected has_reservations after assigning reservation id")
	}
}

func TestApplyStatusSetsTimestampsOnce(t *testing.T) {
	offer := makeOffer()
	first := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)

	offer.ApplyStatus(domain.OfferStatusAccepted, first)
	offer.ApplyStatus(domain.OfferStatusAccepted, first.Add(time.Hour))

	if offer.AcceptedAt == nil || !offer.AcceptedAt.Equal(first) {
		t.Fatalf("accepted_at must be set once, got %v", offer.AcceptedAt)
	}
	if offer.CompletedAt != nil || offer.CancelledAt != nil {
		t.Fatal("unrelated timestamps must stay unset")
	}
}

func TestCloneIsDeep(t *testing.T) {
	offer := makeOffer()
	offer.NotificationOverrides = map[domain.OfferEvent]bool{domain.EventActivated: false}

	clone := offer.Clone()
	clone.Items[0].Quantity = 99
	clone.NotificationOverrides[domain.EventActivated] = true

	if offer.Items[0].Quantity == 99 || offer.NotificationOverrides[domain.EventActivated] {
		t.Fatal("clone shares state with original")
	}
}

func TestFormatOfferNumberAndFilter(t *testing.T) {
	if got := domain.FormatOfferNumber("ANG-", 42); got != "ANG-00042" {
		t.Fatalf("unexpected number %q", got)
	}
	f := domain.OfferFilter{Limit: 1000, Offset: -3}.Normalize()
	if f.Limit != domain.MaxPageSize || f.Offset != 0 {
		t.Fatalf("unexpected normalized filter %+v", f)
	}
}

func TestEmailMatches(t *testing.T) {
	c := domain.CustomerSnapshot{Email: "Jane@Example.com"}
	if !c.EmailMatches("  jane@example.com ") {
		t.Fatal("expected case-insensitive match")
	}
	if c.EmailMatches("john@example.com") || (domain.CustomerSnapshot{}).EmailMatches("") {
		t.Fatal("unexpected match")
	}
}
