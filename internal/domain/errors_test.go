package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestKind(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{name: "nil", err: nil, want: ""},
		{name: "not found", err: ErrOfferNotFound, want: KindNotFound},
		{name: "wrapped not found", err: fmt.Errorf("get offer: %w", ErrOfferNotFound), want: KindNotFound},
		{name: "invalid transition", err: ErrInvalidTransition, want: KindInvalidTransition},
		{name: "empty items", err: ErrEmptyOfferItems, want: KindInvalidTransition},
		{name: "concurrent", err: ErrConcurrentModification, want: KindConcurrentModification},
		{name: "already processed", err: ErrAlreadyProcessed, want: KindAlreadyProcessed},
		{
			name: "reservation error",
			err:  &ReservationError{ItemID: "i-1", VariantID: "v-1", Err: ErrInventoryUnavailable},
			want: KindReservation,
		},
		{
			name: "validation error",
			err:  NewValidationError([]error{ErrCurrencyRequired, ErrItemQtyInvalid}),
			want: KindValidation,
		},
		{name: "token expired", err: ErrTokenExpired, want: KindValidation},
		{name: "unknown", err: errors.New("boom"), want: KindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Kind(tt.err); got != tt.want {
				t.Errorf("Kind() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestReservationErrorMatchesSentinels(t *testing.T) {
	err := fmt.Errorf("activate: %w", &ReservationError{ItemID: "i-1", Err: ErrInventoryTemporary})

	if !errors.Is(err, ErrReservationFailed) {
		t.Fatalf("expected ErrReservationFailed to match %v", err)
	}
	if !errors.Is(err, ErrInventoryTemporary) {
		t.Fatalf("expected cause to be reachable through %v", err)
	}
	var resErr *ReservationError
	if !errors.As(err, &resErr) || resErr.ItemID != "i-1" {
		t.Fatalf("expected ReservationError with item id, got %#v", resErr)
	}
}

func TestValidationErrorUnwrap(t *testing.T) {
	if NewValidationError(nil) != nil {
		t.Fatal("expected nil for empty violations")
	}
	err := NewValidationError([]error{ErrCurrencyRequired, ErrItemQtyInvalid})
	if !errors.Is(err, ErrItemQtyInvalid) {
		t.Fatalf("expected ErrItemQtyInvalid inside %v", err)
	}
}

func TestIsVersionConflict(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "conflict", err: ErrConcurrentModification, want: true},
		{name: "joined conflict", err: errors.Join(ErrConcurrentModification, errors.New("additional context")), want: true},
		{name: "other error", err: ErrOfferNotFound, want: false},
		{name: "nil error", err: nil, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsVersionConflict(tt.err); got != tt.want {
				t.Errorf("IsVersionConflict() = %v, want %v", got, tt.want)
			}
			if got := Retryable(tt.err); got != tt.want {
				t.Errorf("Retryable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRetryable_TemporaryInventory(t *testing.T) {
	if !Retryable(fmt.Errorf("check availability: %w", ErrInventoryTemporary)) {
		t.Fatal("temporary inventory failure must be retryable")
	}
	if Retryable(&ReservationError{ItemID: "i-1", Err: ErrInventoryUnavailable}) {
		t.Fatal("out of stock must not be retryable")
	}
	if got := Kind(ErrInventoryTemporary); got != KindReservation {
		t.Fatalf("Kind() = %s, want %s", got, KindReservation)
	}
}

func TestIsIdempotencyConflict(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "already exists", err: ErrIdempotencyKeyAlreadyExists, want: true},
		{name: "hash mismatch", err: ErrIdempotencyHashMismatch, want: true},
		{name: "joined", err: errors.Join(ErrIdempotencyHashMismatch, errors.New("extra context")), want: true},
		{name: "other", err: ErrConcurrentModification, want: false},
		{name: "nil", err: nil, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsIdempotencyConflict(tt.err); got != tt.want {
				t.Errorf("IsIdempotencyConflict() = %v, want %v", got, tt.want)
			}
		})
	}
}
