package domain

import (
	"errors"
	"testing"
	"time"
)

func TestIdempotencyStatusValid(t *testing.T) {
	for _, status := range []IdempotencyStatus{IdempotencyStatusProcessing, IdempotencyStatusDone, IdempotencyStatusFailed} {
		if !status.Valid() {
			t.Fatalf("status %q must be valid", status)
		}
	}
	if IdempotencyStatus("broken").Valid() {
		t.Fatal("unknown status must be invalid")
	}
}

func TestNewIdempotencyRecord(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	record, err := NewIdempotencyRecord("  key-1 ", " hash ", time.Time{}, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if record.Key != "key-1" || record.RequestHash != "hash" {
		t.Fatalf("key and hash must be trimmed: %+v", record)
	}
	if record.Status != IdempotencyStatusProcessing {
		t.Fatalf("new record must be processing, got %s", record.Status)
	}
	if !record.TTLAt.Equal(now.Add(DefaultIdempotencyTTL)) {
		t.Fatalf("default ttl expected, got %s", record.TTLAt)
	}

	if _, err := NewIdempotencyRecord(" ", "hash", now, now); !errors.Is(err, ErrIdempotencyKeyRequired) {
		t.Fatalf("expected ErrIdempotencyKeyRequired, got %v", err)
	}
	if _, err := NewIdempotencyRecord("key", "", now, now); !errors.Is(err, ErrIdempotencyRequestHashRequired) {
		t.Fatalf("expected ErrIdempotencyRequestHashRequired, got %v", err)
	}
}

func TestIdempotencyRecordExpiryAndRelease(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	record := IdempotencyRecord{TTLAt: now, Status: IdempotencyStatusFailed}

	if !record.Expired(now) {
		t.Fatal("record must expire exactly at ttl")
	}
	if record.Expired(now.Add(-time.Second)) {
		t.Fatal("record must be alive before ttl")
	}
	if !record.Releasable() {
		t.Fatal("failed record must be releasable")
	}
	record.Status = IdempotencyStatusDone
	if record.Releasable() {
		t.Fatal("stored success must not be released")
	}
}
