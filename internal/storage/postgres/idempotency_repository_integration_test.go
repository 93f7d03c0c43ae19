package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/vladislavdragonenkov/offers/internal/domain"
)

type IdempotencyRepositorySuite struct {
	suite.Suite
	repo *IdempotencyRepository
	ctx  context.Context
	now  time.Time
}

func TestIdempotencyRepositorySuite(t *testing.T) {
	suite.Run(t, new(IdempotencyRepositorySuite))
}

func (s *IdempotencyRepositorySuite) SetupTest() {
	store := openPostgresStoreForIntegrationTest(s.T())
	s.repo = NewIdempotencyRepository(store)
	s.ctx = context.Background()
	s.now = time.Now().UTC().Truncate(time.Second)
}

func (s *IdempotencyRepositorySuite) claim(key, hash string, ttl time.Duration) domain.IdempotencyRecord {
	record, err := s.repo.CreateProcessing(s.ctx, key, hash, s.now.Add(ttl))
	s.Require().NoError(err)
	return record
}

func (s *IdempotencyRepositorySuite) TestStoresResponseForReplay() {
	created := s.claim("activate-offer-1", "hash-1", 2*time.Hour)
	s.Equal(domain.IdempotencyStatusProcessing, created.Status)

	s.Require().NoError(s.repo.MarkDone(s.ctx, "activate-offer-1", []byte(`{"offer_id":"o-1","version":2}`), 0))

	got, err := s.repo.Get(s.ctx, " activate-offer-1 ")
	s.Require().NoError(err)
	s.Equal("hash-1", got.RequestHash)
	s.Equal(domain.IdempotencyStatusDone, got.Status)
	s.Zero(got.StatusCode)
	s.JSONEq(`{"offer_id":"o-1","version":2}`, string(got.ResponseBody))
	s.True(got.TTLAt.Equal(s.now.Add(2*time.Hour)), "ttl %s", got.TTLAt)
}

func (s *IdempotencyRepositorySuite) TestLiveKeyConflicts() {
	s.claim("cancel-offer-1", "hash-a", time.Hour)

	existing, err := s.repo.CreateProcessing(s.ctx, "cancel-offer-1", "hash-a", s.now.Add(time.Hour))
	s.ErrorIs(err, domain.ErrIdempotencyKeyAlreadyExists)
	s.Equal(domain.IdempotencyStatusProcessing, existing.Status)

	_, err = s.repo.CreateProcessing(s.ctx, "cancel-offer-1", "hash-b", s.now.Add(time.Hour))
	s.ErrorIs(err, domain.ErrIdempotencyHashMismatch)
}

func (s *IdempotencyRepositorySuite) TestFailedOutcomeKeepsStatusCode() {
	s.claim("accept-offer-1", "hash", time.Hour)
	s.Require().NoError(s.repo.MarkFailed(s.ctx, "accept-offer-1", []byte("offer is not available for acceptance"), 9))

	got, err := s.repo.Get(s.ctx, "accept-offer-1")
	s.Require().NoError(err)
	s.Equal(domain.IdempotencyStatusFailed, got.Status)
	s.Equal(9, got.StatusCode)

	s.ErrorIs(s.repo.MarkDone(s.ctx, "missing", nil, 0), domain.ErrIdempotencyKeyNotFound)
	s.ErrorIs(s.repo.MarkDone(s.ctx, "  ", nil, 0), domain.ErrIdempotencyKeyRequired)
}

func (s *IdempotencyRepositorySuite) TestDeleteExpiredOldestFirst() {
	s.claim("expired-1", "h1", -5*time.Minute)
	s.claim("expired-2", "h2", -4*time.Minute)
	s.claim("expired-3", "h3", -3*time.Minute)
	s.claim("active-1", "h4", time.Hour)

	removed, err := s.repo.DeleteExpired(s.ctx, s.now, 2)
	s.Require().NoError(err)
	s.Equal(2, removed)

	_, err = s.repo.Get(s.ctx, "expired-3")
	s.NoError(err, "the newest expired key survives a limited pass")

	removed, err = s.repo.DeleteExpired(s.ctx, s.now, 0)
	s.Require().NoError(err)
	s.Equal(1, removed)

	_, err = s.repo.Get(s.ctx, "active-1")
	s.NoError(err)
}

func (s *IdempotencyRepositorySuite) TestReclaimExpiredAndRelease() {
	s.claim("submit-offer-1", "old-hash", -time.Minute)

	reclaimed, err := s.repo.CreateProcessing(s.ctx, "submit-offer-1", "new-hash", s.now.Add(time.Hour))
	s.Require().NoError(err)
	s.Equal("new-hash", reclaimed.RequestHash)

	s.Require().NoError(s.repo.Release(s.ctx, "submit-offer-1"))
	_, err = s.repo.Get(s.ctx, "submit-offer-1")
	s.ErrorIs(err, domain.ErrIdempotencyKeyNotFound)

	s.claim("complete-offer-1", "h", time.Hour)
	s.Require().NoError(s.repo.MarkDone(s.ctx, "complete-offer-1", []byte(`{}`), 0))
	s.Require().NoError(s.repo.Release(s.ctx, "complete-offer-1"))

	got, err := s.repo.Get(s.ctx, "complete-offer-1")
	s.Require().NoError(err)
	s.Equal(domain.IdempotencyStatusDone, got.Status)
}
