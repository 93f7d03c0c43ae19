package acceptance

import (
	"context"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/offers/internal/domain"
	"github.com/vladislavdragonenkov/offers/internal/metrics"
	"github.com/vladislavdragonenkov/offers/internal/service/inventory"
	"github.com/vladislavdragonenkov/offers/internal/service/lifecycle"
	"github.com/vladislavdragonenkov/offers/internal/service/notify"
	"github.com/vladislavdragonenkov/offers/internal/service/reservation"
	"github.com/vladislavdragonenkov/offers/internal/storage/memory"
)

type harness struct {
	machine *lifecycle.Machine
	history domain.HistoryRepository
	gateway *Gateway
	issuer  *LinkIssuer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	offers := memory.NewOfferRepository()
	history := memory.NewHistoryRepository()
	outbox := memory.NewOutboxRepository()
	stock := inventory.NewUnlimitedStock()
	m := metrics.NewOfferMetricsWithRegisterer(prometheus.NewRegistry())

	machine := lifecycle.NewMachine(lifecycle.Dependencies{
		Offers:       offers,
		History:      history,
		Outbox:       outbox,
		Tx:           memory.NewTxManager(),
		Reservations: reservation.NewCoordinator(offers, stock, reservation.WithLocker(memory.NewOfferLocker())),
		Inventory:    stock,
		Notifier:     notify.NewDispatcher(outbox, nil, nil, m, nil),
		Metrics:      m,
	}, lifecycle.Config{})

	tokens, err := NewTokens(testSecret, time.Hour, "offers")
	require.NoError(t, err)

	return &harness{
		machine: machine,
		history: history,
		gateway: NewGateway(machine, tokens, nil),
		issuer:  NewLinkIssuer(machine, tokens),
	}
}

func (h *harness) activeOffer(t *testing.T) (domain.Offer, string) {
	t.Helper()
	ctx := context.Background()
	offer, err := h.machine.Create(ctx, lifecycle.CreateInput{
		Currency: "EUR",
		Customer: domain.CustomerSnapshot{Name: "Jane", Email: "Jane@Example.com"},
		Items: []domain.OfferItem{{
			ItemType: domain.ItemTypeProduct, ProductID: "sofa", Quantity: 1, UnitPriceMinor: 99900,
		}},
	})
	require.NoError(t, err)
	_, err = h.machine.Activate(ctx, offer.ID, "admin:1")
	require.NoError(t, err)

	token, _, err := h.issuer.Issue(ctx, offer.ID)
	require.NoError(t, err)
	return offer, token
}

func TestGateway_AcceptOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	offer, token := h.activeOffer(t)

	result, err := h.gateway.Accept(ctx, offer.ID, token, "jane@example.com")
	require.NoError(t, err)
	assert.Equal(t, offer.Number, result.OfferNumber)
	assert.False(t, result.AcceptedAt.IsZero())

	_, err = h.gateway.Accept(ctx, offer.ID, token, "jane@example.com")
	require.ErrorIs(t, err, domain.ErrAlreadyProcessed)
	assert.Equal(t, domain.KindAlreadyProcessed, domain.Kind(err))

	entries, err := h.history.ListFor(ctx, offer.ID)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, domain.EventAccepted, entries[2].Event)
	assert.Equal(t, "customer:jane@example.com", entries[2].Actor)
}

func TestGateway_RejectsBadInput(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	offer, token := h.activeOffer(t)

	_, err := h.gateway.Accept(ctx, offer.ID, "", "jane@example.com")
	assert.ErrorIs(t, err, domain.ErrTokenMissing)

	_, err = h.gateway.Accept(ctx, offer.ID, token, "mallory@example.com")
	assert.ErrorIs(t, err, domain.ErrEmailMismatch)

	_, err = h.gateway.Accept(ctx, offer.ID, token+"x", "jane@example.com")
	assert.ErrorIs(t, err, domain.ErrTokenInvalid)

	stored, err := h.machine.Get(ctx, offer.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OfferStatusActive, stored.Status)
}

func TestGateway_NotAcceptableStatus(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	offer, token := h.activeOffer(t)

	_, err := h.machine.Cancel(ctx, offer.ID, "admin:1")
	require.NoError(t, err)

	_, err = h.gateway.Accept(ctx, offer.ID, token, "jane@example.com")
	require.ErrorIs(t, err, domain.ErrNotAcceptable)

	_, _, err = h.issuer.Issue(ctx, offer.ID)
	assert.ErrorIs(t, err, domain.ErrNotAcceptable)
}

func TestGateway_ConcurrentAcceptOneWins(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	offer, token := h.activeOffer(t)

	const callers = 4
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	wg.Add(callers)
	for i := 0; i < callers; i++ {
		go func() {
			defer wg.Done()
			_, err := h.gateway.Accept(ctx, offer.ID, token, "jane@example.com")
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
		}()
	}
	wg.Wait()

	var success int
	for _, err := range errs {
		if err == nil {
			success++
			continue
		}
		kind := domain.Kind(err)
		assert.True(t, kind == domain.KindAlreadyProcessed || kind == domain.KindConcurrentModification, "unexpected error: %v", err)
	}
	assert.Equal(t, 1, success)

	entries, err := h.history.ListFor(ctx, offer.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}

type fixedAttachment struct {
	link string
}

func (f fixedAttachment) AttachmentURL(_ context.Context, offer domain.Offer) (string, bool) {
	if f.link == "" {
		return "", false
	}
	return f.link + offer.ID + "/pdf", true
}

func TestSignedAttachments_AppendCustomerToken(t *testing.T) {
	tokens, err := NewTokens(testSecret, time.Hour, "offers")
	require.NoError(t, err)
	offer := domain.Offer{ID: "offer-7", Customer: domain.CustomerSnapshot{Email: "jane@example.com"}}

	signed := NewSignedAttachments(fixedAttachment{link: "https://offers.example.com/public/offers/"}, tokens)
	link, ok := signed.AttachmentURL(context.Background(), offer)
	require.True(t, ok)

	u, err := url.Parse(link)
	require.NoError(t, err)
	assert.Equal(t, "/public/offers/offer-7/pdf", u.Path)
	email, err := tokens.Verify(u.Query().Get("token"), "offer-7")
	require.NoError(t, err)
	assert.Equal(t, "jane@example.com", email)

	_, ok = NewSignedAttachments(fixedAttachment{}, tokens).AttachmentURL(context.Background(), offer)
	assert.False(t, ok)
}
