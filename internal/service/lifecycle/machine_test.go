package lifecycle

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/offers/internal/domain"
	"github.com/vladislavdragonenkov/offers/internal/metrics"
	"github.com/vladislavdragonenkov/offers/internal/service/inventory"
	"github.com/vladislavdragonenkov/offers/internal/service/notify"
	"github.com/vladislavdragonenkov/offers/internal/service/reservation"
	"github.com/vladislavdragonenkov/offers/internal/storage/memory"
)

const testLocation = "main"

type fixture struct {
	machine   *Machine
	offers    domain.OfferRepository
	history   domain.HistoryRepository
	outbox    *memory.OutboxRepository
	stock     *inventory.Stock
	documents *documentsSpy
}

type documentsSpy struct {
	mu          sync.Mutex
	invalidated []string
	err         error
}

func (d *documentsSpy) Invalidate(_ context.Context, offerID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.invalidated = append(d.invalidated, offerID)
	return d.err
}

func (d *documentsSpy) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.invalidated)
}

func newFixture(t *testing.T, offers domain.OfferRepository) *fixture {
	t.Helper()
	if offers == nil {
		offers = memory.NewOfferRepository()
	}
	stock := inventory.NewStock()
	stock.SetAvailable("v-1", testLocation, 10)
	stock.SetAvailable("v-2", testLocation, 10)

	m := metrics.NewOfferMetricsWithRegisterer(prometheus.NewRegistry())
	outbox := memory.NewOutboxRepository()
	history := memory.NewHistoryRepository()
	docs := &documentsSpy{}
	coordinator := reservation.NewCoordinator(offers, stock,
		reservation.WithLocation(testLocation),
		reservation.WithLocker(memory.NewOfferLocker()),
		reservation.WithMetrics(m),
	)

	machine := NewMachine(Dependencies{
		Offers:       offers,
		History:      history,
		Outbox:       outbox,
		Tx:           memory.NewTxManager(),
		Reservations: coordinator,
		Inventory:    stock,
		Notifier:     notify.NewDispatcher(outbox, nil, nil, m, nil),
		Documents:    docs,
		Metrics:      m,
	}, Config{Location: testLocation})

	return &fixture{
		machine:   machine,
		offers:    offers,
		history:   history,
		outbox:    outbox,
		stock:     stock,
		documents: docs,
	}
}

func productItem(variant string, qty int64) domain.OfferItem {
	return domain.OfferItem{
		ItemType:       domain.ItemTypeProduct,
		ProductID:      "prod-" + variant,
		VariantID:      variant,
		Name:           "Sofa " + variant,
		Quantity:       qty,
		UnitPriceMinor: 10000,
		TaxRate:        decimal.NewFromInt(19),
	}
}

func serviceItem() domain.OfferItem {
	return domain.OfferItem{
		ItemType:       domain.ItemTypeService,
		ProductID:      "assembly",
		Quantity:       1,
		UnitPriceMinor: 2500,
	}
}

func (f *fixture) create(t *testing.T, items ...domain.OfferItem) domain.Offer {
	t.Helper()
	offer, err := f.machine.Create(context.Background(), CreateInput{
		Currency: "eur",
		Customer: domain.CustomerSnapshot{Name: "Jane Doe", Email: "jane@example.com"},
		Items:    items,
		Actor:    "admin:1",
	})
	require.NoError(t, err)
	return offer
}

func (f *fixture) events(t *testing.T, eventType string) []domain.OutboxMessage {
	t.Helper()
	var out []domain.OutboxMessage
	for _, msg := range f.outbox.AllPending() {
		if msg.EventType == eventType {
			out = append(out, msg)
		}
	}
	return out
}

func TestCreate_AssignsNumberAndHistory(t *testing.T) {
	f := newFixture(t, nil)

	first := f.create(t, productItem("v-1", 2), serviceItem())
	second := f.create(t, serviceItem())

	assert.Equal(t, "ANG-00001", first.Number)
	assert.Equal(t, "ANG-00002", second.Number)
	assert.Equal(t, domain.OfferStatusDraft, first.Status)
	assert.Equal(t, "EUR", first.Currency)
	assert.Equal(t, int64(22500), first.TotalMinor)
	assert.Equal(t, first.TotalMinor, first.SubtotalMinor+first.TaxMinor)
	assert.Equal(t, 1, first.Items[0].SortOrder)
	assert.Equal(t, 2, first.Items[1].SortOrder)

	entries, err := f.machine.History(context.Background(), first.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, domain.EventCreated, entries[0].Event)
	assert.Empty(t, entries[0].FromStatus)
	assert.False(t, entries[0].NotificationSent)

	assert.Len(t, f.events(t, domain.OutboxEventStatusChanged), 2)
	assert.Empty(t, f.events(t, domain.OutboxEventNotificationRequested))
}

func TestCreate_RejectsInvalidInput(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.machine.Create(context.Background(), CreateInput{
		Customer: domain.CustomerSnapshot{Name: "", Email: "not-an-email"},
		Items:    []domain.OfferItem{{ItemType: "gift", Quantity: 0}},
	})
	require.Error(t, err)
	assert.Equal(t, domain.KindValidation, domain.Kind(err))
	assert.ErrorIs(t, err, domain.ErrCurrencyRequired)
	assert.ErrorIs(t, err, domain.ErrCustomerEmailInvalid)
	assert.ErrorIs(t, err, domain.ErrItemQtyInvalid)

	_, total, err := f.offers.List(context.Background(), domain.OfferFilter{})
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestTransition_RejectsEdgesOutsideGraph(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	offer := f.create(t, serviceItem())

	_, err := f.machine.Accept(ctx, offer.ID, "admin:1")
	require.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = f.machine.Complete(ctx, offer.ID, "admin:1")
	require.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = f.machine.Transition(ctx, offer.ID, "archived", "admin:1")
	assert.Equal(t, domain.KindValidation, domain.Kind(err))

	_, err = f.machine.Transition(ctx, "missing", domain.OfferStatusActive, "admin:1")
	require.ErrorIs(t, err, domain.ErrOfferNotFound)
}

func TestFullLifecycle_SetsTimestampsOnce(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	offer := f.create(t, productItem("v-1", 1))

	_, err := f.machine.Activate(ctx, offer.ID, "admin:1")
	require.NoError(t, err)
	accepted, err := f.machine.Accept(ctx, offer.ID, "customer:jane@example.com")
	require.NoError(t, err)
	require.NotNil(t, accepted.AcceptedAt)

	completed, err := f.machine.Complete(ctx, offer.ID, "admin:1")
	require.NoError(t, err)
	assert.Equal(t, domain.OfferStatusCompleted, completed.Status)
	require.NotNil(t, completed.CompletedAt)
	assert.Equal(t, *accepted.AcceptedAt, *completed.AcceptedAt)
	// Резервы после завершения потребляет внешняя система заказов.
	assert.True(t, completed.HasReservations())

	_, err = f.machine.Cancel(ctx, offer.ID, "admin:1")
	require.ErrorIs(t, err, domain.ErrInvalidTransition)

	entries, err := f.machine.History(ctx, offer.ID)
	require.NoError(t, err)
	var events []domain.OfferEvent
	for _, entry := range entries {
		events = append(events, entry.Event)
	}
	assert.Equal(t, []domain.OfferEvent{
		domain.EventCreated, domain.EventActivated, domain.EventAccepted, domain.EventCompleted,
	}, events)
	assert.Equal(t, "customer:jane@example.com", entries[2].Actor)

	changed := f.events(t, domain.OutboxEventStatusChanged)
	require.Len(t, changed, 4)
	var payload domain.StatusChangedPayload
	require.NoError(t, json.Unmarshal(changed[3].Payload, &payload))
	assert.Equal(t, domain.OfferStatusAccepted, payload.FromStatus)
	assert.Equal(t, domain.OfferStatusCompleted, payload.ToStatus)
}

func TestTransition_NotificationOverrideDisablesDispatch(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	offer, err := f.machine.Create(ctx, CreateInput{
		Currency:              "EUR",
		Customer:              domain.CustomerSnapshot{Name: "Jane", Email: "jane@example.com"},
		Items:                 []domain.OfferItem{serviceItem()},
		NotificationOverrides: map[domain.OfferEvent]bool{domain.EventActivated: false},
	})
	require.NoError(t, err)

	_, err = f.machine.Activate(ctx, offer.ID, "admin:1")
	require.NoError(t, err)

	entries, err := f.machine.History(ctx, offer.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.False(t, entries[1].NotificationSent)
	assert.Empty(t, entries[1].NotificationMethod)
	assert.Empty(t, f.events(t, domain.OutboxEventNotificationRequested))
}

func TestTransition_SideEffectFailuresDoNotFailTransition(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	offer := f.create(t, serviceItem())
	f.documents.err = errors.New("disk full")

	active, err := f.machine.Activate(ctx, offer.ID, "admin:1")
	require.NoError(t, err)
	assert.Equal(t, domain.OfferStatusActive, active.Status)
}

func TestCancel_ReleaseFailureKeepsCancelled(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	offer := f.create(t, productItem("v-1", 1), productItem("v-2", 1))

	active, err := f.machine.Activate(ctx, offer.ID, "admin:1")
	require.NoError(t, err)
	stuck := active.Items[0].ReservationID
	f.stock.ReleaseErrors[stuck] = domain.ErrInventoryTemporary

	cancelled, err := f.machine.Cancel(ctx, offer.ID, "admin:1")
	require.NoError(t, err)
	assert.Equal(t, domain.OfferStatusCancelled, cancelled.Status)
	item, ok := cancelled.ItemByID(active.Items[0].ID)
	require.True(t, ok)
	assert.Equal(t, stuck, item.ReservationID)
	assert.True(t, cancelled.HasReservations())
}

// barrierRepository задерживает первые чтения, пока оба вызова не прочитают одно состояние.
type barrierRepository struct {
	domain.OfferRepository
	waiting int32
	arrived chan struct{}
	once    sync.Once
}

func newBarrierRepository(inner domain.OfferRepository) *barrierRepository {
	return &barrierRepository{OfferRepository: inner, arrived: make(chan struct{})}
}

func (r *barrierRepository) Get(ctx context.Context, id string) (domain.Offer, error) {
	offer, err := r.OfferRepository.Get(ctx, id)
	if n := atomic.AddInt32(&r.waiting, 1); n <= 2 {
		if n == 2 {
			r.once.Do(func() { close(r.arrived) })
		}
		select {
		case <-r.arrived:
		case <-time.After(2 * time.Second):
		}
	}
	return offer, err
}

func TestTransition_ConcurrentTargetsOneWins(t *testing.T) {
	inner := memory.NewOfferRepository()
	f := newFixture(t, inner)
	ctx := context.Background()
	offer := f.create(t, productItem("v-1", 1))
	_, err := f.machine.Activate(ctx, offer.ID, "admin:1")
	require.NoError(t, err)

	barrier := newBarrierRepository(inner)
	f.machine.offers = barrier

	var (
		wg      sync.WaitGroup
		results = make([]error, 2)
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, results[0] = f.machine.Accept(ctx, offer.ID, "customer:jane@example.com")
	}()
	go func() {
		defer wg.Done()
		_, results[1] = f.machine.Cancel(ctx, offer.ID, "admin:1")
	}()
	wg.Wait()

	var success, conflicts int
	for _, err := range results {
		switch {
		case err == nil:
			success++
		case errors.Is(err, domain.ErrConcurrentModification):
			conflicts++
			assert.True(t, domain.Retryable(err))
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, success)
	assert.Equal(t, 1, conflicts)

	stored, err := inner.Get(ctx, offer.ID)
	require.NoError(t, err)
	assert.Contains(t, []domain.OfferStatus{domain.OfferStatusAccepted, domain.OfferStatusCancelled}, stored.Status)

	entries, err := f.history.ListFor(ctx, offer.ID)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, stored.Status, entries[2].ToStatus)
}

// editBeforeLockRepository один раз выполняет правку сразу после первого чтения.
type editBeforeLockRepository struct {
	domain.OfferRepository
	once sync.Once
	edit func()
}

func (r *editBeforeLockRepository) Get(ctx context.Context, id string) (domain.Offer, error) {
	offer, err := r.OfferRepository.Get(ctx, id)
	r.once.Do(r.edit)
	return offer, err
}

func TestActivate_RechecksItemsUnderLock(t *testing.T) {
	inner := memory.NewOfferRepository()
	f := newFixture(t, inner)
	ctx := context.Background()
	offer := f.create(t, productItem("v-1", 1))

	f.machine.offers = &editBeforeLockRepository{
		OfferRepository: inner,
		edit: func() {
			_, err := f.machine.RemoveItem(ctx, offer.ID, offer.Items[0].ID)
			require.NoError(t, err)
		},
	}

	_, err := f.machine.Activate(ctx, offer.ID, "admin:1")
	require.ErrorIs(t, err, domain.ErrEmptyOfferItems)

	stored, err := inner.Get(ctx, offer.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OfferStatusDraft, stored.Status)
	assert.Empty(t, stored.Items)
	assert.Zero(t, f.stock.ActiveReservations())

	entries, err := f.history.ListFor(ctx, offer.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
	assert.Empty(t, f.events(t, domain.OutboxEventNotificationRequested))
}

func TestCancel_EmptyDraftIsAllowed(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	offer := f.create(t, serviceItem())

	_, err := f.machine.RemoveItem(ctx, offer.ID, offer.Items[0].ID)
	require.NoError(t, err)

	cancelled, err := f.machine.Cancel(ctx, offer.ID, "admin:1")
	require.NoError(t, err)
	assert.Equal(t, domain.OfferStatusCancelled, cancelled.Status)
	assert.NotNil(t, cancelled.CancelledAt)
}

// refusingNotifier не может поставить запрос уведомления.
type refusingNotifier struct {
	Notifier
}

func (refusingNotifier) Dispatch(context.Context, domain.Offer, domain.OfferEvent) error {
	return errors.New("outbox unavailable")
}

func TestTransition_HistoryRecordsOnlyQueuedNotifications(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	offer := f.create(t, serviceItem())

	_, err := f.machine.Activate(ctx, offer.ID, "admin:1")
	require.NoError(t, err)

	f.machine.notifier = refusingNotifier{Notifier: f.machine.notifier}
	cancelled, err := f.machine.Cancel(ctx, offer.ID, "admin:1")
	require.NoError(t, err)
	assert.Equal(t, domain.OfferStatusCancelled, cancelled.Status)

	entries, err := f.history.ListFor(ctx, offer.ID)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.True(t, entries[1].NotificationSent)
	assert.Equal(t, domain.NotificationMethodEmail, entries[1].NotificationMethod)
	assert.False(t, entries[2].NotificationSent)
	assert.Empty(t, entries[2].NotificationMethod)
	assert.Len(t, f.events(t, domain.OutboxEventNotificationRequested), 1)
}
