package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/offers/internal/auth"
	"github.com/vladislavdragonenkov/offers/internal/domain"
	"github.com/vladislavdragonenkov/offers/internal/metrics"
	"github.com/vladislavdragonenkov/offers/internal/service/acceptance"
	"github.com/vladislavdragonenkov/offers/internal/service/document"
	"github.com/vladislavdragonenkov/offers/internal/service/inventory"
	"github.com/vladislavdragonenkov/offers/internal/service/lifecycle"
	"github.com/vladislavdragonenkov/offers/internal/service/notify"
	"github.com/vladislavdragonenkov/offers/internal/service/reservation"
	"github.com/vladislavdragonenkov/offers/internal/storage/memory"
)

const (
	testAdminSecret = "http-admin-secret"
	testTokenSecret = "http-acceptance-secret-0123456789"
)

type stubRenderer struct{}

func (stubRenderer) Render(_ context.Context, offer domain.Offer) ([]byte, error) {
	return []byte("%PDF-1.4 " + offer.Number), nil
}

type env struct {
	router    *gin.Engine
	machine   *lifecycle.Machine
	documents *document.Cache
	issuer    *acceptance.LinkIssuer
	tokens    *acceptance.Tokens
	auth      *auth.Authenticator
}

func newEnv(t *testing.T) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)

	offers := memory.NewOfferRepository()
	outbox := memory.NewOutboxRepository()
	stock := inventory.NewUnlimitedStock()
	m := metrics.NewOfferMetricsWithRegisterer(prometheus.NewRegistry())
	cache := document.NewCache(offers, memory.NewDocumentStore(), stubRenderer{}, document.Config{PublicBaseURL: "https://offers.example.com"}, m, nil)

	machine := lifecycle.NewMachine(lifecycle.Dependencies{
		Offers:       offers,
		History:      memory.NewHistoryRepository(),
		Outbox:       outbox,
		Tx:           memory.NewTxManager(),
		Reservations: reservation.NewCoordinator(offers, stock, reservation.WithLocker(memory.NewOfferLocker())),
		Inventory:    stock,
		Notifier:     notify.NewDispatcher(outbox, nil, nil, m, nil),
		Documents:    cache,
		Metrics:      m,
	}, lifecycle.Config{})

	tokens, err := acceptance.NewTokens(testTokenSecret, time.Hour, "offers")
	require.NoError(t, err)
	authenticator := auth.NewAuthenticator(testAdminSecret)

	router := NewRouter(Dependencies{
		Acceptor:  acceptance.NewGateway(machine, tokens, nil),
		Documents: cache,
		Offers:    machine,
		Auth:      authenticator,
		Tokens:    tokens,
	}, Config{AllowedOrigins: []string{"https://shop.example.com"}})

	return &env{
		router:    router,
		machine:   machine,
		documents: cache,
		issuer:    acceptance.NewLinkIssuer(machine, tokens),
		tokens:    tokens,
		auth:      authenticator,
	}
}

func (e *env) activeOffer(t *testing.T) (domain.Offer, string) {
	t.Helper()
	ctx := context.Background()
	offer, err := e.machine.Create(ctx, lifecycle.CreateInput{
		Currency: "EUR",
		Customer: domain.CustomerSnapshot{Name: "Jane", Email: "jane@example.com"},
		Items: []domain.OfferItem{{
			ItemType: domain.ItemTypeProduct, ProductID: "sofa", Quantity: 1, UnitPriceMinor: 99900,
		}},
	})
	require.NoError(t, err)
	offer, err = e.machine.Activate(ctx, offer.ID, "admin:1")
	require.NoError(t, err)
	token, _, err := e.issuer.Issue(ctx, offer.ID)
	require.NoError(t, err)
	return offer, token
}

func (e *env) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func acceptRequestFor(offerID, token, email string) *http.Request {
	body := `{"token":"` + token + `","email":"` + email + `"}`
	req := httptest.NewRequest(http.MethodPost, "/public/offers/"+offerID+"/accept", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestPublicAccept_OnceThenConflict(t *testing.T) {
	e := newEnv(t)
	offer, token := e.activeOffer(t)

	rec := e.do(acceptRequestFor(offer.ID, token, "JANE@example.com"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp acceptResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, offer.ID, resp.OfferID)
	require.Equal(t, offer.Number, resp.OfferNumber)
	require.Equal(t, "accepted", resp.Status)
	require.False(t, resp.AcceptedAt.IsZero())

	rec = e.do(acceptRequestFor(offer.ID, token, "jane@example.com"))
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Contains(t, rec.Body.String(), "already been accepted")
}

func TestPublicAccept_TokenFromQuery(t *testing.T) {
	e := newEnv(t)
	offer, token := e.activeOffer(t)

	req := httptest.NewRequest(http.MethodPost,
		"/public/offers/"+offer.ID+"/accept?token="+token+"&email=jane@example.com", nil)
	rec := e.do(req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestPublicAccept_RejectionsAreGeneric(t *testing.T) {
	e := newEnv(t)
	offer, token := e.activeOffer(t)

	cases := map[string]*http.Request{
		"wrong email":   acceptRequestFor(offer.ID, token, "mallory@example.com"),
		"garbage token": acceptRequestFor(offer.ID, "not-a-token", "jane@example.com"),
		"empty token":   acceptRequestFor(offer.ID, "", "jane@example.com"),
		"other offer":   acceptRequestFor("missing-offer", token, "jane@example.com"),
	}
	for name, req := range cases {
		rec := e.do(req)
		require.Equal(t, http.StatusForbidden, rec.Code, name)
		require.Contains(t, rec.Body.String(), "invalid acceptance link", name)
	}

	rec := e.do(acceptRequestFor(offer.ID, token, "not-an-email"))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	got, err := e.machine.Get(context.Background(), offer.ID)
	require.NoError(t, err)
	require.Equal(t, domain.OfferStatusActive, got.Status)
}

func TestPublicAccept_CancelledOffer(t *testing.T) {
	e := newEnv(t)
	offer, token := e.activeOffer(t)
	_, err := e.machine.Cancel(context.Background(), offer.ID, "admin:1")
	require.NoError(t, err)

	rec := e.do(acceptRequestFor(offer.ID, token, "jane@example.com"))
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Contains(t, rec.Body.String(), "not available")
}

func TestPublicPDF_CheckHeadAndGet(t *testing.T) {
	e := newEnv(t)
	offer, token := e.activeOffer(t)
	base := "/public/offers/" + offer.ID + "/pdf?token=" + token

	rec := e.do(httptest.NewRequest(http.MethodGet, base+"&check=1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var info documentInfoResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	require.False(t, info.Exists)
	require.Nil(t, info.LastModified)

	rec = e.do(httptest.NewRequest(http.MethodHead, base, nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = e.do(httptest.NewRequest(http.MethodGet, base, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, domain.DocumentContentType, rec.Header().Get("Content-Type"))
	require.NotEmpty(t, rec.Header().Get("Last-Modified"))
	require.Equal(t, "%PDF-1.4 "+offer.Number, rec.Body.String())

	rec = e.do(httptest.NewRequest(http.MethodHead, base, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "true", rec.Header().Get(headerDocumentFresh))
	require.Empty(t, rec.Body.String())

	rec = e.do(httptest.NewRequest(http.MethodGet, base+"&check=true", nil))
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	require.True(t, info.Exists)
	require.True(t, info.Fresh)
	require.NotNil(t, info.LastModified)
}

func TestPublicPDF_TransitionMakesDocumentStale(t *testing.T) {
	e := newEnv(t)
	offer, token := e.activeOffer(t)
	base := "/public/offers/" + offer.ID + "/pdf?token=" + token

	rec := e.do(httptest.NewRequest(http.MethodGet, base, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	_, err := e.machine.Cancel(context.Background(), offer.ID, "admin:1")
	require.NoError(t, err)

	rec = e.do(httptest.NewRequest(http.MethodGet, base+"&check=1", nil))
	var info documentInfoResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	require.False(t, info.Exists && info.Fresh)
}

func TestPublicPDF_UnknownOffer(t *testing.T) {
	e := newEnv(t)
	token, _, err := e.tokens.Issue("missing", "jane@example.com")
	require.NoError(t, err)

	rec := e.do(httptest.NewRequest(http.MethodGet, "/public/offers/missing/pdf?token="+token, nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPublicPDF_RequiresLinkToken(t *testing.T) {
	e := newEnv(t)
	offer, _ := e.activeOffer(t)
	other, otherToken := e.activeOffer(t)
	require.NotEqual(t, offer.ID, other.ID)
	base := "/public/offers/" + offer.ID + "/pdf"

	for name, query := range map[string]string{
		"missing":     "",
		"garbage":     "?token=not-a-token",
		"other offer": "?token=" + otherToken,
		"check mode":  "?check=1",
	} {
		t.Run(name, func(t *testing.T) {
			rec := e.do(httptest.NewRequest(http.MethodGet, base+query, nil))
			require.Equal(t, http.StatusForbidden, rec.Code)
			require.NotContains(t, rec.Body.String(), "Jane")

			rec = e.do(httptest.NewRequest(http.MethodHead, base+query, nil))
			require.Equal(t, http.StatusForbidden, rec.Code)
			require.Empty(t, rec.Body.String())
		})
	}

	// Без токена документ не рендерился.
	info, err := e.documents.Stat(context.Background(), offer.ID)
	require.NoError(t, err)
	require.False(t, info.Exists)
}

func TestPublicRoutes_CORS(t *testing.T) {
	e := newEnv(t)
	req := httptest.NewRequest(http.MethodOptions, "/public/offers/x/accept", nil)
	req.Header.Set("Origin", "https://shop.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := e.do(req)
	require.Equal(t, "https://shop.example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/public/offers/x/accept", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec = e.do(req)
	require.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestAdminRoutes_RequireBearer(t *testing.T) {
	e := newEnv(t)
	offer, _ := e.activeOffer(t)

	rec := e.do(httptest.NewRequest(http.MethodGet, "/admin/offers/"+offer.ID, nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	token, err := e.auth.Issue("ops", time.Minute)
	require.NoError(t, err)

	get := func(path string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Authorization", "Bearer "+token)
		return e.do(req)
	}

	rec = get("/admin/offers/" + offer.ID)
	require.Equal(t, http.StatusOK, rec.Code)
	var got offerResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, "active", got.Status)
	require.EqualValues(t, 99900, got.TotalMinor)
	require.Len(t, got.Items, 1)

	rec = get("/admin/offers?status=active&limit=500")
	require.Equal(t, http.StatusOK, rec.Code)
	var list offerListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Equal(t, 1, list.Total)
	require.Equal(t, domain.MaxPageSize, list.Limit)

	rec = get("/admin/offers?status=bogus")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = get("/admin/offers?limit=ten")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = get("/admin/offers/" + offer.ID + "/history")
	require.Equal(t, http.StatusOK, rec.Code)
	var history struct {
		Data []historyResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &history))
	require.Len(t, history.Data, 2)
	require.Equal(t, "created", history.Data[0].Event)
	require.Equal(t, "activated", history.Data[1].Event)

	rec = get("/admin/offers/" + offer.ID + "/pdf")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, domain.DocumentContentType, rec.Header().Get("Content-Type"))

	rec = get("/admin/offers/missing")
	require.Equal(t, http.StatusNotFound, rec.Code)
}
