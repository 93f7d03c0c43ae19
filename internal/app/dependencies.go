package app

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/offers/internal/auth"
	"github.com/vladislavdragonenkov/offers/internal/domain"
	"github.com/vladislavdragonenkov/offers/internal/httpapi"
	"github.com/vladislavdragonenkov/offers/internal/metrics"
	"github.com/vladislavdragonenkov/offers/internal/service/acceptance"
	"github.com/vladislavdragonenkov/offers/internal/service/document"
	grpcsvc "github.com/vladislavdragonenkov/offers/internal/service/grpc"
	"github.com/vladislavdragonenkov/offers/internal/service/inventory"
	"github.com/vladislavdragonenkov/offers/internal/service/lifecycle"
	"github.com/vladislavdragonenkov/offers/internal/service/notify"
	"github.com/vladislavdragonenkov/offers/internal/service/reservation"
)

const tokenIssuer = "offer-service"

// Dependencies содержит собранный граф сервисов приложения.
type Dependencies struct {
	Machine       *lifecycle.Machine
	Documents     *document.Cache
	Gateway       *acceptance.Gateway
	LinkIssuer    *acceptance.LinkIssuer
	OfferService  *grpcsvc.OfferService
	Router        *gin.Engine
	Authenticator *auth.Authenticator
	// Breaker задан только для внешнего склада.
	Breaker *inventory.CircuitBreaker
	Metrics *metrics.OfferMetrics
	Logger  *log.Entry
}

// NewDependencies собирает сервисы поверх выбранных хранилищ.
// Без InventoryURL используется склад в памяти без ограничений остатков.
func NewDependencies(cfg Config, rt *runtimeDependencies, m *metrics.OfferMetrics, logger *log.Entry) (*Dependencies, error) {
	if logger == nil {
		logger = log.WithField("component", "app")
	}
	if rt == nil {
		return nil, fmt.Errorf("storage dependencies are required")
	}

	deps := &Dependencies{Metrics: m, Logger: logger}

	var inventoryClient domain.InventoryClient
	if url := strings.TrimSpace(cfg.InventoryURL); url != "" {
		retry := inventory.DefaultRetryConfig()
		if cfg.InventoryMaxAttempts > 0 {
			retry.MaxAttempts = cfg.InventoryMaxAttempts
		}
		deps.Breaker = inventory.NewCircuitBreaker(cfg.InventoryBreakerFailures, cfg.InventoryBreakerReset, logger.WithField("component", "inventory-breaker"))
		inventoryClient = inventory.NewResilientClient(
			inventory.NewHTTPClient(url, nil),
			retry,
			deps.Breaker,
			logger.WithField("component", "inventory-client"),
		)
		logger.WithField("inventory_url", url).Info("using remote inventory")
	} else {
		// NOTE: склад в памяти подходит только для разработки и демо.
		inventoryClient = inventory.NewUnlimitedStock()
		logger.Warn("inventory url is not set, using in-memory stock")
	}

	coordinator := reservation.NewCoordinator(rt.offers, inventoryClient,
		reservation.WithLogger(logger.WithField("component", "reservation-coordinator")),
		reservation.WithMetrics(m),
		reservation.WithLocker(rt.locker),
		reservation.WithLocation(cfg.StockLocation),
		reservation.WithReservationTTL(cfg.ReservationTTL),
	)

	deps.Documents = document.NewCache(rt.offers, rt.documents, document.NewRenderer(), document.Config{
		Freshness:     cfg.PDFFreshness,
		PublicBaseURL: cfg.PublicBaseURL,
	}, m, logger.WithField("component", "pdf-cache"))

	secret := cfg.AcceptanceTokenSecret
	if secret == "" {
		secret = uuid.NewString() + uuid.NewString()
		logger.Warn("acceptance token secret is not set, generated an ephemeral one")
	}
	tokens, err := acceptance.NewTokens(secret, cfg.AcceptanceTokenTTL, tokenIssuer)
	if err != nil {
		return nil, fmt.Errorf("init acceptance tokens: %w", err)
	}

	dispatcher := notify.NewDispatcher(rt.outboxRepo, cfg.NotificationPolicy(), acceptance.NewSignedAttachments(deps.Documents, tokens), m,
		logger.WithField("component", "notification-dispatcher"))

	deps.Machine = lifecycle.NewMachine(lifecycle.Dependencies{
		Offers:       rt.offers,
		History:      rt.history,
		Outbox:       rt.outboxRepo,
		Tx:           rt.tx,
		Reservations: coordinator,
		Inventory:    inventoryClient,
		Notifier:     dispatcher,
		Documents:    deps.Documents,
		Metrics:      m,
		Logger:       logger.WithField("component", "offer-lifecycle"),
	}, lifecycle.Config{
		NumberPrefix: cfg.OfferNumberPrefix,
		Location:     cfg.StockLocation,
	})

	deps.Gateway = acceptance.NewGateway(deps.Machine, tokens, logger.WithField("component", "acceptance-gateway"))
	deps.LinkIssuer = acceptance.NewLinkIssuer(deps.Machine, tokens)

	deps.Authenticator = auth.NewAuthenticator(cfg.AdminTokenSecret)
	if !deps.Authenticator.Enabled() {
		logger.Warn("admin token secret is not set, admin API is not authenticated")
	}

	deps.OfferService = grpcsvc.NewOfferService(deps.Machine, deps.LinkIssuer, rt.idempotencyRepo, cfg.PublicBaseURL,
		logger.WithField("layer", "grpc"))

	deps.Router = httpapi.NewRouter(httpapi.Dependencies{
		Acceptor:  deps.Gateway,
		Documents: deps.Documents,
		Offers:    deps.Machine,
		Auth:      deps.Authenticator,
		Tokens:    tokens,
		Logger:    logger.WithField("layer", "http"),
	}, httpapi.Config{AllowedOrigins: cfg.AllowedOrigins()})

	return deps, nil
}

// inventoryState возвращает причину деградации склада для health.
func (d *Dependencies) inventoryState() string {
	if d == nil || d.Breaker == nil {
		return ""
	}
	return d.Breaker.Reason()
}
