// Package httpapi — HTTP-поверхность сервиса: публичное принятие, выдача PDF
// и административные маршруты чтения.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/offers/internal/auth"
	"github.com/vladislavdragonenkov/offers/internal/domain"
	"github.com/vladislavdragonenkov/offers/internal/service/acceptance"
)

// Acceptor — публичное принятие предложения.
type Acceptor interface {
	Accept(ctx context.Context, offerID, token, email string) (acceptance.Result, error)
}

// Documents — кэш PDF.
type Documents interface {
	Stat(ctx context.Context, offerID string) (domain.DocumentInfo, error)
	GetOrGenerate(ctx context.Context, offerID string) (domain.Document, error)
}

// OfferReader — чтение предложений для административных маршрутов.
type OfferReader interface {
	Get(ctx context.Context, offerID string) (domain.Offer, error)
	List(ctx context.Context, filter domain.OfferFilter) ([]domain.Offer, int, error)
	History(ctx context.Context, offerID string) ([]domain.StatusHistoryEntry, error)
}

// Config задаёт параметры HTTP-слоя.
type Config struct {
	// AllowedOrigins — источники, которым разрешён вызов публичных маршрутов.
	// Пустой список разрешает любой источник.
	AllowedOrigins []string
}

// Dependencies — сервисы, которые обслуживает роутер.
// Tokens проверяет ссылку клиента на публичных маршрутах PDF.
type Dependencies struct {
	Acceptor  Acceptor
	Documents Documents
	Offers    OfferReader
	Auth      *auth.Authenticator
	Tokens    domain.AcceptanceTokenVerifier
	Logger    *log.Entry
}

type handler struct {
	acceptor  Acceptor
	documents Documents
	offers    OfferReader
	logger    *log.Entry
}

// NewRouter собирает gin.Engine со всеми маршрутами.
func NewRouter(deps Dependencies, cfg Config) *gin.Engine {
	logger := deps.Logger
	if logger == nil {
		logger = log.New().WithField("component", "http-api")
	}
	h := &handler{
		acceptor:  deps.Acceptor,
		documents: deps.Documents,
		offers:    deps.Offers,
		logger:    logger,
	}

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger))

	corsCfg := cors.Config{
		AllowMethods:     []string{http.MethodGet, http.MethodHead, http.MethodPost, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders:    []string{"Content-Length", "Last-Modified", headerDocumentFresh},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 0 {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}

	public := router.Group("/public/offers")
	public.Use(cors.New(corsCfg))
	{
		public.POST("/:id/accept", h.accept)

		// Документ содержит данные клиента: отдаём его только по ссылке с токеном принятия.
		documents := public.Group("", acceptanceLink(deps.Tokens))
		documents.GET("/:id/pdf", h.pdf)
		documents.HEAD("/:id/pdf", h.pdfHead)
	}

	admin := router.Group("/admin/offers")
	admin.Use(adminAuth(deps.Auth))
	{
		admin.GET("", h.listOffers)
		admin.GET("/:id", h.getOffer)
		admin.GET("/:id/history", h.history)
		admin.GET("/:id/pdf", h.pdf)
	}

	return router
}

func requestLogger(logger *log.Entry) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.WithFields(log.Fields{
			"method":   c.Request.Method,
			"path":     c.FullPath(),
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
		}).Debug("http request")
	}
}

// acceptanceLink пропускает запрос, если ?token= выпущен для предложения из пути.
func acceptanceLink(tokens domain.AcceptanceTokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		err := domain.ErrTokenMissing
		if tokens != nil {
			_, err = tokens.Verify(c.Query("token"), c.Param("id"))
		}
		if err != nil {
			if c.Request.Method == http.MethodHead {
				c.AbortWithStatus(http.StatusForbidden)
				return
			}
			c.AbortWithStatusJSON(http.StatusForbidden, errorBody{Error: "invalid document link"})
			return
		}
		c.Next()
	}
}

func adminAuth(authenticator *auth.Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, err := authenticator.Authenticate(c.GetHeader("Authorization"))
		if err != nil {
			code := http.StatusUnauthorized
			if errors.Is(err, auth.ErrForbidden) {
				code = http.StatusForbidden
			}
			c.AbortWithStatusJSON(code, errorBody{Error: err.Error()})
			return
		}
		c.Request = c.Request.WithContext(auth.WithPrincipal(c.Request.Context(), principal))
		c.Next()
	}
}
