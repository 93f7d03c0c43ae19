package document

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/vladislavdragonenkov/offers/internal/domain"
	"github.com/vladislavdragonenkov/offers/internal/metrics"
)

// DefaultFreshness — документ старше этого окна считается устаревшим.
const DefaultFreshness = 24 * time.Hour

// Cache хранит отрендеренные PDF по id предложения.
// Генерация для одного предложения выполняется одним вызовом (single flight),
// остальные конкурентные вызовы получают тот же результат.
type Cache struct {
	offers    domain.OfferRepository
	store     domain.DocumentStore
	renderer  domain.DocumentRenderer
	freshness time.Duration
	baseURL   string
	now       func() time.Time
	logger    *log.Entry
	metrics   *metrics.OfferMetrics

	group singleflight.Group

	// epochs растут при каждой инвалидации; результат генерации,
	// начатой до инвалидации, в хранилище не пишется.
	// mu держится и на время записи или удаления документа, чтобы проверка
	// epoch и Put не разошлись с Invalidate.
	mu     sync.Mutex
	epochs map[string]uint64
}

// Config задаёт параметры кэша.
type Config struct {
	Freshness time.Duration
	// PublicBaseURL — базовый адрес публичного API для ссылки pdf_url.
	PublicBaseURL string
}

// NewCache создаёт кэш документов.
func NewCache(offers domain.OfferRepository, store domain.DocumentStore, renderer domain.DocumentRenderer, cfg Config, m *metrics.OfferMetrics, logger *log.Entry) *Cache {
	if logger == nil {
		logger = log.New().WithField("component", "pdf-cache")
	}
	if cfg.Freshness <= 0 {
		cfg.Freshness = DefaultFreshness
	}
	return &Cache{
		offers:    offers,
		store:     store,
		renderer:  renderer,
		freshness: cfg.Freshness,
		baseURL:   strings.TrimRight(cfg.PublicBaseURL, "/"),
		now:       time.Now,
		logger:    logger,
		metrics:   m,
		epochs:    make(map[string]uint64),
	}
}

// URLFor возвращает публичную ссылку на документ предложения.
func (c *Cache) URLFor(offerID string) string {
	return fmt.Sprintf("%s/public/offers/%s/pdf", c.baseURL, offerID)
}

// Stat проверяет наличие документа без генерации.
func (c *Cache) Stat(ctx context.Context, offerID string) (domain.DocumentInfo, error) {
	if _, err := c.offers.Get(ctx, offerID); err != nil {
		return domain.DocumentInfo{}, err
	}

	info := domain.DocumentInfo{OfferID: offerID}
	doc, err := c.store.Get(ctx, offerID)
	if err != nil {
		if errors.Is(err, domain.ErrDocumentNotFound) {
			return info, nil
		}
		return info, fmt.Errorf("stat document: %w", err)
	}

	info.Exists = true
	info.LastModified = doc.GeneratedAt
	info.Fresh = c.fresh(doc)
	info.Size = len(doc.Content)
	return info, nil
}

// GetOrGenerate возвращает свежий документ, генерируя его при промахе или устаревании.
func (c *Cache) GetOrGenerate(ctx context.Context, offerID string) (domain.Document, error) {
	doc, err := c.store.Get(ctx, offerID)
	switch {
	case err == nil && c.fresh(doc):
		// Удалённое предложение не отдаём даже из кэша.
		if _, err := c.offers.Get(ctx, offerID); err != nil {
			return domain.Document{}, err
		}
		c.metrics.RecordPDFCache(metrics.ResultHit)
		return doc, nil
	case err == nil:
		c.metrics.RecordPDFCache(metrics.ResultStale)
	case errors.Is(err, domain.ErrDocumentNotFound):
		c.metrics.RecordPDFCache(metrics.ResultMiss)
	default:
		return domain.Document{}, fmt.Errorf("load cached document: %w", err)
	}

	result, err, shared := c.group.Do(offerID, func() (any, error) {
		return c.generate(context.WithoutCancel(ctx), offerID)
	})
	if err != nil {
		return domain.Document{}, err
	}
	if shared {
		c.logger.WithField("offer_id", offerID).Debug("pdf generation shared between callers")
	}
	return result.(domain.Document), nil
}

func (c *Cache) generate(ctx context.Context, offerID string) (domain.Document, error) {
	epoch := c.epoch(offerID)

	// Пока ждали своей очереди, документ мог появиться.
	if doc, err := c.store.Get(ctx, offerID); err == nil && c.fresh(doc) {
		return doc, nil
	}

	offer, err := c.offers.Get(ctx, offerID)
	if err != nil {
		return domain.Document{}, err
	}

	start := time.Now()
	content, err := c.renderer.Render(ctx, offer)
	c.metrics.RecordPDFRender(time.Since(start))
	if err != nil {
		c.logger.WithError(err).WithField("offer_id", offerID).Error("pdf render failed")
		return domain.Document{}, fmt.Errorf("render offer %s: %w", offerID, err)
	}

	doc := domain.Document{
		OfferID:     offerID,
		Content:     content,
		ContentType: domain.DocumentContentType,
		GeneratedAt: c.now().UTC(),
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epochs[offerID] != epoch {
		// Предложение изменилось во время рендеринга: отдаём документ, но не кэшируем.
		return doc, nil
	}
	if err := c.store.Put(ctx, doc); err != nil {
		c.logger.WithError(err).WithField("offer_id", offerID).Warn("store rendered pdf failed")
		return doc, nil
	}
	if err := c.offers.SetPDFURL(ctx, offerID, c.URLFor(offerID)); err != nil && !errors.Is(err, domain.ErrOfferNotFound) {
		c.logger.WithError(err).WithField("offer_id", offerID).Warn("update pdf_url failed")
	}
	return doc, nil
}

// Invalidate удаляет документ, следующий доступ сгенерирует его заново.
func (c *Cache) Invalidate(ctx context.Context, offerID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.epochs[offerID]++
	c.group.Forget(offerID)

	if err := c.store.Delete(ctx, offerID); err != nil {
		return fmt.Errorf("delete cached document: %w", err)
	}
	if err := c.offers.SetPDFURL(ctx, offerID, ""); err != nil && !errors.Is(err, domain.ErrOfferNotFound) {
		return fmt.Errorf("clear pdf_url: %w", err)
	}
	return nil
}

// AttachmentURL возвращает ссылку на свежий закэшированный документ.
func (c *Cache) AttachmentURL(ctx context.Context, offer domain.Offer) (string, bool) {
	doc, err := c.store.Get(ctx, offer.ID)
	if err != nil || !c.fresh(doc) {
		return "", false
	}
	if offer.PDFURL != "" {
		return offer.PDFURL, true
	}
	return c.URLFor(offer.ID), true
}

func (c *Cache) fresh(doc domain.Document) bool {
	return c.now().Sub(doc.GeneratedAt) < c.freshness
}

func (c *Cache) epoch(offerID string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.epochs[offerID]
}
