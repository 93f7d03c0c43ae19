package acceptance

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/offers/internal/domain"
)

// Acceptor — часть машины состояний, нужная шлюзу.
type Acceptor interface {
	Get(ctx context.Context, offerID string) (domain.Offer, error)
	Accept(ctx context.Context, offerID, actor string) (domain.Offer, error)
}

// Result — ответ публичного принятия.
type Result struct {
	OfferID     string
	OfferNumber string
	AcceptedAt  time.Time
}

// Gateway проверяет токен и email и переводит предложение в accepted.
type Gateway struct {
	offers   Acceptor
	verifier domain.AcceptanceTokenVerifier
	logger   *log.Entry
}

// NewGateway создаёт шлюз публичного принятия.
func NewGateway(offers Acceptor, verifier domain.AcceptanceTokenVerifier, logger *log.Entry) *Gateway {
	if logger == nil {
		logger = log.New().WithField("component", "acceptance-gateway")
	}
	return &Gateway{offers: offers, verifier: verifier, logger: logger}
}

// Accept принимает предложение от имени клиента.
// Повторный вызов по уже принятому предложению возвращает ErrAlreadyProcessed.
func (g *Gateway) Accept(ctx context.Context, offerID, token, email string) (Result, error) {
	email = strings.TrimSpace(email)
	switch {
	case offerID == "":
		return Result{}, domain.ErrOfferIDRequired
	case strings.TrimSpace(token) == "":
		return Result{}, domain.ErrTokenMissing
	case email == "":
		return Result{}, domain.ErrCustomerEmailInvalid
	}

	tokenEmail, err := g.verifier.Verify(token, offerID)
	if err != nil {
		g.logger.WithError(err).WithField("offer_id", offerID).Info("acceptance token rejected")
		return Result{}, err
	}
	if !strings.EqualFold(tokenEmail, email) {
		return Result{}, domain.ErrEmailMismatch
	}

	offer, err := g.offers.Get(ctx, offerID)
	if err != nil {
		return Result{}, err
	}
	if !offer.Customer.EmailMatches(email) {
		return Result{}, domain.ErrEmailMismatch
	}
	if err := acceptable(offer); err != nil {
		return Result{}, err
	}

	accepted, err := g.offers.Accept(ctx, offerID, domain.ActorCustomerPrefix+strings.ToLower(email))
	if err != nil {
		if !errors.Is(err, domain.ErrConcurrentModification) {
			return Result{}, err
		}
		// Параллельный вызов успел раньше: сообщаем итоговое состояние.
		current, gerr := g.offers.Get(ctx, offerID)
		if gerr != nil {
			return Result{}, err
		}
		if cerr := acceptable(current); cerr != nil {
			return Result{}, cerr
		}
		return Result{}, err
	}

	g.logger.WithFields(log.Fields{
		"offer_id": offerID,
		"number":   accepted.Number,
	}).Info("offer accepted by customer")

	result := Result{OfferID: accepted.ID, OfferNumber: accepted.Number}
	if accepted.AcceptedAt != nil {
		result.AcceptedAt = *accepted.AcceptedAt
	}
	return result, nil
}

func acceptable(offer domain.Offer) error {
	switch offer.Status {
	case domain.OfferStatusActive:
		return nil
	case domain.OfferStatusAccepted, domain.OfferStatusCompleted:
		return fmt.Errorf("%w: offer %s", domain.ErrAlreadyProcessed, offer.Number)
	default:
		return fmt.Errorf("%w: status %s", domain.ErrNotAcceptable, offer.Status)
	}
}

// LinkIssuer выпускает ссылку принятия для администратора.
type LinkIssuer struct {
	offers Acceptor
	tokens *Tokens
}

// NewLinkIssuer создаёт выпуск токенов по данным предложения.
func NewLinkIssuer(offers Acceptor, tokens *Tokens) *LinkIssuer {
	return &LinkIssuer{offers: offers, tokens: tokens}
}

// Issue выпускает токен на email клиента из снимка предложения.
func (l *LinkIssuer) Issue(ctx context.Context, offerID string) (string, time.Time, error) {
	offer, err := l.offers.Get(ctx, offerID)
	if err != nil {
		return "", time.Time{}, err
	}
	if offer.Status.Terminal() {
		return "", time.Time{}, fmt.Errorf("%w: status %s", domain.ErrNotAcceptable, offer.Status)
	}
	return l.tokens.Issue(offer.ID, offer.Customer.Email)
}

// AttachmentLocator отдаёт ссылку на закэшированный PDF.
type AttachmentLocator interface {
	AttachmentURL(ctx context.Context, offer domain.Offer) (string, bool)
}

// SignedAttachments дописывает к ссылке на PDF токен клиента:
// публичная выдача документа без него отвечает 403.
type SignedAttachments struct {
	documents AttachmentLocator
	tokens    *Tokens
}

// NewSignedAttachments оборачивает источник ссылок.
func NewSignedAttachments(documents AttachmentLocator, tokens *Tokens) *SignedAttachments {
	return &SignedAttachments{documents: documents, tokens: tokens}
}

func (s *SignedAttachments) AttachmentURL(ctx context.Context, offer domain.Offer) (string, bool) {
	link, ok := s.documents.AttachmentURL(ctx, offer)
	if !ok {
		return "", false
	}
	u, err := url.Parse(link)
	if err != nil {
		return "", false
	}
	token, _, err := s.tokens.Issue(offer.ID, offer.Customer.Email)
	if err != nil {
		return "", false
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), true
}
