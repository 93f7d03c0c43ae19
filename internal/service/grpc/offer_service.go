package grpcsvc

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	offersv1 "github.com/vladislavdragonenkov/offers/api/offers/v1"
	"github.com/vladislavdragonenkov/offers/internal/auth"
	"github.com/vladislavdragonenkov/offers/internal/domain"
	"github.com/vladislavdragonenkov/offers/internal/service/lifecycle"
)

// Lifecycle — операции машины состояний, доступные администратору.
type Lifecycle interface {
	Create(ctx context.Context, in lifecycle.CreateInput) (domain.Offer, error)
	Get(ctx context.Context, offerID string) (domain.Offer, error)
	List(ctx context.Context, filter domain.OfferFilter) ([]domain.Offer, int, error)
	UpdateDetails(ctx context.Context, offerID string, in lifecycle.DetailsInput) (domain.Offer, error)
	AddItem(ctx context.Context, offerID string, item domain.OfferItem) (domain.Offer, error)
	RemoveItem(ctx context.Context, offerID, itemID string) (domain.Offer, error)
	Delete(ctx context.Context, offerID string) error
	Activate(ctx context.Context, offerID, actor string) (domain.Offer, error)
	Accept(ctx context.Context, offerID, actor string) (domain.Offer, error)
	Complete(ctx context.Context, offerID, actor string) (domain.Offer, error)
	Cancel(ctx context.Context, offerID, actor string) (domain.Offer, error)
	History(ctx context.Context, offerID string) ([]domain.StatusHistoryEntry, error)
	CheckAvailability(ctx context.Context, offerID string) ([]lifecycle.ItemAvailability, error)
}

// TokenIssuer выпускает токены публичного принятия.
type TokenIssuer interface {
	Issue(ctx context.Context, offerID string) (string, time.Time, error)
}

var _ Lifecycle = (*lifecycle.Machine)(nil)

// OfferService реализует offers.v1.OfferService поверх машины состояний.
type OfferService struct {
	offersv1.UnimplementedOfferServiceServer

	offers        Lifecycle
	tokens        TokenIssuer
	idemRepo      domain.IdempotencyRepository
	publicBaseURL string
	validate      *validator.Validate
	logger        *log.Entry
	now           func() time.Time
}

// NewOfferService конструирует сервис с зависимостями.
func NewOfferService(
	offers Lifecycle,
	tokens TokenIssuer,
	idemRepo domain.IdempotencyRepository,
	publicBaseURL string,
	logger *log.Entry,
) *OfferService {
	if logger == nil {
		logger = log.New().WithField("component", "offer-service")
	}
	return &OfferService{
		offers:        offers,
		tokens:        tokens,
		idemRepo:      idemRepo,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		validate:      validator.New(validator.WithRequiredStructEnabled()),
		logger:        logger,
		now:           time.Now,
	}
}

func (s *OfferService) check(req any) error {
	if err := s.validate.Struct(req); err != nil {
		return validationStatus(err)
	}
	return nil
}

// CreateOffer создаёт черновик предложения.
func (s *OfferService) CreateOffer(ctx context.Context, req *offersv1.CreateOfferRequest) (*offersv1.CreateOfferResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	if err := s.check(req); err != nil {
		return nil, err
	}

	return withIdempotency(s, ctx, offersv1.OfferService_CreateOffer_FullMethodName, req,
		func(ctx context.Context) (*offersv1.CreateOfferResponse, error) {
			items := make([]domain.OfferItem, 0, len(req.Items))
			for _, item := range req.Items {
				converted, err := toDomainItem(item)
				if err != nil {
					return nil, toStatus(s.logger, "CreateOffer", err)
				}
				items = append(items, converted)
			}

			offer, err := s.offers.Create(ctx, lifecycle.CreateInput{
				Currency:              req.Currency,
				Customer:              toDomainCustomer(req.Customer),
				Notes:                 req.Notes,
				Items:                 items,
				NotificationOverrides: toDomainOverrides(req.NotificationOverrides),
				Actor:                 auth.ActorFrom(ctx),
			})
			if err != nil {
				return nil, toStatus(s.logger, "CreateOffer", err)
			}
			return &offersv1.CreateOfferResponse{Offer: toAPIOffer(offer)}, nil
		})
}

// GetOffer возвращает предложение по id.
func (s *OfferService) GetOffer(ctx context.Context, req *offersv1.GetOfferRequest) (*offersv1.GetOfferResponse, error) {
	if req.GetOfferId() == "" {
		return nil, status.Error(codes.InvalidArgument, "offer_id is required")
	}
	offer, err := s.offers.Get(ctx, req.OfferId)
	if err != nil {
		return nil, toStatus(s.logger, "GetOffer", err)
	}
	return &offersv1.GetOfferResponse{Offer: toAPIOffer(offer)}, nil
}

// ListOffers возвращает страницу предложений.
func (s *OfferService) ListOffers(ctx context.Context, req *offersv1.ListOffersRequest) (*offersv1.ListOffersResponse, error) {
	if req == nil {
		req = &offersv1.ListOffersRequest{}
	}
	if err := s.check(req); err != nil {
		return nil, err
	}

	offers, total, err := s.offers.List(ctx, domain.OfferFilter{
		Status: domain.OfferStatus(req.Status),
		Limit:  int(req.Limit),
		Offset: int(req.Offset),
	})
	if err != nil {
		return nil, toStatus(s.logger, "ListOffers", err)
	}

	result := make([]*offersv1.Offer, 0, len(offers))
	for _, offer := range offers {
		result = append(result, toAPIOffer(offer))
	}
	return &offersv1.ListOffersResponse{Offers: result, Total: int32(total)}, nil //nolint:gosec // total ограничен размером таблицы.
}

// UpdateOffer меняет заметки, данные клиента и настройки уведомлений.
func (s *OfferService) UpdateOffer(ctx context.Context, req *offersv1.UpdateOfferRequest) (*offersv1.UpdateOfferResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	if err := s.check(req); err != nil {
		return nil, err
	}

	return withIdempotency(s, ctx, offersv1.OfferService_UpdateOffer_FullMethodName, req,
		func(ctx context.Context) (*offersv1.UpdateOfferResponse, error) {
			in := lifecycle.DetailsInput{ExpectedVersion: req.ExpectedVersion}
			in.Notes = req.Notes
			in.NotificationOverrides = toDomainOverrides(req.NotificationOverrides)
			if req.Customer != nil {
				customer := toDomainCustomer(req.Customer)
				in.Customer = &customer
			}

			offer, err := s.offers.UpdateDetails(ctx, req.OfferId, in)
			if err != nil {
				return nil, toStatus(s.logger, "UpdateOffer", err)
			}
			return &offersv1.UpdateOfferResponse{Offer: toAPIOffer(offer)}, nil
		})
}

// DeleteOffer мягко удаляет предложение.
func (s *OfferService) DeleteOffer(ctx context.Context, req *offersv1.DeleteOfferRequest) (*offersv1.DeleteOfferResponse, error) {
	if req.GetOfferId() == "" {
		return nil, status.Error(codes.InvalidArgument, "offer_id is required")
	}

	return withIdempotency(s, ctx, offersv1.OfferService_DeleteOffer_FullMethodName, req,
		func(ctx context.Context) (*offersv1.DeleteOfferResponse, error) {
			if err := s.offers.Delete(ctx, req.OfferId); err != nil {
				return nil, toStatus(s.logger, "DeleteOffer", err)
			}
			return &offersv1.DeleteOfferResponse{OfferId: req.OfferId}, nil
		})
}

// AddItem добавляет позицию в черновик.
func (s *OfferService) AddItem(ctx context.Context, req *offersv1.AddItemRequest) (*offersv1.AddItemResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	if err := s.check(req); err != nil {
		return nil, err
	}

	return withIdempotency(s, ctx, offersv1.OfferService_AddItem_FullMethodName, req,
		func(ctx context.Context) (*offersv1.AddItemResponse, error) {
			item, err := toDomainItem(req.Item)
			if err != nil {
				return nil, toStatus(s.logger, "AddItem", err)
			}
			offer, err := s.offers.AddItem(ctx, req.OfferId, item)
			if err != nil {
				return nil, toStatus(s.logger, "AddItem", err)
			}
			return &offersv1.AddItemResponse{Offer: toAPIOffer(offer)}, nil
		})
}

// RemoveItem удаляет позицию из черновика.
func (s *OfferService) RemoveItem(ctx context.Context, req *offersv1.RemoveItemRequest) (*offersv1.RemoveItemResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	if err := s.check(req); err != nil {
		return nil, err
	}

	return withIdempotency(s, ctx, offersv1.OfferService_RemoveItem_FullMethodName, req,
		func(ctx context.Context) (*offersv1.RemoveItemResponse, error) {
			offer, err := s.offers.RemoveItem(ctx, req.OfferId, req.ItemId)
			if err != nil {
				return nil, toStatus(s.logger, "RemoveItem", err)
			}
			return &offersv1.RemoveItemResponse{Offer: toAPIOffer(offer)}, nil
		})
}

type transitionFunc func(ctx context.Context, offerID, actor string) (domain.Offer, error)

func (s *OfferService) transition(ctx context.Context, method, operation string, req *offersv1.TransitionRequest, fn transitionFunc) (*offersv1.TransitionResponse, error) {
	if req.GetOfferId() == "" {
		return nil, status.Error(codes.InvalidArgument, "offer_id is required")
	}

	return withIdempotency(s, ctx, method, req,
		func(ctx context.Context) (*offersv1.TransitionResponse, error) {
			offer, err := fn(ctx, req.OfferId, auth.ActorFrom(ctx))
			if err != nil {
				return nil, toStatus(s.logger, operation, err)
			}
			return &offersv1.TransitionResponse{Offer: toAPIOffer(offer)}, nil
		})
}

// ActivateOffer публикует черновик и резервирует товары.
func (s *OfferService) ActivateOffer(ctx context.Context, req *offersv1.TransitionRequest) (*offersv1.TransitionResponse, error) {
	return s.transition(ctx, offersv1.OfferService_ActivateOffer_FullMethodName, "ActivateOffer", req, s.offers.Activate)
}

// AcceptOffer принимает предложение от имени администратора.
func (s *OfferService) AcceptOffer(ctx context.Context, req *offersv1.TransitionRequest) (*offersv1.TransitionResponse, error) {
	return s.transition(ctx, offersv1.OfferService_AcceptOffer_FullMethodName, "AcceptOffer", req, s.offers.Accept)
}

// CompleteOffer отмечает конвертацию в заказ.
func (s *OfferService) CompleteOffer(ctx context.Context, req *offersv1.TransitionRequest) (*offersv1.TransitionResponse, error) {
	return s.transition(ctx, offersv1.OfferService_CompleteOffer_FullMethodName, "CompleteOffer", req, s.offers.Complete)
}

// CancelOffer отменяет предложение и снимает резервы.
func (s *OfferService) CancelOffer(ctx context.Context, req *offersv1.TransitionRequest) (*offersv1.TransitionResponse, error) {
	return s.transition(ctx, offersv1.OfferService_CancelOffer_FullMethodName, "CancelOffer", req, s.offers.Cancel)
}

// ListHistory возвращает журнал статусов.
func (s *OfferService) ListHistory(ctx context.Context, req *offersv1.ListHistoryRequest) (*offersv1.ListHistoryResponse, error) {
	if req == nil || req.OfferId == "" {
		return nil, status.Error(codes.InvalidArgument, "offer_id is required")
	}
	entries, err := s.offers.History(ctx, req.OfferId)
	if err != nil {
		return nil, toStatus(s.logger, "ListHistory", err)
	}
	return &offersv1.ListHistoryResponse{Entries: toAPIHistory(entries)}, nil
}

// CheckAvailability сверяет позиции с остатками склада.
func (s *OfferService) CheckAvailability(ctx context.Context, req *offersv1.CheckAvailabilityRequest) (*offersv1.CheckAvailabilityResponse, error) {
	if req == nil || req.OfferId == "" {
		return nil, status.Error(codes.InvalidArgument, "offer_id is required")
	}
	items, err := s.offers.CheckAvailability(ctx, req.OfferId)
	if err != nil {
		return nil, toStatus(s.logger, "CheckAvailability", err)
	}

	resp := &offersv1.CheckAvailabilityResponse{AllSufficient: true}
	for _, item := range items {
		resp.Items = append(resp.Items, &offersv1.ItemAvailability{
			ItemId:     item.ItemID,
			VariantId:  item.VariantID,
			Requested:  item.Requested,
			Available:  item.Available,
			Reserved:   item.Reserved,
			Sufficient: item.Sufficient,
		})
		if !item.Sufficient {
			resp.AllSufficient = false
		}
	}
	return resp, nil
}

// IssueAcceptanceToken выпускает ссылку принятия для клиента.
func (s *OfferService) IssueAcceptanceToken(ctx context.Context, req *offersv1.IssueAcceptanceTokenRequest) (*offersv1.IssueAcceptanceTokenResponse, error) {
	if req == nil || req.OfferId == "" {
		return nil, status.Error(codes.InvalidArgument, "offer_id is required")
	}
	if s.tokens == nil {
		return nil, status.Error(codes.FailedPrecondition, "acceptance tokens are not configured")
	}

	token, expiresAt, err := s.tokens.Issue(ctx, req.OfferId)
	if err != nil {
		return nil, toStatus(s.logger, "IssueAcceptanceToken", err)
	}
	return &offersv1.IssueAcceptanceTokenResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		AcceptUrl: s.acceptURL(req.OfferId, token),
	}, nil
}

func (s *OfferService) acceptURL(offerID, token string) string {
	return s.publicBaseURL + "/public/offers/" + url.PathEscape(offerID) + "/accept?token=" + url.QueryEscape(token)
}
