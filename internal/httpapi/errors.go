package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vladislavdragonenkov/offers/internal/domain"
)

type errorBody struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
}

var kindStatus = map[domain.ErrorKind]int{
	domain.KindValidation:             http.StatusBadRequest,
	domain.KindNotFound:               http.StatusNotFound,
	domain.KindInvalidTransition:      http.StatusConflict,
	domain.KindConcurrentModification: http.StatusConflict,
	domain.KindReservation:            http.StatusServiceUnavailable,
	domain.KindAlreadyProcessed:       http.StatusConflict,
	domain.KindInternal:               http.StatusInternalServerError,
}

func (h *handler) fail(c *gin.Context, operation string, err error) {
	kind := domain.Kind(err)
	code := kindStatus[kind]
	message := err.Error()
	if kind == domain.KindInternal {
		h.logger.WithError(err).WithField("operation", operation).Error("internal error")
		message = "internal error"
	}
	c.AbortWithStatusJSON(code, errorBody{Error: message, Code: string(kind), Retryable: domain.Retryable(err)})
}

// failPublic отвечает клиенту без подробностей о причине отказа.
// Уже принятое предложение отличается от неверной ссылки.
func (h *handler) failPublic(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrAlreadyProcessed):
		c.AbortWithStatusJSON(http.StatusConflict, errorBody{Error: "offer has already been accepted", Code: string(domain.KindAlreadyProcessed)})
	case errors.Is(err, domain.ErrNotAcceptable):
		c.AbortWithStatusJSON(http.StatusConflict, errorBody{Error: "offer is not available for acceptance", Code: "not_acceptable"})
	case errors.Is(err, domain.ErrConcurrentModification):
		c.AbortWithStatusJSON(http.StatusConflict, errorBody{Error: "please try again", Code: string(domain.KindConcurrentModification), Retryable: true})
	case errors.Is(err, domain.ErrOfferNotFound),
		errors.Is(err, domain.ErrOfferIDRequired),
		errors.Is(err, domain.ErrTokenMissing),
		errors.Is(err, domain.ErrTokenInvalid),
		errors.Is(err, domain.ErrTokenExpired),
		errors.Is(err, domain.ErrEmailMismatch),
		errors.Is(err, domain.ErrCustomerEmailInvalid):
		c.AbortWithStatusJSON(http.StatusForbidden, errorBody{Error: "invalid acceptance link"})
	default:
		h.logger.WithError(err).Error("public acceptance failed")
		c.AbortWithStatusJSON(http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}
