package grpcsvc

import (
	"context"
	"errors"
	"strings"

	log "github.com/sirupsen/logrus"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/vladislavdragonenkov/offers/internal/domain"
)

const errorDomain = "offers.v1"

var kindCodes = map[domain.ErrorKind]codes.Code{
	domain.KindValidation:             codes.InvalidArgument,
	domain.KindNotFound:               codes.NotFound,
	domain.KindInvalidTransition:      codes.FailedPrecondition,
	domain.KindConcurrentModification: codes.Aborted,
	domain.KindReservation:            codes.Unavailable,
	domain.KindAlreadyProcessed:       codes.AlreadyExists,
	domain.KindInternal:               codes.Internal,
}

// toStatus переводит доменную ошибку в gRPC-статус с ErrorInfo.
// Внутренние ошибки не раскрывают текст причины.
func toStatus(logger *log.Entry, operation string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	switch {
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	}

	kind := domain.Kind(err)
	code := kindCodes[kind]
	message := err.Error()
	if kind == domain.KindInternal {
		logger.WithError(err).WithField("operation", operation).Error("internal error")
		message = "internal error"
	}

	st := status.New(code, message)
	info := &errdetails.ErrorInfo{
		Reason: strings.ToUpper(string(kind)),
		Domain: errorDomain,
		Metadata: map[string]string{
			"retryable": boolString(domain.Retryable(err)),
		},
	}
	var resErr *domain.ReservationError
	if errors.As(err, &resErr) {
		info.Metadata["item_id"] = resErr.ItemID
		info.Metadata["variant_id"] = resErr.VariantID
	}
	if detailed, derr := st.WithDetails(info); derr == nil {
		st = detailed
	}
	return st.Err()
}

func boolString(v bool) string {
	if v {
		return "true"
	}
	return "false"
}
