package grpcsvc

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	spb "google.golang.org/genproto/googleapis/rpc/status"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"

	"github.com/vladislavdragonenkov/offers/internal/domain"
)

const idempotencyKeyHeader = "idempotency-key"

const msgPreviousAttemptFailed = "previous request with the same idempotency key failed"

// withIdempotency выполняет мутацию не более одного раза на ключ из metadata.
// Успех и окончательная ошибка сохраняются и отдаются повторно; повторяемая
// ошибка освобождает ключ. Без ключа handler вызывается напрямую.
func withIdempotency[T any](
	s *OfferService,
	ctx context.Context,
	method string,
	req any,
	handler func(context.Context) (*T, error),
) (*T, error) {
	key, ok := idempotencyKeyFromContext(ctx)
	if s.idemRepo == nil || !ok {
		return handler(ctx)
	}
	logger := s.logger.WithFields(log.Fields{"method": method, "idempotency_key": key})

	fingerprint, err := requestFingerprint(method, req)
	if err != nil {
		logger.WithError(err).Warn("fingerprint idempotent request")
		return nil, status.Error(codes.Internal, "failed to initialize idempotency request")
	}

	record, err := s.idemRepo.CreateProcessing(ctx, key, fingerprint, s.now().UTC().Add(domain.DefaultIdempotencyTTL))
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrIdempotencyHashMismatch):
		return nil, status.Error(codes.AlreadyExists, "idempotency key is already used with different request payload")
	case errors.Is(err, domain.ErrIdempotencyKeyAlreadyExists):
		return replayRecord[T](record)
	default:
		logger.WithError(err).Warn("claim idempotency key")
		return nil, status.Error(codes.Internal, "failed to initialize idempotency request")
	}

	resp, runErr := handler(ctx)
	switch {
	case runErr == nil:
		body, err := json.Marshal(resp)
		if err == nil {
			err = s.idemRepo.MarkDone(ctx, key, body, int(codes.OK))
		}
		if err != nil {
			logger.WithError(err).Warn("store idempotent response")
		}
		return resp, nil
	case retryableStatus(runErr):
		if err := s.idemRepo.Release(ctx, key); err != nil {
			logger.WithError(err).Warn("release idempotency key")
		}
	default:
		s.cacheIdempotencyFailure(ctx, key, runErr)
	}
	return nil, runErr
}

// replayRecord отдаёт сохранённый исход запроса с тем же ключом.
func replayRecord[T any](record domain.IdempotencyRecord) (*T, error) {
	switch record.Status {
	case domain.IdempotencyStatusDone:
		resp := new(T)
		if len(record.ResponseBody) == 0 || json.Unmarshal(record.ResponseBody, resp) != nil {
			return nil, status.Error(codes.Internal, "stored idempotent response is unreadable")
		}
		return resp, nil
	case domain.IdempotencyStatusProcessing:
		return nil, status.Error(codes.Aborted, "request with the same idempotency key is already processing")
	case domain.IdempotencyStatusFailed:
		return nil, decodeIdempotencyFailure(record)
	default:
		return nil, status.Errorf(codes.Internal, "unknown idempotency status %q", record.Status)
	}
}

// cacheIdempotencyFailure сохраняет google.rpc.Status целиком, вместе с ErrorInfo.
func (s *OfferService) cacheIdempotencyFailure(ctx context.Context, key string, runErr error) {
	st := status.Convert(runErr)
	if st.Code() == codes.OK {
		st = status.New(codes.Internal, st.Message())
	}

	body, err := protojson.Marshal(st.Proto())
	if err != nil {
		s.logger.WithError(err).WithField("idempotency_key", key).Warn("encode idempotent failure")
		body = nil
	}
	if err := s.idemRepo.MarkFailed(ctx, key, body, int(st.Code())); err != nil {
		s.logger.WithError(err).WithField("idempotency_key", key).Warn("store idempotent failure")
	}
}

// decodeIdempotencyFailure восстанавливает ошибку; при нечитаемом теле остаётся только код.
func decodeIdempotencyFailure(record domain.IdempotencyRecord) error {
	var saved spb.Status
	if len(record.ResponseBody) > 0 && protojson.Unmarshal(record.ResponseBody, &saved) == nil {
		if codes.Code(saved.GetCode()) == codes.OK {
			return status.Error(codes.Internal, msgPreviousAttemptFailed)
		}
		if saved.GetMessage() == "" {
			saved.Message = msgPreviousAttemptFailed
		}
		return status.ErrorProto(&saved)
	}

	if code, ok := grpcCodeFromInt(record.StatusCode); ok && code != codes.OK {
		return status.Error(code, msgPreviousAttemptFailed)
	}
	return status.Error(codes.Internal, msgPreviousAttemptFailed)
}

// retryableStatus читает признак retryable из ErrorInfo; отмена и таймаут тоже повторяемы.
func retryableStatus(err error) bool {
	st := status.Convert(err)
	switch st.Code() {
	case codes.Canceled, codes.DeadlineExceeded:
		return true
	}
	for _, detail := range st.Details() {
		if info, ok := detail.(*errdetails.ErrorInfo); ok {
			return info.GetMetadata()["retryable"] == "true"
		}
	}
	return false
}

func grpcCodeFromInt(value int) (codes.Code, bool) {
	if value < int(codes.OK) || value > int(codes.Unauthenticated) {
		return codes.Internal, false
	}
	return codes.Code(uint32(value)), true
}

func idempotencyKeyFromContext(ctx context.Context) (string, bool) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return "", false
	}
	for _, value := range md.Get(idempotencyKeyHeader) {
		if key := strings.TrimSpace(value); key != "" {
			return key, true
		}
	}
	return "", false
}

// requestFingerprint — sha256 от имени метода и JSON запроса.
func requestFingerprint(method string, req any) (string, error) {
	if req == nil {
		return "", fmt.Errorf("request is nil")
	}
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	h := sha256.New()
	h.Write([]byte(method))
	h.Write([]byte{':'})
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil)), nil
}
