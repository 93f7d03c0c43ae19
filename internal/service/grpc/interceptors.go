package grpcsvc

import (
	"context"
	"errors"
	"strings"

	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	offersv1 "github.com/vladislavdragonenkov/offers/api/offers/v1"
	"github.com/vladislavdragonenkov/offers/internal/auth"
)

// AuthInterceptor проверяет bearer-токен для методов OfferService.
// Health и reflection не требуют токена.
func AuthInterceptor(authenticator *auth.Authenticator, logger *log.Entry) grpc.UnaryServerInterceptor {
	if logger == nil {
		logger = log.New().WithField("component", "grpc-auth")
	}
	prefix := "/" + offersv1.ServiceName + "/"

	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if !strings.HasPrefix(info.FullMethod, prefix) {
			return handler(ctx, req)
		}

		var header string
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if values := md.Get("authorization"); len(values) > 0 {
				header = values[0]
			}
		}

		principal, err := authenticator.Authenticate(header)
		if err != nil {
			logger.WithField("method", info.FullMethod).Info("admin request rejected")
			if errors.Is(err, auth.ErrForbidden) {
				return nil, status.Error(codes.PermissionDenied, err.Error())
			}
			return nil, status.Error(codes.Unauthenticated, err.Error())
		}
		return handler(auth.WithPrincipal(ctx, principal), req)
	}
}

// LoggingInterceptor пишет метод и код ответа каждого вызова.
func LoggingInterceptor(logger *log.Entry) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		resp, err := handler(ctx, req)
		entry := logger.WithFields(log.Fields{
			"method": info.FullMethod,
			"code":   status.Code(err).String(),
		})
		if err != nil {
			entry.Debug("grpc call failed")
		} else {
			entry.Debug("grpc call")
		}
		return resp, err
	}
}
