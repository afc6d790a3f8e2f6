package composables

import (
	"context"

	"github.com/ecodex-io/ecodex/pkg/constants"
	"github.com/sirupsen/logrus"
)

func WithLogger(ctx context.Context, logger *logrus.Logger) context.Context {
	return context.WithValue(ctx, constants.LoggerKey, logger)
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, constants.RequestIDKey, requestID)
}

func UseRequestID(ctx context.Context) string {
	v := ctx.Value(constants.RequestIDKey)
	id, _ := v.(string)
	return id
}
