package utils

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

const RequesterIDKey contextKey = "requester_id"

// GetRequesterIDFromContext returns the caller identity set by the
// identity middleware.
func GetRequesterIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(RequesterIDKey).(uuid.UUID)
	if !ok || id == uuid.Nil {
		return uuid.Nil, false
	}
	return id, true
}

func SetRequesterContext(ctx context.Context, requesterID uuid.UUID) context.Context {
	return context.WithValue(ctx, RequesterIDKey, requesterID)
}
