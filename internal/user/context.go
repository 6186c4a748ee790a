package user

import (
	"context"

	"github.com/ovaphlow/pitchfork/service-giftlist/internal/user/entity"
)

type actorKey struct{}

// WithActor stores the authenticated account on the request context.
func WithActor(ctx context.Context, u entity.Summary) context.Context {
	return context.WithValue(ctx, actorKey{}, u)
}

// ActorFrom returns the authenticated account, if any.
func ActorFrom(ctx context.Context) (entity.Summary, bool) {
	u, ok := ctx.Value(actorKey{}).(entity.Summary)
	return u, ok
}
