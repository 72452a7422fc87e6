package auth

import (
	"context"
)

var payloadCtxKey = &contextKey{"payload"}

type contextKey struct {
	name string
}

// WithPayloadContext sets the access token payload in the given context
func WithPayloadContext(ctx context.Context, payload *TokenPayload) context.Context {
	return context.WithValue(ctx, payloadCtxKey, payload)
}

// PayloadFromContext finds the access token payload in the context.
func PayloadFromContext(ctx context.Context) (*TokenPayload, bool) {
	raw, ok := ctx.Value(payloadCtxKey).(*TokenPayload)
	return raw, ok && raw != nil
}
