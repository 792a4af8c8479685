package grpcserver

import "context"

type ctxKey string

const (
	clientTokenKey ctxKey = "monitor.clientToken"
	requestIDKey   ctxKey = "monitor.requestID"
)

// WithClientToken stores the authenticated client token in context.
func WithClientToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, clientTokenKey, token)
}

// ClientTokenFromCtx fetches the client token from context.
func ClientTokenFromCtx(ctx context.Context) (string, bool) {
	tok, ok := ctx.Value(clientTokenKey).(string)
	return tok, ok && tok != ""
}

// WithRequestID stores the request id assigned by LoggingUnary.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromCtx fetches the request id from context.
func RequestIDFromCtx(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}
