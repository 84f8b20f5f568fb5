// Package appcontext provides utility functions for working with context in the application.
package appcontext

import "context"

type contextKey string

// String returns the string representation of the context key.
func (c contextKey) String() string {
	return string(c)
}

// ContextBearerToken represents the context key for the API bearer token.
var (
	ContextBearerToken = contextKey("bearerToken")
)

// WithToken returns a new context carrying the provided bearer token. The
// remote client's request editor attaches it to outgoing requests.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, ContextBearerToken, token)
}

// Token retrieves the bearer token from the context.
func Token(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(ContextBearerToken).(string)
	return token, ok
}
