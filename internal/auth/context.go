package auth

import "context"

// LocalAccountID is the fiber local holding the authenticated account id.
const LocalAccountID = "account_id"

type bearerKey struct{}

// WithBearer stores the caller's bearer token for outbound wallet API calls.
func WithBearer(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, bearerKey{}, token)
}

// BearerFrom returns the token stored by WithBearer.
func BearerFrom(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(bearerKey{}).(string)
	return token, ok && token != ""
}
