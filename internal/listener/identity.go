package listener

import "context"

type identityKey struct{}

// WithIdentity records the name a transport already knows the client by.
func WithIdentity(ctx context.Context, name string) context.Context {
	if name == "" {
		return ctx
	}
	return context.WithValue(ctx, identityKey{}, name)
}

// IdentityFrom returns the name recorded by WithIdentity, if any.
func IdentityFrom(ctx context.Context) (string, bool) {
	name, ok := ctx.Value(identityKey{}).(string)
	return name, ok
}
