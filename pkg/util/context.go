package util

import (
	"context"
)

type key string

const (
	clientIPKey   = key("x-forwarded-for")
	subscriberKey = key("subscriber-symbol")
)

// WithClientIP returns a context with a client ip
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey, ip)
}

// GetClientIP returns client ip from context
// will return empty string if not present
func GetClientIP(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPKey).(string)
	return ip
}

// WithSubscribedSymbol returns a context carrying the symbol a stream subscriber asked for.
func WithSubscribedSymbol(ctx context.Context, symbol string) context.Context {
	return context.WithValue(ctx, subscriberKey, symbol)
}

// GetSubscribedSymbol returns the subscribed symbol from context
// will return empty string if not present
func GetSubscribedSymbol(ctx context.Context) string {
	symbol, _ := ctx.Value(subscriberKey).(string)
	return symbol
}
