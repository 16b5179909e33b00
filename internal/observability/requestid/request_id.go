package requestid

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

type contextKey string

const requestIDContextKey contextKey = "request_id"

// New generates a request ID of the form req_<unix-millis>_<hex>. The
// timestamp prefix keeps IDs roughly sortable in log searches.
func New() string {
	now := time.Now().UnixMilli()

	buf := make([]byte, 10)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("req_%d", now)
	}
	return fmt.Sprintf("req_%d_%s", now, hex.EncodeToString(buf))
}

// GetRequestID retrieves the request ID from ctx, or "" when unset.
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDContextKey).(string); ok {
		return id
	}
	return ""
}

// SetRequestID stores the request ID in ctx.
func SetRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDContextKey, id)
}
