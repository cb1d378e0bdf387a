package api

import (
	"context"
	"net/http"
	"time"
)

// contextWithTimeout bounds a simulation by the request lifetime and timeout.
// Cancellation takes effect at the engine's next chunk boundary.
func contextWithTimeout(r *http.Request, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), timeout)
}
