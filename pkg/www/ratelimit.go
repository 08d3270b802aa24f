package www

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"
)

// You can disable this when running unit tests
var EnableRateLimiting = true

// RateLimit wraps 'next' so that each client IP may make at most 'requestLimit' requests per 'window'.
// Excess requests receive 429 Too Many Requests.
func RateLimit(next http.Handler, requestLimit int, window time.Duration) http.Handler {
	if !EnableRateLimiting {
		return next
	}
	return httprate.LimitByIP(requestLimit, window)(next)
}
