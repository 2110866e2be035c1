package middleware

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"net/http"
	"regexp"
	"strings"

	"github.com/ayo6706/ussd-relay/internal/api/problem"
)

const deviceContextKey contextKey = "device_id"

var deviceIDPattern = regexp.MustCompile(`^[A-Za-z0-9._-]{1,64}$`)

// DeviceAuthMiddleware admits the phone-side executor. The shared key is compared in
// constant time and every request must name the device it comes from.
func DeviceAuthMiddleware(apiKey string) func(http.Handler) http.Handler {
	expected := sha256.Sum256([]byte(apiKey))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if apiKey == "" {
				problem.Write(w, r, http.StatusInternalServerError, problem.Type("device/misconfigured"), http.StatusText(http.StatusInternalServerError), "device auth is not configured")
				return
			}
			provided := sha256.Sum256([]byte(r.Header.Get("X-Device-Key")))
			if !hmac.Equal(provided[:], expected[:]) {
				problem.Write(w, r, http.StatusUnauthorized, problem.Type("device/invalid-key"), http.StatusText(http.StatusUnauthorized), "invalid device key")
				return
			}
			deviceID := strings.TrimSpace(r.Header.Get("X-Device-ID"))
			if !deviceIDPattern.MatchString(deviceID) {
				problem.Write(w, r, http.StatusBadRequest, problem.Type("device/invalid-id"), http.StatusText(http.StatusBadRequest), "X-Device-ID header is required")
				return
			}
			ctx := context.WithValue(r.Context(), deviceContextKey, deviceID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// DeviceIDFromContext returns the authenticated device id.
func DeviceIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(deviceContextKey).(string); ok {
		return v
	}
	return ""
}
