package middleware

import (
	"context"
	"net/http"

	"github.com/mssola/useragent"
)

type deviceKey struct{}

// Device parses the User-Agent header into a compact browser/platform
// descriptor and stores it in the request context. Audit events record it so
// investigations can distinguish a user's usual device from a new one.
func Device(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua := r.Header.Get("User-Agent")
		ctx := context.WithValue(r.Context(), deviceKey{}, describeDevice(ua))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetDevice retrieves the device descriptor, or "" outside the middleware.
func GetDevice(ctx context.Context) string {
	if d, ok := ctx.Value(deviceKey{}).(string); ok {
		return d
	}
	return ""
}

// WithDevice injects a device descriptor, for tests that skip the HTTP chain.
func WithDevice(ctx context.Context, device string) context.Context {
	return context.WithValue(ctx, deviceKey{}, device)
}

func describeDevice(rawUA string) string {
	if rawUA == "" {
		return "unknown"
	}
	ua := useragent.New(rawUA)
	name, version := ua.Browser()
	if name == "" {
		return "unknown"
	}
	desc := name
	if version != "" {
		desc += " " + version
	}
	if platform := ua.Platform(); platform != "" {
		desc += " (" + platform + ")"
	}
	if ua.Mobile() {
		desc += " [mobile]"
	}
	return desc
}
