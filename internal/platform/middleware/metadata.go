package middleware

import (
	"net"
	"net/http"

	"github.com/mssola/useragent"

	"datex/pkg/requestcontext"
)

// Metadata captures caller address and user agent into the request context so
// audit entries can be enriched without handlers touching HTTP headers.
func Metadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		ip := r.Header.Get("X-Forwarded-For")
		if ip == "" {
			if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
				ip = host
			} else {
				ip = r.RemoteAddr
			}
		}
		ctx = requestcontext.WithClientIP(ctx, ip)

		if raw := r.UserAgent(); raw != "" {
			ua := useragent.New(raw)
			name, version := ua.Browser()
			if name == "" {
				name = raw
			}
			label := name
			if version != "" {
				label += "/" + version
			}
			ctx = requestcontext.WithUserAgent(ctx, label)
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
