package middleware

import (
	"net/http"
	"slices"
	"strconv"
	"strings"
)

const (
	apiPathPrefix     = "/api/"
	uploadPathPrefix  = "/api/v1/uploads"
	webhookPathPrefix = "/webhooks/"

	apiContentSecurityPolicy = "default-src 'none'; frame-ancestors 'none'; base-uri 'none'"
	uploadMaxAgeSeconds      = 86400
)

var (
	// uploadAllowedHeaderList is also the allow list of upload preflights in CORS.
	uploadAllowedHeaderList = []string{ //nolint:gochecknoglobals
		"Authorization", "Content-Type", "Content-Length", "X-File-Type", "X-File-Name",
	}

	uploadAllowedHeaders = strings.Join(uploadAllowedHeaderList, ", ") //nolint:gochecknoglobals
	uploadMaxAge         = strconv.Itoa(uploadMaxAgeSeconds)          //nolint:gochecknoglobals
)

// WebhookPartnerOrigins are the store and distributor origins whose webhook
// deliveries may carry an Origin header.
var WebhookPartnerOrigins = []string{ //nolint:gochecknoglobals
	"https://api.spotify.com",
	"https://music.apple.com",
	"https://books.apple.com",
	"https://music.amazon.com",
	"https://kdp.amazon.com",
	"https://api.tidal.com",
	"https://api.deezer.com",
	"https://bandcamp.com",
	"https://www.kobo.com",
	"https://play.google.com",
}

// SecurityHeaders creates a middleware that sets response headers by path:
// hardened headers on /api/, permissive upload headers on /api/v1/uploads and an
// origin echo for known partners on /webhooks/.
func SecurityHeaders() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			path := r.URL.Path

			if strings.HasPrefix(path, apiPathPrefix) {
				h.Set("Content-Security-Policy", apiContentSecurityPolicy)
				h.Set("X-Frame-Options", "DENY")
				h.Set("X-Content-Type-Options", "nosniff")
				h.Set("X-XSS-Protection", "1; mode=block")
				h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			}

			if strings.HasPrefix(path, uploadPathPrefix) {
				h.Set("Access-Control-Allow-Headers", uploadAllowedHeaders)
				h.Set("Access-Control-Max-Age", uploadMaxAge)
				h.Set("Cross-Origin-Resource-Policy", "cross-origin")
			}

			if strings.HasPrefix(path, webhookPathPrefix) {
				if origin := r.Header.Get("Origin"); isWebhookPartner(origin) {
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

func isWebhookPartner(origin string) bool {
	return origin != "" && slices.Contains(WebhookPartnerOrigins, origin)
}
