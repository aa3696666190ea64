// Package metadata captures client metadata for audit attribution. Security
// events record who acted from where, so the client IP and a normalized
// user-agent summary are resolved once at ingress and carried in the request
// context from there on.
package metadata

import (
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/mssola/useragent"

	"parapet/pkg/requestcontext"
)

// ClientMetadata resolves both values at ingress and stashes them with
// requestcontext.WithClientMetadata, ahead of anything that emits audit
// events.
func ClientMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithClientMetadata(r.Context(),
			ClientIPFromRequest(r),
			Summarize(r.Header.Get("User-Agent")),
		)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ClientIPFromRequest resolves the originating client IP, trusting proxy
// headers before the socket address. X-Forwarded-For carries the whole hop
// chain and the leftmost entry is the client.
func ClientIPFromRequest(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if rip := r.Header.Get("X-Real-IP"); rip != "" {
		return strings.TrimSpace(rip)
	}

	// Direct connection. RemoteAddr is host:port, possibly bracketed IPv6.
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return "unknown"
}

// Summarize normalizes a raw User-Agent string into a short "Browser x.y on
// OS" form suitable for audit records and log lines. Raw UA strings run to
// hundreds of characters and leak more fingerprint than the audit trail
// needs. Unrecognized agents fall back to a truncated copy of the raw value.
func Summarize(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	ua := useragent.New(raw)

	if ua.Bot() {
		if name, _ := ua.Browser(); name != "" {
			return "bot: " + name
		}
		return "bot"
	}

	name, version := ua.Browser()
	if name == "" {
		return truncate(raw, 80)
	}

	summary := name
	if version != "" {
		summary = fmt.Sprintf("%s %s", name, version)
	}
	if os := ua.OS(); os != "" {
		summary = fmt.Sprintf("%s on %s", summary, os)
	}
	if ua.Mobile() {
		summary += " (mobile)"
	}
	return summary
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
