package middleware

import (
	"context"
	"net/http"
	"strings"
)

type fragmentKey struct{}

// Fragment describes an htmx-initiated request. The console only swaps
// fragments into known targets, so the target id is all it keeps besides the
// request flag.
type Fragment struct {
	Partial bool
	Target  string
}

func headerTrue(r *http.Request, name string) bool {
	return strings.EqualFold(strings.TrimSpace(r.Header.Get(name)), "true")
}

// HTMX marks htmx requests on the context and varies the response on
// HX-Request so caches never mix full pages with fragments.
func HTMX() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			frag := Fragment{Partial: headerTrue(r, "HX-Request")}
			if frag.Partial {
				frag.Target = r.Header.Get("HX-Target")
				w.Header().Add("Vary", "HX-Request")
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), fragmentKey{}, frag)))
		})
	}
}

// FragmentFromContext returns the htmx metadata attached by HTMX.
func FragmentFromContext(ctx context.Context) Fragment {
	frag, _ := ctx.Value(fragmentKey{}).(Fragment)
	return frag
}

// IsHTMXRequest reports whether the request came from htmx.
func IsHTMXRequest(ctx context.Context) bool {
	return FragmentFromContext(ctx).Partial
}

// NoStore disables caching of console pages.
func NoStore() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("Cache-Control", "no-store, max-age=0")
			h.Set("Pragma", "no-cache")
			next.ServeHTTP(w, r)
		})
	}
}
