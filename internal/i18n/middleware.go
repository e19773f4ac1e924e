package i18n

import "net/http"

// Middleware injects a localizer into every request context. A lang query
// parameter wins over the Accept-Language header, which wins over the
// configured default.
func Middleware(defaultLang string) func(http.Handler) http.Handler {
	defaultLoc := NewLocalizer(defaultLang)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			loc := defaultLoc
			if lang := r.URL.Query().Get("lang"); lang != "" {
				loc = NewLocalizer(lang)
			} else if accept := r.Header.Get("Accept-Language"); accept != "" {
				loc = NewLocalizer(accept)
			}
			ctx := WithLocalizer(r.Context(), loc)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
