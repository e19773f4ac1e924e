package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/abenov/zanexam/internal/store"
)

// requireAdmin guards admin routes with a bearer token checked against the
// bcrypt hash seeded into grader metadata at startup.
func (h *Handler) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			w.Header().Set("WWW-Authenticate", "Bearer")
			respondError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		hash, err := h.store.GetMetadata(store.AdminPasswordKey)
		if err != nil {
			slog.Error("load admin credential", "error", err)
			respondError(w, http.StatusInternalServerError, "credential check failed")
			return
		}
		if hash == "" {
			respondError(w, http.StatusForbidden, "admin access not configured")
			return
		}
		if bcrypt.CompareHashAndPassword([]byte(hash), []byte(token)) != nil {
			respondError(w, http.StatusForbidden, "invalid credentials")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) (string, bool) {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(auth, prefix) {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(auth, prefix))
	return token, token != ""
}

func (h *Handler) listSubmissions(w http.ResponseWriter, _ *http.Request) {
	subs, err := h.store.ListSubmissions()
	if err != nil {
		slog.Error("list submissions", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to list submissions")
		return
	}
	respondJSON(w, http.StatusOK, subs)
}

func (h *Handler) exportSubmissions(w http.ResponseWriter, _ *http.Request) {
	export, err := h.store.ExportAllSubmissions()
	if err != nil {
		slog.Error("export submissions", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to export submissions")
		return
	}
	w.Header().Set("Content-Disposition", `attachment; filename="submissions.json"`)
	respondJSON(w, http.StatusOK, export)
}
