package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/adstudio/backend/internal/auth"
	"github.com/adstudio/backend/internal/logging"
)

// TokenVerifier validates bearer access tokens.
type TokenVerifier interface {
	Verify(token string) (auth.Principal, error)
}

// Authenticate requires a valid bearer token and places the resulting
// principal on the request context.
func Authenticate(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			logger := logging.FromContext(ctx)

			token, ok := bearerToken(r)
			if !ok {
				logger.Warn("missing bearer token")
				w.Header().Set("WWW-Authenticate", `Bearer realm="adstudio"`)
				writeError(w, http.StatusUnauthorized, "authentication required")
				return
			}

			principal, err := verifier.Verify(token)
			if err != nil {
				logger.Warn("rejected access token", "error", err)
				w.Header().Set("WWW-Authenticate", `Bearer realm="adstudio", error="invalid_token"`)
				writeError(w, http.StatusUnauthorized, "invalid credentials")
				return
			}

			ctx = auth.WithPrincipal(ctx, principal)
			ctx = logging.With(ctx, "account_id", principal.AccountID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
