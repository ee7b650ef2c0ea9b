package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"time"

	"github.com/kamazennext/catalog/internal/auth"
)

const (
	// minAuthFailureDuration pads failed logins so they take a uniform time.
	minAuthFailureDuration = 200 * time.Millisecond

	adminRealm = `Basic realm="Catalog Admin", charset="UTF-8"`
)

// AdminAuthConfig holds configuration for the admin auth middleware.
type AdminAuthConfig struct {
	Logger       *slog.Logger
	User         string
	PasswordHash string // Argon2id PHC string; empty disables admin access
	SecureCookie bool
	CookieMaxAge time.Duration
}

// AdminAuth returns a middleware that checks HTTP Basic credentials against
// the configured admin user and password hash. An authenticated request gets
// an admin session cookie, created when missing or malformed, and the
// session id is placed in the request context.
func AdminAuth(cfg AdminAuthConfig) func(http.Handler) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "admin.auth")

	maxAge := cfg.CookieMaxAge
	if maxAge <= 0 {
		maxAge = 12 * time.Hour
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			reason := checkCredentials(r, cfg.User, cfg.PasswordHash)
			if reason != "" {
				logger.Warn("authentication failed",
					slog.String("reason", reason),
					slog.String("ip", ClientIP(r)),
					slog.String("endpoint", r.Method+" "+r.URL.Path),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				if elapsed := time.Since(start); elapsed < minAuthFailureDuration {
					time.Sleep(minAuthFailureDuration - elapsed)
				}
				writeAuthError(w)
				return
			}

			sessionID := ""
			if c, err := r.Cookie(auth.SessionCookie); err == nil && auth.ValidSessionID(c.Value) {
				sessionID = c.Value
			} else {
				id, err := auth.NewSessionID()
				if err != nil {
					logger.Error("failed to create admin session", slog.String("error", err.Error()))
					http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
					return
				}
				sessionID = id
				http.SetCookie(w, &http.Cookie{
					Name:     auth.SessionCookie,
					Value:    sessionID,
					Path:     "/admin",
					MaxAge:   int(maxAge.Seconds()),
					HttpOnly: true,
					Secure:   cfg.SecureCookie,
					SameSite: http.SameSiteStrictMode,
				})
			}

			ctx := auth.ContextWithAdmin(r.Context(), &auth.Admin{User: cfg.User, SessionID: sessionID})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// checkCredentials returns "" when the request carries the admin
// credentials, otherwise a short reason for the log.
func checkCredentials(r *http.Request, wantUser, passwordHash string) string {
	if passwordHash == "" {
		return "admin_disabled"
	}

	user, password, ok := r.BasicAuth()
	if !ok {
		return "missing_credentials"
	}

	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(wantUser)) == 1

	// The hash is checked even for an unknown user so both paths cost the same.
	match, err := auth.VerifyPassword(password, passwordHash)
	if err != nil {
		return "invalid_hash"
	}
	if !userOK || !match {
		return "invalid_credentials"
	}
	return ""
}

// writeAuthError writes a 401 with a Basic challenge.
// Uses the same message for all auth failures to prevent enumeration.
func writeAuthError(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", adminRealm)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"Authentication required","code":"UNAUTHORIZED"}`))
}
