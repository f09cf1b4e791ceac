package auth

import (
	"context"
	"net/http"
)

// contextKey is an unexported type used for context keys in this package.
//
// context.WithValue uses any as the key type. A plain string key like
// "studentID" could be read or shadowed by any package that knows the
// string; a package-private type makes collisions impossible — only this
// package can create the key, so only this package can set the value.
type contextKey string

const studentIDKey contextKey = "studentID"

// RequireAuth is a middleware that enforces authentication on protected
// routes.
//
// It reads the JWT from the "token" HttpOnly cookie, validates it, and
// stores the student id in the request context. If the token is missing or
// invalid, it returns 401 Unauthorized and stops the request chain.
func RequireAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			studentID, err := extractStudentID(r, tokens)
			if err != nil {
				http.Error(w, `{"error":"unauthorized","message":"valid authentication required"}`, http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), studentIDKey, studentID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalAuth extracts the caller's identity if a valid token is present
// but does NOT block the request otherwise.
//
// Used on public routes like the post list, where anonymous readers are fine
// but an authenticated reader's identity still matters (acting user for
// comment attribution, self-notification suppression). Handlers check via
// StudentIDFromContext — ("", false) means the request is anonymous.
func OptionalAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if studentID, err := extractStudentID(r, tokens); err == nil && studentID != "" {
				ctx := context.WithValue(r.Context(), studentIDKey, studentID)
				r = r.WithContext(ctx)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// StudentIDFromContext retrieves the authenticated student id from the
// request context. Returns ("", false) for anonymous requests.
func StudentIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(studentIDKey).(string)
	return id, ok && id != ""
}

// extractStudentID reads the JWT cookie and validates it.
// Shared by RequireAuth and OptionalAuth.
func extractStudentID(r *http.Request, tokens *TokenService) (string, error) {
	cookie, err := r.Cookie("token")
	if err != nil {
		// http.ErrNoCookie — not an error, just an anonymous request
		return "", err
	}

	return tokens.Validate(cookie.Value)
}
