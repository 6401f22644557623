package auth

import (
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/docledger/middleware/internal/metrics"
	apperrors "github.com/docledger/middleware/pkg/app/errors"
	apphttp "github.com/docledger/middleware/pkg/app/http"
)

// bearerPrefix is matched case-sensitively per RFC 6750 usage in the clients
// this service fronts.
const bearerPrefix = "Bearer "

// BearerToken extracts the bearer token from the Authorization header.
// Returns ErrMissingCredential if the header or prefix is absent.
func BearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, bearerPrefix) {
		return "", ErrMissingCredential
	}
	token := header[len(bearerPrefix):]
	if token == "" {
		return "", ErrMissingCredential
	}
	return token, nil
}

// Middleware returns the global authentication gate. Every route behind it
// requires a valid bearer credential; the verified Session is injected into
// the request context.
//
// All failure kinds produce the same unauthorized response, but each kind is
// logged and counted separately.
func Middleware(verifier Verifier, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := BearerToken(r)
			if err != nil {
				metrics.AuthFailures.WithLabelValues("missing_credential").Inc()
				logger.Debug("Request without bearer credential",
					zap.String("path", r.URL.Path))
				apphttp.DefaultErrorHandler(w, apperrors.UnAuthorizedError(err, "Authentication failed"))
				return
			}

			session, err := verifier.Verify(r.Context(), token)
			if err != nil {
				kind := failureKind(err)
				metrics.AuthFailures.WithLabelValues(kind).Inc()
				logger.Warn("Authentication failed",
					zap.String("path", r.URL.Path),
					zap.String("kind", kind),
					zap.Error(err))
				apphttp.DefaultErrorHandler(w, apperrors.UnAuthorizedError(err, "Authentication failed"))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), session)))
		})
	}
}

func failureKind(err error) string {
	switch {
	case errors.Is(err, ErrMissingCredential):
		return "missing_credential"
	case errors.Is(err, ErrProviderUnreachable):
		return "provider_unreachable"
	case errors.Is(err, ErrInvalidToken):
		return "invalid_token"
	default:
		return "invalid_token"
	}
}
