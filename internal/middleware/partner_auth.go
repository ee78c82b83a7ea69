package middleware

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/baharkarakas/betsave-core/internal/api/httpx"
	"github.com/baharkarakas/betsave-core/internal/auth"
	"github.com/baharkarakas/betsave-core/internal/metrics"
	"github.com/baharkarakas/betsave-core/internal/models"
)

const maxSignedBody = 1 << 20

// PartnerAuth verifies the HMAC headers of partner calls and attaches the
// partner identity to the request context. The body is buffered and restored
// for the handler.
func PartnerAuth(v *auth.RequestVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, err := io.ReadAll(io.LimitReader(r.Body, maxSignedBody+1))
			if err != nil {
				httpx.WriteError(w, http.StatusBadRequest, "bad_request", "unreadable body", nil)
				return
			}
			if len(body) > maxSignedBody {
				httpx.WriteError(w, http.StatusRequestEntityTooLarge, "body_too_large", "body too large", nil)
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			p, err := v.Verify(r.Context(), auth.SignedRequest{
				APIKey:     r.Header.Get(auth.HeaderAPIKey),
				Signature:  r.Header.Get(auth.HeaderSignature),
				Timestamp:  r.Header.Get(auth.HeaderTimestamp),
				Method:     r.Method,
				RequestURI: r.URL.RequestURI(),
				Body:       body,
			})
			if err != nil {
				code := auth.Code(err)
				metrics.AuthRejected.WithLabelValues(code).Inc()
				status := http.StatusUnauthorized
				switch {
				case errors.Is(err, auth.ErrAuthSuspended):
					status = http.StatusForbidden
				case code == "AUTH_ERROR":
					slog.Error("partner verification failed", "err", err, "request_id", RequestIDFrom(r.Context()))
					status = http.StatusInternalServerError
				}
				httpx.WriteError(w, status, code, authMessage(err), nil)
				return
			}

			ctx := WithPartner(r.Context(), models.PartnerIdentity{ID: p.ID, Name: p.Name})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func authMessage(err error) string {
	switch {
	case errors.Is(err, auth.ErrAuthMissing):
		return auth.ErrAuthMissing.Error()
	case errors.Is(err, auth.ErrAuthExpired):
		return auth.ErrAuthExpired.Error()
	case errors.Is(err, auth.ErrAuthSuspended):
		return auth.ErrAuthSuspended.Error()
	case errors.Is(err, auth.ErrAuthInvalid):
		return auth.ErrAuthInvalid.Error()
	}
	return "partner verification failed"
}
