package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/baharkarakas/betsave-core/internal/models"
	repo "github.com/baharkarakas/betsave-core/internal/repository"
)

const (
	HeaderAPIKey    = "X-Api-Key"
	HeaderSignature = "X-Signature"
	HeaderTimestamp = "X-Timestamp"

	// MaxClockSkew bounds |now - timestamp| for signed partner calls.
	MaxClockSkew = 5 * time.Minute
)

var (
	ErrAuthMissing   = errors.New("missing authentication headers")
	ErrAuthExpired   = errors.New("request expired")
	ErrAuthInvalid   = errors.New("invalid credentials")
	ErrAuthSuspended = errors.New("partner not active")
)

// Code maps a verifier error to its wire code.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrAuthMissing):
		return "AUTH_MISSING"
	case errors.Is(err, ErrAuthExpired):
		return "AUTH_EXPIRED"
	case errors.Is(err, ErrAuthSuspended):
		return "AUTH_SUSPENDED"
	case errors.Is(err, ErrAuthInvalid):
		return "AUTH_INVALID"
	}
	return "AUTH_ERROR"
}

// SignedRequest is everything the verifier looks at.
type SignedRequest struct {
	APIKey     string
	Signature  string
	Timestamp  string
	Method     string
	RequestURI string
	Body       []byte
}

type RequestVerifier struct {
	partners      repo.Partners
	lookupTimeout time.Duration
	now           func() time.Time
}

func NewRequestVerifier(partners repo.Partners, lookupTimeout time.Duration, now func() time.Time) *RequestVerifier {
	if lookupTimeout <= 0 {
		lookupTimeout = 5 * time.Second
	}
	if now == nil {
		now = time.Now
	}
	return &RequestVerifier{partners: partners, lookupTimeout: lookupTimeout, now: now}
}

// Verify authenticates a partner call. Checks run in a fixed order so cheap
// rejections never hit the registry.
func (v *RequestVerifier) Verify(ctx context.Context, r SignedRequest) (models.Partner, error) {
	if r.APIKey == "" || r.Signature == "" || r.Timestamp == "" {
		return models.Partner{}, ErrAuthMissing
	}

	ms, err := strconv.ParseInt(r.Timestamp, 10, 64)
	if err != nil {
		return models.Partner{}, fmt.Errorf("%w: timestamp", ErrAuthInvalid)
	}
	skew := v.now().Sub(time.UnixMilli(ms))
	if skew < 0 {
		skew = -skew
	}
	if skew > MaxClockSkew {
		return models.Partner{}, ErrAuthExpired
	}

	lctx, cancel := context.WithTimeout(ctx, v.lookupTimeout)
	defer cancel()
	p, err := v.partners.GetByAPIKey(lctx, r.APIKey)
	if errors.Is(err, repo.ErrNotFound) {
		return models.Partner{}, fmt.Errorf("%w: api key", ErrAuthInvalid)
	}
	if err != nil {
		return models.Partner{}, fmt.Errorf("partner lookup: %w", err)
	}
	if !p.Active() {
		return models.Partner{}, ErrAuthSuspended
	}

	if !WellFormedSignature(r.Signature) {
		return models.Partner{}, fmt.Errorf("%w: signature format", ErrAuthInvalid)
	}
	body, err := CanonicalBody(r.Body)
	if err != nil {
		return models.Partner{}, fmt.Errorf("%w: body is not valid json", ErrAuthInvalid)
	}
	want := RequestSignature(p.APISecret, r.Timestamp, r.Method, r.RequestURI, body)
	if !EqualSignatures(want, r.Signature) {
		return models.Partner{}, fmt.Errorf("%w: signature", ErrAuthInvalid)
	}
	return p, nil
}
