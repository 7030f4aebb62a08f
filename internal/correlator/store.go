package correlator

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"net/url"

	"github.com/amoylab/oauthprobe/internal/common/errorx"
)

// Store parks the parameters of a GET form page until the matching POST.
// Every id is consumed at most once.
type Store interface {
	// Create stores payload under a fresh id that expires after the store TTL
	Create(ctx context.Context, payload url.Values) (string, error)
	// Consume returns and removes the payload. Unknown, expired or already
	// consumed ids fail with *errorx.CorrelationError.
	Consume(ctx context.Context, id string) (url.Values, error)
	Close() error
}

// generateID returns 32 random bytes encoded url-safe without padding
func generateID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func notFound(id string) error {
	return &errorx.CorrelationError{ID: id, Reason: errorx.CorrelationReasonNotFoundOrExpired}
}

func clone(v url.Values) url.Values {
	out := make(url.Values, len(v))
	for k, vs := range v {
		out[k] = append([]string(nil), vs...)
	}
	return out
}
