package idempotency

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const Header = "Idempotency-Key"

var ErrInProgress = errors.New("request with this idempotency key is still in progress")

// Store remembers which order an idempotency key produced.
type Store interface {
	// Reserve claims key. When the key was already completed the stored
	// order id is returned with reserved == false. A key reserved but not
	// completed yields ErrInProgress.
	Reserve(ctx context.Context, key string, ttl time.Duration) (orderID uuid.UUID, reserved bool, err error)
	Complete(ctx context.Context, key string, orderID uuid.UUID, ttl time.Duration) error
	Release(ctx context.Context, key string) error
}

func Key(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(Header))
}
