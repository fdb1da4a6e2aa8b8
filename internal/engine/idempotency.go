package engine

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/kelmah-platform/kelmah-payout-service/internal/data"
)

// DefaultIdempotencyWindow buckets enqueue requests without a client nonce, so an identical request repeated within
// the window deduplicates to the same row.
const DefaultIdempotencyWindow = 24 * time.Hour

// ComputeIdempotencyKey derives the deduplication key for an enqueue request. When the client supplies a nonce the
// key is fully client-controlled; otherwise the key folds in the current idempotency window bucket.
func ComputeIdempotencyKey(userID, paymentMethodID string, amountMinor int64, currency string, p data.PayoutProvider, nonce string, window time.Duration, now time.Time) string {
	discriminator := nonce
	if discriminator == "" {
		discriminator = now.UTC().Truncate(window).Format(time.RFC3339)
	}
	payload := fmt.Sprintf("%s|%s|%d|%s|%s|%s", userID, paymentMethodID, amountMinor, currency, p, discriminator)
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}

// newPayoutReference mints a human-traceable payout reference, e.g. PO-1767225600000-042.
func newPayoutReference(now time.Time) string {
	return fmt.Sprintf("PO-%d-%03d", now.UnixMilli(), rand.IntN(1000))
}
