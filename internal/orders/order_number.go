package orders

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

const orderNumberSuffixLen = 6

var orderNumberAlphabet = []byte("0123456789ABCDEFGHJKMNPQRSTUVWXYZ")

// generateOrderNumber builds a human-readable order number from the current
// date plus a random suffix, e.g. ORD-20260824-7KM2Q9. Uniqueness is enforced
// by the database constraint; callers retry on collision.
func generateOrderNumber(now time.Time) (string, error) {
	suffix := make([]byte, orderNumberSuffixLen)
	max := big.NewInt(int64(len(orderNumberAlphabet)))
	for i := range suffix {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("order number entropy: %w", err)
		}
		suffix[i] = orderNumberAlphabet[n.Int64()]
	}
	return fmt.Sprintf("ORD-%s-%s", now.UTC().Format("20060102"), suffix), nil
}
