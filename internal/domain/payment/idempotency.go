package payment

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

const idempotencyKeyPrefix = "chk_"

// IdempotencyKey derives a deterministic key from the checkout line items,
// currency and redirect targets. Identical requests yield identical keys.
func IdempotencyKey(req CheckoutRequest) string {
	h := sha256.New()
	// fields are quoted so separators inside a name cannot forge another line
	for _, item := range req.LineItems {
		fmt.Fprintf(h, "item:%q|%d|%d\n", item.Name, item.UnitAmount, item.Quantity)
	}
	fmt.Fprintf(h, "currency:%q\n", strings.ToLower(strings.TrimSpace(req.Currency)))
	fmt.Fprintf(h, "success:%q\n", req.SuccessURL)
	fmt.Fprintf(h, "cancel:%q\n", req.CancelURL)
	return idempotencyKeyPrefix + hex.EncodeToString(h.Sum(nil))
}

// SaltedKey derives a fresh key from a rejected one
func SaltedKey(key, salt string) string {
	sum := sha256.Sum256([]byte(key + ":" + salt))
	return idempotencyKeyPrefix + hex.EncodeToString(sum[:])
}
