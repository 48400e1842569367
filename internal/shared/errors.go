package shared

import "errors"

// ErrIdempotencyKeyMissing occurs when a confirming request carries no key.
var ErrIdempotencyKeyMissing = errors.New("idempotency key missing")
