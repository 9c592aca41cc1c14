package ports

import "context"

// QuotaAccountant maintains each client's used-storage counter in the
// durable store. Byte arguments are raw sizes; both operations round them
// up to whole storage units with the same function, so a reserve/release
// pair for one asset always cancels out exactly.
type QuotaAccountant interface {
	// Reserve charges the rounded size of an upload against the client's
	// quota. Returns the rounded delta that was committed, or
	// admission.ErrQuotaExceeded (with no mutation) when it does not fit.
	Reserve(ctx context.Context, clientID int64, sizeBytes int64) (reserved int64, err error)
	// Release frees the rounded size of a deleted or failed upload, clamped
	// at a floor of zero. A clamp is logged and counted as an accounting
	// inconsistency; in strict mode it is also returned as an error.
	Release(ctx context.Context, clientID int64, sizeBytes int64) (released int64, err error)
}
