package admission

import "errors"

// Rejection and failure taxonomy for the ingestion gate. Handlers and
// metrics distinguish outcomes with errors.Is against these sentinels;
// repositories and services wrap them with call-site context.
var (
	// ErrInvalidCredential: no active client matches the presented secret.
	ErrInvalidCredential = errors.New("invalid credential")
	// ErrClientInactive: the secret resolved but the client is deactivated.
	ErrClientInactive = errors.New("client is inactive")
	// ErrRateLimited: the hourly request budget for the client is exhausted.
	ErrRateLimited = errors.New("rate limit exceeded")
	// ErrAssetTooLarge: the upload exceeds the client's per-asset ceiling.
	ErrAssetTooLarge = errors.New("asset exceeds maximum size")
	// ErrFormatNotAllowed: the file extension is not in the allowed set.
	ErrFormatNotAllowed = errors.New("file format not allowed")
	// ErrQuotaExceeded: the reservation would push usage past the quota.
	ErrQuotaExceeded = errors.New("storage quota exceeded")
	// ErrInconsistent: storage accounting may have drifted from reality
	// (clamped release or failed compensating release). Always logged with
	// the client id, delta and asset reference for manual reconciliation.
	ErrInconsistent = errors.New("storage accounting inconsistency")
)

// Reason labels an admission outcome for logs and metrics.
func Reason(err error) string {
	switch {
	case err == nil:
		return "admitted"
	case errors.Is(err, ErrInvalidCredential):
		return "invalid_credential"
	case errors.Is(err, ErrClientInactive):
		return "inactive"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrAssetTooLarge):
		return "asset_too_large"
	case errors.Is(err, ErrFormatNotAllowed):
		return "format_not_allowed"
	case errors.Is(err, ErrQuotaExceeded):
		return "quota_exceeded"
	case errors.Is(err, ErrInconsistent):
		return "inconsistent"
	default:
		return "upstream_error"
	}
}
