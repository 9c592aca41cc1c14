package ports

import (
	"context"

	"github.com/klong-dev/swd-stockintel-sub000/internal/core/domain/client"
)

// AdmissionService is the gate every ingestion request passes: credential
// check, then rate check. On success it returns the resolved client and
// records the access timestamp off the critical path. Every call consumes
// one unit of rate budget; a rejected request does not give its slot back.
type AdmissionService interface {
	// Admit returns the client when the request may proceed, or one of
	// admission.ErrInvalidCredential, admission.ErrClientInactive,
	// admission.ErrRateLimited. Other errors are upstream failures.
	Admit(ctx context.Context, secret string) (*client.Client, error)
}
