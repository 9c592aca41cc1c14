package services

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/klong-dev/swd-stockintel-sub000/internal/core/domain/admission"
	"github.com/klong-dev/swd-stockintel-sub000/internal/core/domain/client"
	"github.com/klong-dev/swd-stockintel-sub000/internal/core/ports"
)

// QuotaService implements storage accounting on top of the client
// repository's conditional counter updates. All sizes pass through
// client.RoundToStorageUnit with one configured unit, on reserve and
// release alike.
type QuotaService struct {
	repo          ports.ClientRepository
	unit          int64
	strictRelease bool
	logger        *logrus.Logger
}

// QuotaConfig groups configuration for the accountant.
type QuotaConfig struct {
	UnitBytes int64
	// StrictRelease makes a clamped release a hard error; the default is to
	// log and count it, keeping the delete path available for cleanup.
	StrictRelease bool
}

func NewQuotaService(repo ports.ClientRepository, cfg *QuotaConfig, logger *logrus.Logger) *QuotaService {
	unit := client.DefaultStorageUnit
	strict := false
	if cfg != nil {
		if cfg.UnitBytes > 0 {
			unit = cfg.UnitBytes
		}
		strict = cfg.StrictRelease
	}
	return &QuotaService{repo: repo, unit: unit, strictRelease: strict, logger: logger}
}

// Reserve charges the rounded size against the client's quota, returning
// the committed delta. admission.ErrQuotaExceeded means nothing was
// mutated.
func (s *QuotaService) Reserve(ctx context.Context, clientID int64, sizeBytes int64) (int64, error) {
	delta := client.RoundToStorageUnit(sizeBytes, s.unit)

	ok, err := s.repo.IncrementUsedStorage(ctx, clientID, delta)
	if err != nil {
		quotaReservationsTotal.WithLabelValues("error").Inc()
		return 0, fmt.Errorf("failed to reserve storage: %w", err)
	}
	if !ok {
		quotaReservationsTotal.WithLabelValues("exceeded").Inc()
		return 0, admission.ErrQuotaExceeded
	}

	quotaReservationsTotal.WithLabelValues("reserved").Inc()
	return delta, nil
}

// Release frees the rounded size, clamped at zero. A clamp means a release
// arrived without a matching reservation; it is logged with enough detail
// for reconciliation and, in strict mode, surfaced as an error.
func (s *QuotaService) Release(ctx context.Context, clientID int64, sizeBytes int64) (int64, error) {
	delta := client.RoundToStorageUnit(sizeBytes, s.unit)

	newUsed, clamped, err := s.repo.ReleaseUsedStorage(ctx, clientID, delta)
	if err != nil {
		return 0, fmt.Errorf("failed to release storage: %w", err)
	}
	if clamped {
		quotaReleaseClampsTotal.Inc()
		if s.logger != nil {
			s.logger.WithFields(logrus.Fields{
				"client_id": clientID,
				"delta":     delta,
				"new_used":  newUsed,
			}).Error("storage release clamped at zero; usage counter had drifted")
		}
		if s.strictRelease {
			return delta, fmt.Errorf("release of %d bytes for client %d clamped: %w", delta, clientID, admission.ErrInconsistent)
		}
	}

	return delta, nil
}
