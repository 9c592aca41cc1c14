package services

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/klong-dev/swd-stockintel-sub000/internal/core/domain/admission"
	"github.com/klong-dev/swd-stockintel-sub000/internal/core/domain/client"
	"github.com/klong-dev/swd-stockintel-sub000/internal/core/ports"
)

// AdmissionService gates every ingestion request: credential check first,
// then the rate check against the resolved client's configured limit. The
// gate holds no per-request state and never retries; retried calls consume
// additional rate budget.
type AdmissionService struct {
	credentials ports.CredentialResolver
	limiter     ports.RateLimiterService
	clientRepo  ports.ClientRepository
	logger      *logrus.Logger
}

func NewAdmissionService(credentials ports.CredentialResolver, limiter ports.RateLimiterService, clientRepo ports.ClientRepository, logger *logrus.Logger) *AdmissionService {
	return &AdmissionService{
		credentials: credentials,
		limiter:     limiter,
		clientRepo:  clientRepo,
		logger:      logger,
	}
}

// Admit resolves the secret and consumes one unit of the client's hourly
// budget. On success the access timestamp is recorded off the critical
// path; that write is best-effort and may be dropped under load.
func (s *AdmissionService) Admit(ctx context.Context, secret string) (*client.Client, error) {
	c, err := s.credentials.Resolve(ctx, secret)
	if err != nil {
		admissionsTotal.WithLabelValues(admission.Reason(err)).Inc()
		return nil, err
	}
	if !c.CanAccess() {
		admissionsTotal.WithLabelValues(admission.Reason(admission.ErrClientInactive)).Inc()
		return nil, admission.ErrClientInactive
	}

	allowed, count, _, err := s.limiter.Allow(ctx, c.ID, c.RateLimitPerHour)
	if err != nil {
		admissionsTotal.WithLabelValues(admission.Reason(err)).Inc()
		return nil, err
	}
	if !allowed {
		admissionsTotal.WithLabelValues(admission.Reason(admission.ErrRateLimited)).Inc()
		if s.logger != nil {
			s.logger.WithFields(logrus.Fields{"client_id": c.ID, "count": count, "limit": c.RateLimitPerHour}).Debug("request rate limited")
		}
		return nil, admission.ErrRateLimited
	}

	admissionsTotal.WithLabelValues("admitted").Inc()
	go s.recordAccess(c.ID)

	return c, nil
}

// recordAccess updates the advisory last-access timestamp outside the
// request's critical path.
func (s *AdmissionService) recordAccess(clientID int64) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := s.clientRepo.SetLastAccess(ctx, clientID, time.Now()); err != nil && s.logger != nil {
		s.logger.WithError(err).WithField("client_id", clientID).Debug("failed to record access time")
	}
}
