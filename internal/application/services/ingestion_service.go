package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/klong-dev/swd-stockintel-sub000/internal/core/domain/admission"
	"github.com/klong-dev/swd-stockintel-sub000/internal/core/domain/asset"
	"github.com/klong-dev/swd-stockintel-sub000/internal/core/ports"
)

// compensationTimeout bounds the cleanup work that runs after the caller's
// context is no longer usable (failure or cancellation mid-upload).
const compensationTimeout = 10 * time.Second

// IngestionService implements the upload and deletion workflows on top of
// the admission gate, the quota accountant and the external object store.
// The ordering invariant: quota is reserved before bytes leave the process,
// and any failure after the reservation runs a compensating release before
// the error surfaces. Quota is never released for an object that may still
// physically exist.
type IngestionService struct {
	gate      ports.AdmissionService
	quota     ports.QuotaAccountant
	assets    ports.AssetRepository
	store     ports.ObjectStorage
	keyPrefix string
	logger    *logrus.Logger
}

func NewIngestionService(gate ports.AdmissionService, quota ports.QuotaAccountant, assets ports.AssetRepository, store ports.ObjectStorage, keyPrefix string, logger *logrus.Logger) *IngestionService {
	if keyPrefix == "" {
		keyPrefix = "assets"
	}
	return &IngestionService{
		gate:      gate,
		quota:     quota,
		assets:    assets,
		store:     store,
		keyPrefix: keyPrefix,
		logger:    logger,
	}
}

// Upload runs the full ingestion sequence: admission, validation,
// reservation, external store, record persistence.
func (s *IngestionService) Upload(ctx context.Context, secret string, data []byte, fileName string) (*asset.Asset, error) {
	c, err := s.gate.Admit(ctx, secret)
	if err != nil {
		return nil, err
	}

	size := int64(len(data))
	if size > c.MaxAssetBytes {
		return nil, admission.ErrAssetTooLarge
	}
	ext := asset.Extension(fileName)
	if !c.AllowsFormat(ext) {
		return nil, admission.ErrFormatNotAllowed
	}

	reserved, err := s.quota.Reserve(ctx, c.ID, size)
	if err != nil {
		return nil, err
	}

	assetID := uuid.New()
	key := s.objectKey(c.ID, assetID, ext)

	// A caller that cancels between the reservation and the upload still
	// owes the accountant a release.
	if err := ctx.Err(); err != nil {
		s.compensate(c.ID, reserved, key, false)
		return nil, err
	}

	url, err := s.store.Put(ctx, key, data)
	if err != nil {
		s.compensate(c.ID, reserved, key, false)
		return nil, fmt.Errorf("failed to upload asset: %w", err)
	}

	a := &asset.Asset{
		ID:            assetID,
		ClientID:      c.ID,
		FileName:      fileName,
		StorageKey:    key,
		URL:           url,
		SizeBytes:     size,
		ReservedBytes: reserved,
	}
	if err := s.assets.Create(ctx, a); err != nil {
		// The object made it to external storage; remove it before freeing
		// the reservation so quota is never released for live bytes.
		s.compensate(c.ID, reserved, key, true)
		return nil, fmt.Errorf("failed to persist asset record: %w", err)
	}

	if s.logger != nil {
		s.logger.WithFields(logrus.Fields{"client_id": c.ID, "asset_id": a.ID, "reserved": reserved}).Info("asset stored")
	}
	return a, nil
}

// Delete removes the external object first, then releases the recorded
// reservation, then drops the record. If the external delete fails the
// record stays and nothing is released.
func (s *IngestionService) Delete(ctx context.Context, id uuid.UUID) error {
	a, err := s.assets.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.store.Delete(ctx, a.StorageKey); err != nil {
		return fmt.Errorf("failed to delete stored object: %w", err)
	}

	if _, err := s.quota.Release(ctx, a.ClientID, a.ReservedBytes); err != nil {
		// The object is gone but the counter still carries it. Loud, with
		// everything reconciliation needs.
		if s.logger != nil {
			s.logger.WithError(err).WithFields(logrus.Fields{
				"client_id":   a.ClientID,
				"delta":       a.ReservedBytes,
				"asset_id":    a.ID,
				"storage_key": a.StorageKey,
			}).Error("failed to release quota after object deletion")
		}
		return fmt.Errorf("release after delete of asset %s: %w", a.ID, admission.ErrInconsistent)
	}

	if err := s.assets.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete asset record: %w", err)
	}
	return nil
}

// GetAsset returns a single asset record.
func (s *IngestionService) GetAsset(ctx context.Context, id uuid.UUID) (*asset.Asset, error) {
	return s.assets.GetByID(ctx, id)
}

// ListAssets returns a client's asset records.
func (s *IngestionService) ListAssets(ctx context.Context, clientID int64, limit, offset int) ([]*asset.Asset, error) {
	return s.assets.ListByClient(ctx, clientID, limit, offset)
}

// compensate reverses a reservation after a failed or abandoned upload,
// optionally deleting the uploaded object first. It runs on a fresh context
// because the caller's may already be canceled.
func (s *IngestionService) compensate(clientID, reserved int64, key string, objectStored bool) {
	ctx, cancel := context.WithTimeout(context.Background(), compensationTimeout)
	defer cancel()

	if objectStored {
		if err := s.store.Delete(ctx, key); err != nil {
			// Leave the reservation in place: the object may still exist.
			compensationFailuresTotal.Inc()
			if s.logger != nil {
				s.logger.WithError(err).WithFields(logrus.Fields{
					"client_id":   clientID,
					"delta":       reserved,
					"storage_key": key,
				}).Error("failed to delete orphaned object; reservation retained for reconciliation")
			}
			return
		}
	}

	if _, err := s.quota.Release(ctx, clientID, reserved); err != nil {
		compensationFailuresTotal.Inc()
		if s.logger != nil {
			s.logger.WithError(err).WithFields(logrus.Fields{
				"client_id":   clientID,
				"delta":       reserved,
				"storage_key": key,
			}).Error("compensating release failed; usage counter requires manual reconciliation")
		}
	}
}

func (s *IngestionService) objectKey(clientID int64, assetID uuid.UUID, ext string) string {
	if ext != "" {
		return fmt.Sprintf("%s/%d/%s.%s", s.keyPrefix, clientID, assetID, ext)
	}
	return fmt.Sprintf("%s/%d/%s", s.keyPrefix, clientID, assetID)
}
