package services_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	impl "github.com/klong-dev/swd-stockintel-sub000/internal/application/services"
	"github.com/klong-dev/swd-stockintel-sub000/internal/core/domain/admission"
	"github.com/klong-dev/swd-stockintel-sub000/internal/core/domain/asset"
	"github.com/klong-dev/swd-stockintel-sub000/internal/core/domain/client"
	tmocks "github.com/klong-dev/swd-stockintel-sub000/test/mocks"
)

// newUploadHarness wires a real quota accountant over an in-memory client
// store so upload/delete tests observe actual counter movement.
func newUploadHarness(t *testing.T, maxStorage, used int64) (*tmocks.MemoryClientStore, *client.Client, *impl.QuotaService) {
	t.Helper()
	store := tmocks.NewMemoryClientStore()
	c := seedClient(store, maxStorage, used)
	return store, c, impl.NewQuotaService(store, nil, logrus.New())
}

func gateFor(c *client.Client) *tmocks.AdmissionServiceMock {
	return &tmocks.AdmissionServiceMock{AdmitFn: func(ctx context.Context, secret string) (*client.Client, error) {
		if secret != c.Secret {
			return nil, admission.ErrInvalidCredential
		}
		cp := *c
		return &cp, nil
	}}
}

func TestUpload_Success(t *testing.T) {
	store, c, quota := newUploadHarness(t, 20*mib, 9*mib)
	c.Secret = "sk_up"
	created := &tmocks.AssetRepositoryMock{}
	objStore := &tmocks.ObjectStorageMock{}

	svc := impl.NewIngestionService(gateFor(c), quota, created, objStore, "assets", logrus.New())

	data := bytes.Repeat([]byte("x"), int(3*mib)-100)
	a, err := svc.Upload(context.Background(), "sk_up", data, "photo.jpg")
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if a.SizeBytes != int64(len(data)) {
		t.Fatalf("size %d", a.SizeBytes)
	}
	if a.ReservedBytes != 3*mib {
		t.Fatalf("reserved %d, want rounded 3 MiB", a.ReservedBytes)
	}
	if !strings.HasPrefix(a.URL, "https://") {
		t.Fatalf("url %q", a.URL)
	}
	got, _ := store.GetByID(context.Background(), c.ID)
	if got.UsedStorageBytes != 12*mib {
		t.Fatalf("counter %d, want 12 MiB after reserving 3 on top of 9", got.UsedStorageBytes)
	}
}

func TestUpload_RejectedBeforeReservation(t *testing.T) {
	store, c, quota := newUploadHarness(t, 20*mib, 9*mib)
	c.Secret = "sk_up"
	c.MaxAssetBytes = 2 * mib
	svc := impl.NewIngestionService(gateFor(c), quota, &tmocks.AssetRepositoryMock{}, &tmocks.ObjectStorageMock{}, "assets", logrus.New())

	// Too large for the per-asset ceiling.
	_, err := svc.Upload(context.Background(), "sk_up", make([]byte, 3*mib), "big.jpg")
	if !errors.Is(err, admission.ErrAssetTooLarge) {
		t.Fatalf("expected ErrAssetTooLarge, got %v", err)
	}

	// Disallowed format.
	_, err = svc.Upload(context.Background(), "sk_up", []byte("MZ"), "tool.exe")
	if !errors.Is(err, admission.ErrFormatNotAllowed) {
		t.Fatalf("expected ErrFormatNotAllowed, got %v", err)
	}

	// Bad secret never reaches validation.
	_, err = svc.Upload(context.Background(), "sk_wrong", []byte("x"), "a.jpg")
	if !errors.Is(err, admission.ErrInvalidCredential) {
		t.Fatalf("expected ErrInvalidCredential, got %v", err)
	}

	got, _ := store.GetByID(context.Background(), c.ID)
	if got.UsedStorageBytes != 9*mib {
		t.Fatalf("pre-reservation rejections must not move the counter: %d", got.UsedStorageBytes)
	}
}

func TestUpload_QuotaExceeded(t *testing.T) {
	_, c, quota := newUploadHarness(t, 10*mib, 9*mib)
	c.Secret = "sk_up"
	putCalled := false
	objStore := &tmocks.ObjectStorageMock{PutFn: func(ctx context.Context, key string, data []byte) (string, error) {
		putCalled = true
		return "https://cdn.example.com/" + key, nil
	}}
	svc := impl.NewIngestionService(gateFor(c), quota, &tmocks.AssetRepositoryMock{}, objStore, "assets", logrus.New())

	_, err := svc.Upload(context.Background(), "sk_up", make([]byte, 2*mib), "big.jpg")
	if !errors.Is(err, admission.ErrQuotaExceeded) {
		t.Fatalf("expected ErrQuotaExceeded, got %v", err)
	}
	if putCalled {
		t.Fatalf("no bytes may leave the process without a reservation")
	}
}

func TestUpload_StoreFailureReleasesReservation(t *testing.T) {
	store, c, quota := newUploadHarness(t, 20*mib, 9*mib)
	c.Secret = "sk_up"
	objStore := &tmocks.ObjectStorageMock{PutFn: func(ctx context.Context, key string, data []byte) (string, error) {
		return "", errors.New("s3 unavailable")
	}}
	svc := impl.NewIngestionService(gateFor(c), quota, &tmocks.AssetRepositoryMock{}, objStore, "assets", logrus.New())

	_, err := svc.Upload(context.Background(), "sk_up", make([]byte, 2*mib), "photo.jpg")
	if err == nil {
		t.Fatalf("expected upload failure")
	}
	got, _ := store.GetByID(context.Background(), c.ID)
	if got.UsedStorageBytes != 9*mib {
		t.Fatalf("counter %d, want reservation released back to 9 MiB", got.UsedStorageBytes)
	}
}

func TestUpload_PersistFailureDeletesObjectThenReleases(t *testing.T) {
	store, c, quota := newUploadHarness(t, 20*mib, 9*mib)
	c.Secret = "sk_up"
	var deletedKey string
	objStore := &tmocks.ObjectStorageMock{DeleteFn: func(ctx context.Context, key string) error {
		deletedKey = key
		return nil
	}}
	assets := &tmocks.AssetRepositoryMock{CreateFn: func(ctx context.Context, a *asset.Asset) error {
		return errors.New("db down")
	}}
	svc := impl.NewIngestionService(gateFor(c), quota, assets, objStore, "assets", logrus.New())

	_, err := svc.Upload(context.Background(), "sk_up", make([]byte, 2*mib), "photo.jpg")
	if err == nil {
		t.Fatalf("expected persist failure")
	}
	if deletedKey == "" {
		t.Fatalf("orphaned object was not deleted")
	}
	got, _ := store.GetByID(context.Background(), c.ID)
	if got.UsedStorageBytes != 9*mib {
		t.Fatalf("counter %d, want 9 MiB after full compensation", got.UsedStorageBytes)
	}
}

func TestUpload_OrphanDeleteFailureRetainsReservation(t *testing.T) {
	store, c, quota := newUploadHarness(t, 20*mib, 9*mib)
	c.Secret = "sk_up"
	objStore := &tmocks.ObjectStorageMock{DeleteFn: func(ctx context.Context, key string) error {
		return errors.New("s3 unavailable")
	}}
	assets := &tmocks.AssetRepositoryMock{CreateFn: func(ctx context.Context, a *asset.Asset) error {
		return errors.New("db down")
	}}
	svc := impl.NewIngestionService(gateFor(c), quota, assets, objStore, "assets", logrus.New())

	_, err := svc.Upload(context.Background(), "sk_up", make([]byte, 2*mib), "photo.jpg")
	if err == nil {
		t.Fatalf("expected persist failure")
	}
	got, _ := store.GetByID(context.Background(), c.ID)
	if got.UsedStorageBytes != 11*mib {
		t.Fatalf("counter %d; quota must stay reserved while the object may still exist", got.UsedStorageBytes)
	}
}

func TestUpload_CanceledAfterReservationReleases(t *testing.T) {
	store, c, quota := newUploadHarness(t, 20*mib, 9*mib)
	c.Secret = "sk_up"

	ctx, cancel := context.WithCancel(context.Background())
	gate := &tmocks.AdmissionServiceMock{AdmitFn: func(ctx context.Context, secret string) (*client.Client, error) {
		// Cancel while the request is inside the workflow, after admission
		// but before the external store call.
		cancel()
		cp := *c
		return &cp, nil
	}}
	putCalled := false
	objStore := &tmocks.ObjectStorageMock{PutFn: func(ctx context.Context, key string, data []byte) (string, error) {
		putCalled = true
		return "", ctx.Err()
	}}
	svc := impl.NewIngestionService(gate, quota, &tmocks.AssetRepositoryMock{}, objStore, "assets", logrus.New())

	_, err := svc.Upload(ctx, "sk_up", make([]byte, 2*mib), "photo.jpg")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if putCalled {
		t.Fatalf("canceled request must not reach the object store")
	}
	got, _ := store.GetByID(context.Background(), c.ID)
	if got.UsedStorageBytes != 9*mib {
		t.Fatalf("counter %d, want abandoned reservation released", got.UsedStorageBytes)
	}
}

func TestDelete_ReleasesRecordedReservation(t *testing.T) {
	store, c, quota := newUploadHarness(t, 20*mib, 12*mib)
	id := uuid.New()
	a := &asset.Asset{ID: id, ClientID: c.ID, StorageKey: "assets/1/x.jpg", ReservedBytes: 3 * mib, SizeBytes: 3*mib - 100}
	recordDeleted := false
	assets := &tmocks.AssetRepositoryMock{
		GetByIDFn: func(ctx context.Context, q uuid.UUID) (*asset.Asset, error) {
			if q == id {
				return a, nil
			}
			return nil, asset.ErrNotFound
		},
		DeleteFn: func(ctx context.Context, q uuid.UUID) error {
			recordDeleted = true
			return nil
		},
	}
	svc := impl.NewIngestionService(&tmocks.AdmissionServiceMock{}, quota, assets, &tmocks.ObjectStorageMock{}, "assets", logrus.New())

	if err := svc.Delete(context.Background(), id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !recordDeleted {
		t.Fatalf("asset record not removed")
	}
	got, _ := store.GetByID(context.Background(), c.ID)
	if got.UsedStorageBytes != 9*mib {
		t.Fatalf("counter %d, want 9 MiB after releasing the recorded 3", got.UsedStorageBytes)
	}
}

func TestDelete_StoreFailureKeepsRecordAndQuota(t *testing.T) {
	store, c, quota := newUploadHarness(t, 20*mib, 12*mib)
	id := uuid.New()
	a := &asset.Asset{ID: id, ClientID: c.ID, StorageKey: "assets/1/x.jpg", ReservedBytes: 3 * mib}
	assets := &tmocks.AssetRepositoryMock{
		GetByIDFn: func(ctx context.Context, q uuid.UUID) (*asset.Asset, error) { return a, nil },
		DeleteFn: func(ctx context.Context, q uuid.UUID) error {
			t.Fatalf("record must survive a failed object delete")
			return nil
		},
	}
	objStore := &tmocks.ObjectStorageMock{DeleteFn: func(ctx context.Context, key string) error {
		return errors.New("s3 unavailable")
	}}
	svc := impl.NewIngestionService(&tmocks.AdmissionServiceMock{}, quota, assets, objStore, "assets", logrus.New())

	if err := svc.Delete(context.Background(), id); err == nil {
		t.Fatalf("expected delete failure")
	}
	got, _ := store.GetByID(context.Background(), c.ID)
	if got.UsedStorageBytes != 12*mib {
		t.Fatalf("counter %d; nothing may be released while the object exists", got.UsedStorageBytes)
	}
}

func TestDelete_ReleaseFailureIsInconsistency(t *testing.T) {
	id := uuid.New()
	a := &asset.Asset{ID: id, ClientID: 1, StorageKey: "assets/1/x.jpg", ReservedBytes: 3 * mib}
	assets := &tmocks.AssetRepositoryMock{
		GetByIDFn: func(ctx context.Context, q uuid.UUID) (*asset.Asset, error) { return a, nil },
	}
	quota := &tmocks.QuotaAccountantMock{ReleaseFn: func(ctx context.Context, clientID, sizeBytes int64) (int64, error) {
		return 0, errors.New("db down")
	}}
	svc := impl.NewIngestionService(&tmocks.AdmissionServiceMock{}, quota, assets, &tmocks.ObjectStorageMock{}, "assets", logrus.New())

	err := svc.Delete(context.Background(), id)
	if !errors.Is(err, admission.ErrInconsistent) {
		t.Fatalf("expected ErrInconsistent when quota cannot be released, got %v", err)
	}
}

func TestUploadDelete_Reconciles(t *testing.T) {
	// Full cycle: 9 MiB used, upload ~3 MiB, delete it, counter back to 9.
	store, c, quota := newUploadHarness(t, 20*mib, 9*mib)
	c.Secret = "sk_up"

	var stored *asset.Asset
	assets := &tmocks.AssetRepositoryMock{
		CreateFn: func(ctx context.Context, a *asset.Asset) error {
			stored = a
			return nil
		},
		GetByIDFn: func(ctx context.Context, q uuid.UUID) (*asset.Asset, error) {
			if stored != nil && stored.ID == q {
				return stored, nil
			}
			return nil, asset.ErrNotFound
		},
	}
	svc := impl.NewIngestionService(gateFor(c), quota, assets, &tmocks.ObjectStorageMock{}, "assets", logrus.New())

	a, err := svc.Upload(context.Background(), "sk_up", make([]byte, 3*mib-100), "photo.jpg")
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if err := svc.Delete(context.Background(), a.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got, _ := store.GetByID(context.Background(), c.ID)
	if got.UsedStorageBytes != 9*mib {
		t.Fatalf("counter %d, want 9 MiB after a balanced cycle", got.UsedStorageBytes)
	}
}
