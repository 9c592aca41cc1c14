package ports

import "context"

// ObjectStorage is the external uploader. Put returns the public URL of the
// stored object; Delete removes it by the same key. Callers supply timeouts
// through ctx.
type ObjectStorage interface {
	Put(ctx context.Context, key string, data []byte) (url string, err error)
	Delete(ctx context.Context, key string) error
}
