package ports

import "context"

// RemoteObject is a named blob in the external object store. Only the name
// is authoritative; everything else (owner, slot, upload time) is encoded in
// the naming convention and parsed by the grid service.
type RemoteObject struct {
	Name string
}

// UploadOptions carries per-object upload settings.
type UploadOptions struct {
	ContentType  string
	CacheControl string
	Upsert       bool
}

// ObjectStore is the remote key/blob store the grid is reconciled against.
// All calls are fallible and return explicit errors; none of them retry.
type ObjectStore interface {
	ListBuckets(ctx context.Context) ([]string, error)
	CreateBucket(ctx context.Context, name string, public bool) error
	List(ctx context.Context, bucket string) ([]RemoteObject, error)
	Upload(ctx context.Context, bucket, name string, data []byte, opts UploadOptions) error
	Remove(ctx context.Context, bucket string, names []string) error
	PublicURL(bucket, name string) (string, error)
}
