package storage

import "context"

// ObjectStore is the bucket-scoped blob contract the pipeline consumes.
// Paths follow {interview_id}/respondents/{hash}/attempt_{n}/{q}_{c}.webm.
type ObjectStore interface {
	List(ctx context.Context, prefix string) ([]string, error)
	Get(ctx context.Context, path string) ([]byte, error)
	Put(ctx context.Context, path string, data []byte, contentType string) error
	Exists(ctx context.Context, path string) (bool, error)
}

// Buckets resolves the per-organization store (bucket o_<org_id>).
type Buckets interface {
	ForOrg(orgID uint) ObjectStore
}
