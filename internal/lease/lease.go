package lease

import (
	"context"
	"fmt"
	"time"
)

// Manager is the run-lease contract. A lease is an explicit lock record with
// an owner and an expiry: the holder is the only run allowed to touch a
// respondent, and a lease left behind by a crashed process expires on its
// own instead of blocking future runs.
type Manager interface {
	Acquire(ctx context.Context, key, owner string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key, owner string) error
	Held(ctx context.Context, key string) (bool, error)
}

func RespondentKey(respondentID uint) string {
	return fmt.Sprintf("lease:respondent:%d", respondentID)
}
