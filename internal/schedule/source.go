package schedule

import (
	"context"
	"io"
)

// Source is where published tariff schedule exports are kept
type Source interface {
	// Open streams the object stored under key
	Open(ctx context.Context, key string) (io.ReadCloser, error)

	// Save stores body under key, replacing any previous object
	Save(ctx context.Context, key string, body io.Reader) error
}
