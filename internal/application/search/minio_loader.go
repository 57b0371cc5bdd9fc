package search

import (
	"context"

	"github.com/minio/minio-go/v7"

	minioinfra "github.com/turtacn/KeyIP-Intelligence/internal/infrastructure/storage/minio"
	"github.com/turtacn/KeyIP-Intelligence/pkg/errors"
)

// MinIOLoader reads a population from an object in object storage, for
// deployments where fingerprint populations are staged centrally rather than
// shipped to each host's local disk.
type MinIOLoader struct {
	Client             *minioinfra.MinIOClient
	Bucket             string
	Object             string
	MaxBitStringLength int
}

// Load fetches Bucket/Object and parses it with the same tokenization rules
// as FileLoader/ReaderLoader.
func (l MinIOLoader) Load(ctx context.Context, expectedSize int) ([]Record, error) {
	if l.Client == nil {
		return nil, errors.New(errors.CodeEngineInputUnreadable, "minio loader has no client configured")
	}
	obj, err := l.Client.GetClient().GetObject(ctx, l.Bucket, l.Object, minio.GetObjectOptions{})
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeEngineInputUnreadable,
			"fetching fingerprint population object failed")
	}
	defer obj.Close()

	maxLen := l.MaxBitStringLength
	if maxLen <= 0 {
		maxLen = maxBitStringLen
	}
	return parseRecords(obj, expectedSize, maxLen)
}
