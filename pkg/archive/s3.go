package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Store archives frames to an S3 bucket. Keys follow
// <prefix><sequence>.rgba; the sidecar fields ride along as object
// metadata instead of a second object.
//
// Example usage:
//
//	cfg, _ := config.LoadDefaultConfig(context.Background())
//	store := archive.NewS3Store(s3.NewFromConfig(cfg), "frame-dumps", "capture/")
type S3Store struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3Store creates a store over an existing S3 client.
func NewS3Store(client *s3.Client, bucket, prefix string) *S3Store {
	return &S3Store{client: client, bucket: bucket, prefix: prefix}
}

// Put uploads the frame blob with its metadata attached.
func (s *S3Store) Put(ctx context.Context, rec Record, pixels []byte) error {
	key := s.prefix + blobName(rec.Sequence) + ".rgba"

	meta, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("archive: encode metadata: %w", err)
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(pixels),
		ContentType: aws.String("application/octet-stream"),
		Metadata: map[string]string{
			"frame-record": string(meta),
			"width":        strconv.FormatUint(uint64(rec.Width), 10),
			"height":       strconv.FormatUint(uint64(rec.Height), 10),
		},
	})
	if err != nil {
		return fmt.Errorf("archive: s3 put %s: %w", key, err)
	}
	return nil
}

// Close is a no-op; the S3 client is owned by the caller.
func (s *S3Store) Close() error {
	return nil
}
