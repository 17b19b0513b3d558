package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

const maxObjectBytes = 8 << 20

var (
	errInvalidLocation = errors.New("storage: object location is required")
	errObjectTooLarge  = errors.New("storage: object exceeds size limit")
)

// ObjectOpener opens a bucket object for reading.
type ObjectOpener interface {
	Open(ctx context.Context, bucket, object string) (io.ReadCloser, error)
}

// Reader loads small documents from local paths or gs://bucket/object URLs.
type Reader struct {
	opener ObjectOpener
}

// NewReader returns a Reader. opener may be nil when only local paths are used.
func NewReader(opener ObjectOpener) *Reader {
	return &Reader{opener: opener}
}

// ReadAll returns the content at location.
func (r *Reader) ReadAll(ctx context.Context, location string) ([]byte, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		return nil, errInvalidLocation
	}
	bucket, object, remote, err := ParseLocation(location)
	if err != nil {
		return nil, err
	}
	if !remote {
		f, err := os.Open(location)
		if err != nil {
			return nil, fmt.Errorf("storage: open %s: %w", location, err)
		}
		defer f.Close()
		return readLimited(f)
	}
	if r.opener == nil {
		return nil, fmt.Errorf("storage: no bucket client configured for %s", location)
	}
	rc, err := r.opener.Open(ctx, bucket, object)
	if err != nil {
		return nil, fmt.Errorf("storage: open gs://%s/%s: %w", bucket, object, err)
	}
	defer rc.Close()
	return readLimited(rc)
}

// ParseLocation splits gs://bucket/object. Anything else is a local path.
func ParseLocation(location string) (bucket, object string, remote bool, err error) {
	rest, ok := strings.CutPrefix(location, "gs://")
	if !ok {
		return "", "", false, nil
	}
	bucket, object, _ = strings.Cut(rest, "/")
	if bucket == "" || object == "" {
		return "", "", true, fmt.Errorf("storage: invalid object url %q", location)
	}
	return bucket, object, true, nil
}

func readLimited(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxObjectBytes+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxObjectBytes {
		return nil, errObjectTooLarge
	}
	return data, nil
}

// GCSOpener opens objects through a Cloud Storage client.
type GCSOpener struct {
	client *storage.Client
}

// NewGCSOpener creates a Cloud Storage client.
func NewGCSOpener(ctx context.Context, opts ...option.ClientOption) (*GCSOpener, error) {
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("storage: create client: %w", err)
	}
	return &GCSOpener{client: client}, nil
}

func (g *GCSOpener) Open(ctx context.Context, bucket, object string) (io.ReadCloser, error) {
	rc, err := g.client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, err
	}
	return rc, nil
}

// Close releases the client.
func (g *GCSOpener) Close() error {
	return g.client.Close()
}
