package source

import (
	"context"
	"fmt"
	"io"
	"path"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/pkg/errors"
)

// MinIOSource reads the dataset from one object in a MinIO (or other
// S3-compatible) bucket.
type MinIOSource struct {
	client *minio.Client
	bucket string
	key    string
}

// NewMinIOSource creates a MinIOSource. Static credentials are used when
// given, otherwise they are taken from the MINIO_* or AWS_* environment.
func NewMinIOSource(bucket, key string, opts MinIOOptions) (*MinIOSource, error) {
	if opts.Endpoint == "" {
		return nil, errors.New("minio source: endpoint is required")
	}

	var creds *credentials.Credentials
	if opts.AccessKey != "" {
		creds = credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, "")
	} else {
		creds = credentials.NewChainCredentials([]credentials.Provider{
			&credentials.EnvMinio{},
			&credentials.EnvAWS{},
		})
	}

	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  creds,
		Secure: opts.UseSSL,
		Region: opts.Region,
	})
	if err != nil {
		return nil, errors.Wrap(err, "minio client")
	}
	return &MinIOSource{client: client, bucket: bucket, key: key}, nil
}

// Fetch downloads the object.
func (s *MinIOSource) Fetch(ctx context.Context) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, s.key, minio.GetObjectOptions{})
	if err != nil {
		return nil, s.wrap(err)
	}
	defer obj.Close()

	// GetObject is lazy; a missing key only surfaces on the first read.
	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, s.wrap(err)
	}
	return data, nil
}

func (s *MinIOSource) wrap(err error) error {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket", "NotFound":
		return errors.Wrapf(ErrNotFound, "get %s", s)
	}
	return errors.Wrapf(err, "get %s", s)
}

// Name returns the last element of the object key.
func (s *MinIOSource) Name() string {
	return path.Base(s.key)
}

func (s *MinIOSource) String() string {
	return fmt.Sprintf("minio://%s/%s", s.bucket, s.key)
}
