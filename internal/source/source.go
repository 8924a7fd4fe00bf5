// Package source fetches the raw suggestion dataset from where it is published:
// a local file, an S3 bucket or a MinIO bucket. Sources are read-only.
package source

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// ErrNotFound is returned when the dataset object does not exist.
// It maps to os.ErrNotExist so callers can use either.
var ErrNotFound = os.ErrNotExist

// Source is a location the full dataset can be fetched from.
type Source interface {
	// Fetch reads the complete payload into memory.
	Fetch(ctx context.Context) ([]byte, error)
	// Name is the file or object name, used to detect compression and format.
	Name() string
	// String is the location as configured.
	String() string
}

// Scheme identifies the kind of storage a location points at.
type Scheme string

const (
	SchemeFile  Scheme = "file"
	SchemeS3    Scheme = "s3"
	SchemeMinIO Scheme = "minio"
)

// Location is a parsed source location.
type Location struct {
	Scheme Scheme
	// Path is set for file locations.
	Path string
	// Bucket and Key are set for object store locations.
	Bucket string
	Key    string
}

// S3Options configures the s3:// source.
type S3Options struct {
	Region    string
	Endpoint  string
	PathStyle bool
}

// MinIOOptions configures the minio:// source.
type MinIOOptions struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// Options configures Open.
type Options struct {
	// Lock takes a shared flock on local files while reading them.
	Lock bool
	// LockRetry is the delay between lock attempts.
	LockRetry time.Duration
	S3        S3Options
	MinIO     MinIOOptions
}

// ParseLocation understands plain paths, file://path, s3://bucket/key and minio://bucket/key.
func ParseLocation(raw string) (Location, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Location{}, errors.New("empty source location")
	}

	for _, scheme := range []Scheme{SchemeS3, SchemeMinIO} {
		prefix := string(scheme) + "://"
		if rest, ok := strings.CutPrefix(raw, prefix); ok {
			bucket, key, _ := strings.Cut(rest, "/")
			if bucket == "" || key == "" {
				return Location{}, errors.Errorf("source %q: expected %sbucket/key", raw, prefix)
			}
			return Location{Scheme: scheme, Bucket: bucket, Key: key}, nil
		}
	}

	path := raw
	if rest, ok := strings.CutPrefix(raw, "file://"); ok {
		path = rest
	}
	if path == "" {
		return Location{}, errors.Errorf("source %q: empty path", raw)
	}
	return Location{Scheme: SchemeFile, Path: path}, nil
}

// Open builds the Source for location.
func Open(ctx context.Context, location string, opts Options) (Source, error) {
	loc, err := ParseLocation(location)
	if err != nil {
		return nil, err
	}

	switch loc.Scheme {
	case SchemeS3:
		return NewS3Source(ctx, loc.Bucket, loc.Key, opts.S3)
	case SchemeMinIO:
		return NewMinIOSource(loc.Bucket, loc.Key, opts.MinIO)
	default:
		return NewFileSource(loc.Path, opts.Lock, opts.LockRetry), nil
	}
}
