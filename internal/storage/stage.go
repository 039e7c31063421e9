package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/justapithecus/colbench/colbench"
	"github.com/justapithecus/colbench/internal/s3"
)

// Location is a dataset path resolved to the store holding it.
//
// Format readers and writers work on local files: Fetch makes an input
// available locally, and Stage plus Publish move a locally written output
// into place.
type Location struct {
	// URI is the path as given by the caller.
	URI string
	// Store holds the file. Local paths resolve to an *FS rooted at the
	// file's directory.
	Store colbench.Store
	// Key is the file's path within Store.
	Key string
}

// Ext returns the lower-cased extension of the location, including the dot.
func (l Location) Ext() string {
	return strings.ToLower(path.Ext(l.Key))
}

// LocalPath returns the filesystem path when the location is local.
func (l Location) LocalPath() (string, bool) {
	fs, ok := l.Store.(*FS)
	if !ok {
		return "", false
	}
	p, err := fs.LocalPath(l.Key)
	if err != nil {
		return "", false
	}
	return p, true
}

// Fetch returns a local path holding the location's contents. Remote
// objects are downloaded to a temporary file that keeps the key's
// extension; cleanup removes it. Local files are used in place.
func (l Location) Fetch(ctx context.Context) (string, func(), error) {
	if p, ok := l.LocalPath(); ok {
		return p, func() {}, nil
	}

	rc, err := l.Store.Get(ctx, l.Key)
	if err != nil {
		return "", nil, fmt.Errorf("fetch %s: %w", l.URI, err)
	}
	defer func() { _ = rc.Close() }()

	tmp, err := os.CreateTemp("", "colbench-in-*"+l.Ext())
	if err != nil {
		return "", nil, err
	}
	cleanup := func() { _ = os.Remove(tmp.Name()) }

	if _, err := io.Copy(tmp, rc); err != nil {
		_ = tmp.Close()
		cleanup()
		return "", nil, fmt.Errorf("fetch %s: %w", l.URI, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return "", nil, err
	}
	return tmp.Name(), cleanup, nil
}

// Stage returns a fresh local path an output can be written to before it
// is published. Local outputs are staged next to their destination so
// Publish is a rename. Cleanup removes the staged file if it still exists.
func (l Location) Stage() (string, func(), error) {
	dir := ""
	if p, ok := l.LocalPath(); ok {
		dir = filepath.Dir(p)
	}

	tmp, err := os.CreateTemp(dir, ".colbench-out-*"+l.Ext())
	if err != nil {
		return "", nil, err
	}
	name := tmp.Name()
	if err := tmp.Close(); err != nil {
		_ = os.Remove(name)
		return "", nil, err
	}
	return name, func() { _ = os.Remove(name) }, nil
}

// Publish moves a staged file to the location, replacing any existing file.
func (l Location) Publish(ctx context.Context, staged string) error {
	if fs, ok := l.Store.(*FS); ok {
		return fs.Publish(ctx, l.Key, staged)
	}

	f, err := os.Open(staged)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	if err := l.Store.Put(ctx, l.Key, f); err != nil {
		return fmt.Errorf("publish %s: %w", l.URI, err)
	}
	return nil
}

// Remove deletes the file at the location and reports whether one was
// there.
func (l Location) Remove(ctx context.Context) (bool, error) {
	ok, err := l.Store.Exists(ctx, l.Key)
	if err != nil || !ok {
		return false, err
	}
	if err := l.Store.Delete(ctx, l.Key); err != nil {
		return false, fmt.Errorf("remove %s: %w", l.URI, err)
	}
	return true, nil
}

// -----------------------------------------------------------------------------
// Resolution
// -----------------------------------------------------------------------------

// S3Scheme is the URI scheme of object-store paths.
const S3Scheme = "s3://"

// ErrNoS3 is returned when an s3:// path is resolved without an S3 opener.
var ErrNoS3 = errors.New("storage: s3 paths are not supported by this resolver")

// Resolver maps paths to locations.
type Resolver struct {
	// OpenS3 opens the store of an S3 bucket. Nil disables s3:// paths.
	OpenS3 func(ctx context.Context, bucket string) (colbench.Store, error)
}

// DefaultResolver resolves local paths and s3:// paths using the
// COLBENCH_S3_* environment.
var DefaultResolver = Resolver{OpenS3: OpenS3FromEnv}

// Resolve resolves uri with DefaultResolver.
func Resolve(ctx context.Context, uri string) (Location, error) {
	return DefaultResolver.Resolve(ctx, uri)
}

// Resolve maps uri to a location. Paths starting with s3:// address an
// object as s3://bucket/key; anything else is a local file path.
func (r Resolver) Resolve(ctx context.Context, uri string) (Location, error) {
	if bucket, key, ok, err := ParseS3URI(uri); ok {
		if err != nil {
			return Location{}, err
		}
		if r.OpenS3 == nil {
			return Location{}, ErrNoS3
		}
		store, err := r.OpenS3(ctx, bucket)
		if err != nil {
			return Location{}, fmt.Errorf("open s3 bucket %s: %w", bucket, err)
		}
		return Location{URI: uri, Store: store, Key: key}, nil
	}

	if uri == "" {
		return Location{}, colbench.ErrInvalidPath
	}
	abs, err := filepath.Abs(uri)
	if err != nil {
		return Location{}, err
	}
	fs, err := NewFS(filepath.Dir(abs))
	if err != nil {
		return Location{}, err
	}
	return Location{URI: uri, Store: fs, Key: filepath.Base(abs)}, nil
}

// ParseS3URI splits an s3://bucket/key path. ok reports whether uri uses
// the s3 scheme; err is set when it does but lacks a bucket or key.
func ParseS3URI(uri string) (bucket, key string, ok bool, err error) {
	rest, found := strings.CutPrefix(uri, S3Scheme)
	if !found {
		return "", "", false, nil
	}
	bucket, key, _ = strings.Cut(rest, "/")
	key = strings.TrimPrefix(key, "/")
	if bucket == "" || key == "" || strings.HasSuffix(key, "/") {
		return "", "", true, fmt.Errorf("%w: %s", colbench.ErrInvalidPath, uri)
	}
	return bucket, key, true, nil
}

// OpenS3FromEnv opens an S3 store for bucket using the client settings
// from the COLBENCH_S3_* environment.
func OpenS3FromEnv(ctx context.Context, bucket string) (colbench.Store, error) {
	cfg, err := s3.LoadClientConfigFromEnv()
	if err != nil {
		return nil, err
	}
	client, err := s3.NewClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return s3.New(client, s3.Config{Bucket: bucket})
}
