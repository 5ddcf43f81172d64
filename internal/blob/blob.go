// Package blob exposes the blob storage abstraction used to archive
// generated plan documents, plus the environment-driven backend factory.
// Packages outside this one depend on the Store interface; only the factory
// and cmd binaries touch the infra implementations.
package blob

import (
	"context"
	"fmt"
	"os"

	blobcore "haccpcore/internal/blob/core"
	fsblob "haccpcore/internal/infra/blob/fs"
	memblob "haccpcore/internal/infra/blob/memory"
	s3blob "haccpcore/internal/infra/blob/s3"
)

type (
	// Driver aliases the backend identifier.
	Driver = blobcore.Driver
	// PutOptions aliases the Put parameter struct.
	PutOptions = blobcore.PutOptions
	// SignedURLOptions aliases the presign parameter struct.
	SignedURLOptions = blobcore.SignedURLOptions
	// Info aliases the stored blob descriptor.
	Info = blobcore.Info
	// Store aliases the storage interface.
	Store = blobcore.Store
)

const (
	DriverFilesystem = blobcore.DriverFilesystem
	DriverS3         = blobcore.DriverS3
	DriverMemory     = blobcore.DriverMemory
)

// ErrUnsupported mirrors core.ErrUnsupported for callers of this package.
var ErrUnsupported = blobcore.ErrUnsupported

// ErrNotFound mirrors core.ErrNotFound for callers of this package.
var ErrNotFound = blobcore.ErrNotFound

// Open selects a blob backend using environment variables. Defaults to the
// filesystem store.
//
//	HACCPCORE_BLOB_DRIVER: fs|s3|memory (default fs)
//	HACCPCORE_BLOB_FS_ROOT: directory root when driver=fs (default ./blobdata)
//	(S3 specific variables documented in the s3 package)
func Open(ctx context.Context) (Store, error) {
	driver := os.Getenv("HACCPCORE_BLOB_DRIVER")
	if driver == "" {
		driver = string(DriverFilesystem)
	}
	return OpenDriver(ctx, Driver(driver), os.Getenv("HACCPCORE_BLOB_FS_ROOT"))
}

// OpenDriver opens the named backend with explicit parameters. S3 still reads
// its bucket and endpoint settings from the environment.
func OpenDriver(ctx context.Context, driver Driver, fsRoot string) (Store, error) {
	switch driver {
	case DriverFilesystem:
		return fsblob.New(fsRoot)
	case DriverS3:
		return s3blob.OpenFromEnv(ctx)
	case DriverMemory:
		return memblob.New(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %s", driver)
	}
}
