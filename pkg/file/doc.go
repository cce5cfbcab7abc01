// Package file stores opaque blobs, such as encrypted documents, on the local
// filesystem or in Amazon S3 and S3-compatible services.
//
// Both backends implement Storage:
//
//	type Storage interface {
//		Put(ctx context.Context, key string, data []byte) error
//		Get(ctx context.Context, key string) ([]byte, error)
//		Delete(ctx context.Context, key string) error
//		DeleteMany(ctx context.Context, keys []string) error
//		Exists(ctx context.Context, key string) (bool, error)
//	}
//
// Keys are relative, slash separated names. Keys that would escape the
// storage root (absolute paths, "..") are rejected with ErrInvalidPath.
// The package does not inspect or transform the bytes it stores; callers
// encrypt before Put and decrypt after Get.
//
// # Local storage
//
//	store, err := file.NewLocalStorage("./var/blobs")
//
// Files are written with 0600 permissions through a temporary file and an
// atomic rename, so readers never observe a partial blob.
//
// # S3 storage
//
//	store, err := file.NewS3Storage(ctx, file.S3Config{
//		Bucket: "credkit-documents",
//		Region: "eu-central-1",
//	})
//
// Set Endpoint and ForcePathStyle for MinIO and similar services. Pass
// WithS3Client to substitute a mock in tests.
//
// # Errors
//
// Missing blobs return ErrFileNotFound from both backends. S3 API failures are
// classified into ErrAccessDenied, ErrBucketNotFound, ErrRequestTimeout,
// ErrServiceUnavailable and friends; context failures into
// ErrOperationTimeout and ErrOperationCanceled.
package file
