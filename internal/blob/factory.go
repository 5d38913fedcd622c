package blob

import (
	"context"
	"fmt"
	"os"
	"strings"

	"drugsecure/internal/infra/blob/fs"
	memorystore "drugsecure/internal/infra/blob/memory"
	infraS3 "drugsecure/internal/infra/blob/s3"
)

// S3Config re-exports the S3 backend settings.
type S3Config = infraS3.Config

// Config selects and parameterises a backend.
type Config struct {
	Driver Driver   `yaml:"driver"`
	FSRoot string   `yaml:"fs_root"`
	S3     S3Config `yaml:"s3"`
}

// ConfigFromEnv reads the blob environment variables.
//
//	DRUGSECURE_BLOB_DRIVER: fs|s3|memory (default fs)
//	DRUGSECURE_BLOB_FS_ROOT: directory root when driver=fs (default ./reports)
//	DRUGSECURE_BLOB_S3_BUCKET, _REGION, _ENDPOINT, _PREFIX, _PATH_STYLE
//	DRUGSECURE_BLOB_S3_ACCESS_KEY_ID, _SECRET_ACCESS_KEY (optional static credentials)
func ConfigFromEnv() Config {
	return Config{
		Driver: Driver(os.Getenv("DRUGSECURE_BLOB_DRIVER")),
		FSRoot: os.Getenv("DRUGSECURE_BLOB_FS_ROOT"),
		S3: S3Config{
			Bucket:          os.Getenv("DRUGSECURE_BLOB_S3_BUCKET"),
			Region:          os.Getenv("DRUGSECURE_BLOB_S3_REGION"),
			Endpoint:        os.Getenv("DRUGSECURE_BLOB_S3_ENDPOINT"),
			Prefix:          os.Getenv("DRUGSECURE_BLOB_S3_PREFIX"),
			PathStyle:       strings.EqualFold(os.Getenv("DRUGSECURE_BLOB_S3_PATH_STYLE"), "true"),
			AccessKeyID:     os.Getenv("DRUGSECURE_BLOB_S3_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("DRUGSECURE_BLOB_S3_SECRET_ACCESS_KEY"),
		},
	}
}

// Open constructs the backend described by cfg.
func Open(ctx context.Context, cfg Config) (Store, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = DriverFilesystem
	}
	switch driver {
	case DriverFilesystem:
		return fs.New(cfg.FSRoot)
	case DriverS3:
		return infraS3.New(ctx, cfg.S3)
	case DriverMemory:
		return memorystore.New(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %s", driver)
	}
}

// OpenFromEnv opens the backend selected by the environment.
func OpenFromEnv(ctx context.Context) (Store, error) {
	return Open(ctx, ConfigFromEnv())
}

// NewMemory returns an in-memory store.
func NewMemory() Store { return memorystore.New() }

// NewMockS3ForTests returns an S3 store backed by an in-process fake endpoint.
func NewMockS3ForTests() Store { return infraS3.NewMock() }
