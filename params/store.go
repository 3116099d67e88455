package params

import (
	"path/filepath"
	"time"
)

type StoreConfig struct {
	// Path is the bbolt file holding the working models and snapshots.
	Path string

	// SnapshotCacheTTL bounds how long loaded snapshots are served from memory.
	// Zero disables the cache.
	SnapshotCacheTTL time.Duration

	// S3Bucket, if set, receives a copy of every exported snapshot.
	S3Bucket string
	S3Prefix string
}

func DefaultStoreConfig() *StoreConfig {
	return &StoreConfig{
		Path:             filepath.Join(DatadirRoot, ModelsDBName),
		SnapshotCacheTTL: CacheSnapshotTTL,
		S3Bucket:         AWS_BUCKETNAME,
		S3Prefix:         "catmode/snapshots/",
	}
}

func DefaultTestStoreConfig(dir string) *StoreConfig {
	return &StoreConfig{
		Path:             filepath.Join(dir, ModelsDBName),
		SnapshotCacheTTL: time.Minute,
	}
}
