package params

import (
	"compress/gzip"
	"os"
	"path/filepath"
	"time"

	"github.com/ethereum/go-ethereum/metrics"
	"github.com/mitchellh/go-homedir"
)

func init() {
	metrics.Enabled = true
}

var DatadirRoot = func() string {
	home, err := homedir.Dir()
	if err != nil {
		panic(err)
	}
	return filepath.Join(home, ".catmode")
}()

// ExpandDatadir resolves a leading ~ in a user-supplied data directory.
func ExpandDatadir(dir string) (string, error) {
	if dir == "" {
		return DatadirRoot, nil
	}
	return homedir.Expand(dir)
}

const (
	ModelsDBName = "models.db"
)

var (
	WorkingBucket   = []byte("working")
	WorkingKey      = []byte("models")
	SnapshotsBucket = []byte("snapshots")
	MetaBucket      = []byte("meta")
	MetaIndexKey    = []byte("index")
)

var DefaultGZipCompressionLevel = gzip.BestCompression

// AWS_BUCKETNAME is where exported snapshots are uploaded.
// Uploads are skipped when it is empty.
// The AWS SDK reads its credentials and region from the environment.
var AWS_BUCKETNAME = os.Getenv("AWS_BUCKETNAME")

var (
	INFLUXDB_URL    = os.Getenv("INFLUXDB_URL")
	INFLUXDB_TOKEN  = os.Getenv("INFLUXDB_TOKEN")
	INFLUXDB_ORG    = os.Getenv("INFLUXDB_ORG")
	INFLUXDB_BUCKET = os.Getenv("INFLUXDB_BUCKET")
)

var (
	CacheSnapshotTTL      = 10 * time.Minute
	CacheSnapshotCapacity = uint64(64)
	CacheFeaturesSize     = 4096
	CacheDedupeSize       = 100_000
)
