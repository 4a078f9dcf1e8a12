package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/erazemk/omara/internal/db"
	"github.com/erazemk/omara/internal/objstore"
	"github.com/erazemk/omara/internal/store"
	"github.com/erazemk/omara/internal/wardrobe"
)

// errUsage is returned after a flag error has already been reported.
var errUsage = errors.New("usage")

// Storage backends.
const (
	backendBlob  = "blob"
	backendMinio = "minio"
)

// config holds the settings shared by every command. Flags override the
// environment, which overrides the defaults.
type config struct {
	DBPath  string
	LogPath string

	Storage       string
	BaseURL       string
	Bucket        string
	PublicBucket  bool
	MaxObjectSize int64
	SignedURLTTL  time.Duration
	QualifyBare   bool

	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// loadEnv reads a .env file into the process environment, if present.
func loadEnv() {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, reading from environment")
	}
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	v, err := strconv.ParseBool(getEnv(key, strconv.FormatBool(fallback)))
	if err != nil {
		return fallback
	}
	return v
}

func getEnvInt64(key string, fallback int64) int64 {
	v, err := strconv.ParseInt(getEnv(key, ""), 10, 64)
	if err != nil {
		return fallback
	}
	return v
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return v
}

// register binds the shared flags to fs with defaults from the environment.
func (c *config) register(fs *flag.FlagSet) {
	dbPath := getEnv("OMARA_DB", "omara.sqlite3")
	fs.StringVar(&c.DBPath, "db", dbPath, "")
	fs.StringVar(&c.DBPath, "d", dbPath, "")

	logPath := getEnv("OMARA_LOG", "")
	fs.StringVar(&c.LogPath, "log", logPath, "")
	fs.StringVar(&c.LogPath, "l", logPath, "")

	fs.StringVar(&c.Storage, "storage", getEnv("STORAGE_BACKEND", backendBlob), "")
	fs.StringVar(&c.BaseURL, "base-url", getEnv("OMARA_BASE_URL", "http://localhost:8080"), "")
	fs.StringVar(&c.Bucket, "bucket", getEnv("STORAGE_BUCKET", objstore.DefaultBucket), "")
	fs.BoolVar(&c.PublicBucket, "public-bucket", getEnvBool("STORAGE_PUBLIC", false), "")
	fs.Int64Var(&c.MaxObjectSize, "max-object-size", getEnvInt64("STORAGE_MAX_OBJECT_SIZE", objstore.DefaultMaxObjectSize), "")
	fs.DurationVar(&c.SignedURLTTL, "signed-url-ttl", getEnvDuration("SIGNED_URL_TTL", wardrobe.DefaultSignedURLTTL), "")
	fs.BoolVar(&c.QualifyBare, "qualify-bare-names", getEnvBool("QUALIFY_BARE_NAMES", false), "")

	c.Endpoint = getEnv("STORAGE_ENDPOINT", "localhost:9000")
	c.Region = getEnv("STORAGE_REGION", "")
	c.AccessKey = getEnv("STORAGE_ACCESS_KEY", "")
	c.SecretKey = getEnv("STORAGE_SECRET_KEY", "")
	c.UseSSL = getEnvBool("STORAGE_USE_SSL", false)
}

const sharedFlags = `  -d, -db <path>             SQLite database path (default: omara.sqlite3, env OMARA_DB)
  -l, -log <path>            log file path (default: stdout/stderr only, env OMARA_LOG)
  -storage <blob|minio>      object storage backend (default: blob, env STORAGE_BACKEND)
  -base-url <url>            external URL for blob object links (env OMARA_BASE_URL)
  -bucket <name>             bucket name (default: clothing-images, env STORAGE_BUCKET)
  -public-bucket             bucket is publicly readable (env STORAGE_PUBLIC)
  -max-object-size <bytes>   largest accepted image (default: 10 MiB, env STORAGE_MAX_OBJECT_SIZE)
  -signed-url-ttl <dur>      lifetime of signed image URLs (default: 720h, env SIGNED_URL_TTL)
  -qualify-bare-names        prefix "<user>/" to stored paths without a folder (env QUALIFY_BARE_NAMES)
  -h, -help                  show this help and exit

MinIO settings are read from STORAGE_ENDPOINT, STORAGE_REGION,
STORAGE_ACCESS_KEY, STORAGE_SECRET_KEY and STORAGE_USE_SSL.
`

// parse parses args into fs and rejects positional arguments.
func parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			os.Exit(0)
		}
		return errUsage
	}
	if fs.NArg() > 0 {
		fmt.Fprintf(os.Stderr, "unexpected argument: %s\n", fs.Arg(0))
		fs.Usage()
		return errUsage
	}
	return nil
}

// openDatabase opens the database and ensures its schema.
func openDatabase(path string) (*sql.DB, error) {
	database, err := db.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.EnsureSchema(database); err != nil {
		database.Close()
		return nil, fmt.Errorf("ensuring schema: %w", err)
	}
	slog.Info("database ready", "path", path)
	return database, nil
}

// openStorage builds the configured object storage. The BlobStorage is
// returned separately when it is the backend, since its download routes
// must be served by this process.
func openStorage(ctx context.Context, c *config, database *sql.DB) (objstore.Storage, *objstore.BlobStorage, error) {
	switch c.Storage {
	case backendBlob:
		secret, err := store.GetSigningSecret(ctx, database)
		if err != nil {
			return nil, nil, fmt.Errorf("getting signing secret: %w", err)
		}
		blob := objstore.NewBlobStorage(database, objstore.BlobConfig{
			Bucket:        c.Bucket,
			BaseURL:       c.BaseURL,
			Secret:        secret,
			Public:        c.PublicBucket,
			MaxObjectSize: c.MaxObjectSize,
		})
		slog.Info("object storage ready", "backend", backendBlob, "bucket", blob.Bucket())
		return blob, blob, nil

	case backendMinio:
		minioStorage, err := objstore.NewMinioStorage(ctx, objstore.MinioConfig{
			Endpoint:      c.Endpoint,
			Region:        c.Region,
			AccessKey:     c.AccessKey,
			SecretKey:     c.SecretKey,
			Bucket:        c.Bucket,
			UseSSL:        c.UseSSL,
			Public:        c.PublicBucket,
			MaxObjectSize: c.MaxObjectSize,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to minio: %w", err)
		}
		slog.Info("object storage ready", "backend", backendMinio, "endpoint", c.Endpoint, "bucket", minioStorage.Bucket())
		return minioStorage, nil, nil

	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", c.Storage)
	}
}

// newWardrobe wires the wardrobe service and its resolver to storage.
func newWardrobe(c *config, database *sql.DB, storage objstore.Storage) *wardrobe.Service {
	svc := wardrobe.NewService(database, storage, slog.Default())
	svc.Resolver.TTL = c.SignedURLTTL
	svc.Resolver.QualifyBareNames = c.QualifyBare
	return svc
}
