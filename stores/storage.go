package stores

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"tshirt-studio/core"
	"tshirt-studio/stores/aws"
	"tshirt-studio/stores/filesystem"
	"tshirt-studio/stores/memory"
	"tshirt-studio/stores/sqlite"

	"github.com/sirupsen/logrus"
)

// Store is the design persistence backend. Backends that keep history
// also implement core.RevisionStore.
type Store interface {
	core.DesignStorage
}

type Backend string

const (
	BackendMemory     Backend = "memory"
	BackendFilesystem Backend = "filesystem"
	BackendSQLite     Backend = "sqlite"
	BackendS3         Backend = "s3"
)

// Config selects and parameterizes the design backend.
type Config struct {
	Backend Backend
	// DesignDir holds one JSON file per design for BackendFilesystem.
	DesignDir    string
	DSN          string
	MaxRevisions int
	Bucket       string
}

// ConfigFromEnv reads STORAGE_TYPE, LOCAL_STORAGE_PATH, DATA_SOURCE_NAME,
// MAX_REVISIONS and S3_BUCKET_NAME. Unset values take their defaults.
func ConfigFromEnv() Config {
	cfg := Config{
		Backend:      Backend(os.Getenv("STORAGE_TYPE")),
		DesignDir:    os.Getenv("LOCAL_STORAGE_PATH"),
		DSN:          os.Getenv("DATA_SOURCE_NAME"),
		MaxRevisions: sqlite.DefaultMaxRevisions,
		Bucket:       os.Getenv("S3_BUCKET_NAME"),
	}
	switch cfg.Backend {
	case BackendMemory, BackendFilesystem, BackendSQLite, BackendS3:
	case "":
		cfg.Backend = BackendMemory
	default:
		logrus.WithField("STORAGE_TYPE", cfg.Backend).Warn("Unknown design backend, keeping designs in memory")
		cfg.Backend = BackendMemory
	}
	if cfg.DesignDir == "" {
		cfg.DesignDir = "./data/designs"
	}
	if cfg.DSN == "" {
		cfg.DSN = "designs.db"
	}
	if v := os.Getenv("MAX_REVISIONS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			logrus.WithField("MAX_REVISIONS", v).Warn("Invalid revision limit, using default")
		} else {
			cfg.MaxRevisions = n
		}
	}
	return cfg
}

// Open builds the backend cfg names.
func Open(cfg Config) (Store, error) {
	log := logrus.WithField("backend", cfg.Backend)
	var store Store
	switch cfg.Backend {
	case BackendFilesystem:
		log = log.WithField("design_dir", cfg.DesignDir)
		store = filesystem.NewStore(cfg.DesignDir)
	case BackendSQLite:
		log = log.WithFields(logrus.Fields{"dsn": cfg.DSN, "max_revisions": cfg.MaxRevisions})
		store = sqlite.NewStore(cfg.DSN, cfg.MaxRevisions)
	case BackendS3:
		if cfg.Bucket == "" {
			return nil, errors.New("s3 design backend needs S3_BUCKET_NAME")
		}
		log = log.WithField("bucket", cfg.Bucket)
		store = aws.NewStore(cfg.Bucket)
	case BackendMemory, "":
		store = memory.NewStore()
	default:
		return nil, fmt.Errorf("unknown design backend %q", cfg.Backend)
	}
	_, revisions := store.(core.RevisionStore)
	log.WithField("revisions", revisions).Info("Design storage ready")
	return store, nil
}

// GetStore opens the backend configured in the environment and exits the
// process if it cannot.
func GetStore() Store {
	store, err := Open(ConfigFromEnv())
	if err != nil {
		logrus.WithError(err).Fatal("Design storage unavailable")
	}
	return store
}
