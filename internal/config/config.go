package config

import (
	"os"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Store drivers understood by the db package.
const (
	DriverDuckDB = "duckdb"
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
)

// Config captures all runtime options for the judge.
type Config struct {
	Store              StoreConfig   `yaml:"store"`
	Workers            int           `yaml:"workers"`
	StatementTimeoutMs int           `yaml:"statement_timeout_ms"`
	MinFixtures        int           `yaml:"min_fixtures"`
	Logging            Logging       `yaml:"logging"`
	Report             ReportConfig  `yaml:"report"`
	Storage            StorageConfig `yaml:"storage"`
	Metrics            MetricsConfig `yaml:"metrics"`
}

// StoreConfig selects the ephemeral store each fixture runs in.
type StoreConfig struct {
	// Driver is "duckdb" or "sqlite" (both in-process, in-memory) or "mysql"
	// (MySQL/TiDB server).
	Driver string `yaml:"driver"`
	// DSN is only used by the mysql driver. The database part is ignored:
	// every arena gets its own database.
	DSN            string `yaml:"dsn"`
	DatabasePrefix string `yaml:"database_prefix"`
	// ValidateSQL runs candidate queries through the TiDB parser first (mysql only).
	ValidateSQL bool `yaml:"validate_sql"`
}

// Logging controls stdout logging behavior.
type Logging struct {
	Verbose       bool   `yaml:"verbose"`
	LogFile       string `yaml:"log_file"`
	MaxFileSizeMB int    `yaml:"max_file_size_mb"`
	MaxBackups    int    `yaml:"max_backups"`
}

// ReportConfig controls run report output.
type ReportConfig struct {
	Enabled     bool   `yaml:"enabled"`
	OutputDir   string `yaml:"output_dir"`
	UseUUIDPath bool   `yaml:"use_uuid_path"`
	Archive     bool   `yaml:"archive"`
}

// MetricsConfig controls prometheus textfile export.
type MetricsConfig struct {
	TextfilePath string `yaml:"textfile_path"`
}

// StorageConfig holds external storage settings.
type StorageConfig struct {
	S3  S3Config  `yaml:"s3"`
	GCS GCSConfig `yaml:"gcs"`
}

// CloudEnabled reports whether any cloud storage backend is enabled.
func (s StorageConfig) CloudEnabled() bool {
	return s.GCS.Enabled || s.S3.Enabled
}

// S3Config configures S3 uploads (legacy and S3-compatible endpoints).
type S3Config struct {
	Enabled         bool   `yaml:"enabled"`
	Endpoint        string `yaml:"endpoint"`
	Region          string `yaml:"region"`
	Bucket          string `yaml:"bucket"`
	Prefix          string `yaml:"prefix"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	SessionToken    string `yaml:"session_token"`
	UsePathStyle    bool   `yaml:"use_path_style"`
}

// GCSConfig configures GCS uploads.
type GCSConfig struct {
	Enabled         bool   `yaml:"enabled"`
	Bucket          string `yaml:"bucket"`
	Prefix          string `yaml:"prefix"`
	CredentialsFile string `yaml:"credentials_file"`
}

// Load reads configuration from a YAML file. An empty path yields defaults.
func Load(path string) (Config, error) {
	cfg := defaultConfig()
	if path == "" {
		normalizeConfig(&cfg)
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "read config")
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, errors.Wrapf(err, "parse config %s", path)
	}
	normalizeConfig(&cfg)
	return cfg, nil
}

const (
	workersDefault            = 4
	workersMax                = 64
	statementTimeoutMsDefault = 10000
	minFixturesDefault        = 10
	databasePrefixDefault     = "sqljudge"
	logFileSizeMBDefault      = 64
)

func normalizeConfig(cfg *Config) {
	cfg.Store.Driver = strings.ToLower(strings.TrimSpace(cfg.Store.Driver))
	switch cfg.Store.Driver {
	case DriverMySQL, DriverSQLite:
	default:
		cfg.Store.Driver = DriverDuckDB
	}
	if cfg.Store.Driver == DriverMySQL {
		cfg.Store.DSN = AdminDSN(cfg.Store.DSN)
	}
	if strings.TrimSpace(cfg.Store.DatabasePrefix) == "" {
		cfg.Store.DatabasePrefix = databasePrefixDefault
	}
	if cfg.Workers <= 0 {
		cfg.Workers = workersDefault
	}
	if cfg.Workers > workersMax {
		cfg.Workers = workersMax
	}
	if cfg.StatementTimeoutMs < 0 {
		cfg.StatementTimeoutMs = 0
	}
	if cfg.MinFixtures < 0 {
		cfg.MinFixtures = 0
	}
	if cfg.Logging.MaxFileSizeMB <= 0 {
		cfg.Logging.MaxFileSizeMB = logFileSizeMBDefault
	}
	if cfg.Logging.MaxBackups < 0 {
		cfg.Logging.MaxBackups = 0
	}
	if strings.TrimSpace(cfg.Report.OutputDir) == "" {
		cfg.Report.OutputDir = "reports"
	}
}

// UpdateDatabaseInDSN replaces the database name in the DSN path with dbName.
// It preserves query parameters, if any.
func UpdateDatabaseInDSN(dsn string, dbName string) string {
	if dsn == "" || dbName == "" {
		return dsn
	}
	slash := strings.Index(dsn, "/")
	if slash < 0 {
		return dsn
	}
	query := strings.Index(dsn[slash+1:], "?")
	if query >= 0 {
		query = slash + 1 + query
		return dsn[:slash+1] + dbName + dsn[query:]
	}
	return dsn[:slash+1] + dbName
}

// AdminDSN strips the database name from a DSN while preserving query parameters.
func AdminDSN(dsn string) string {
	if dsn == "" {
		return dsn
	}
	slash := strings.Index(dsn, "/")
	if slash < 0 {
		return dsn
	}
	query := strings.Index(dsn[slash+1:], "?")
	if query >= 0 {
		query = slash + 1 + query
		return dsn[:slash+1] + dsn[query:]
	}
	return dsn[:slash+1]
}

func defaultConfig() Config {
	return Config{
		Store: StoreConfig{
			Driver:         DriverDuckDB,
			DSN:            "root:@tcp(127.0.0.1:4000)/",
			DatabasePrefix: databasePrefixDefault,
			ValidateSQL:    true,
		},
		Workers:            workersDefault,
		StatementTimeoutMs: statementTimeoutMsDefault,
		MinFixtures:        minFixturesDefault,
		Logging: Logging{
			LogFile:       "logs/sqljudge.log",
			MaxFileSizeMB: logFileSizeMBDefault,
			MaxBackups:    3,
		},
		Report: ReportConfig{
			OutputDir: "reports",
			Archive:   true,
		},
	}
}
