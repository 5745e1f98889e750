package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/kozaktomas/faceid/internal/constants"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Input     InputConfig     `yaml:"input"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Match     MatchConfig     `yaml:"match"`
	Web       WebConfig       `yaml:"web"`
}

type DatabaseConfig struct {
	Driver   string `yaml:"driver"` // postgres or mysql
	URL      string `yaml:"url"`    // full DSN, takes precedence over the discrete fields
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`

	Table      string        `yaml:"table"`       // users table, defaults to "Users"
	IDColumn   string        `yaml:"id_column"`   // integer primary key, defaults to "Id"
	FaceColumn string        `yaml:"face_column"` // binary face data, defaults to "Face"
	Timeout    time.Duration `yaml:"timeout"`     // per-invocation deadline for CLI commands

	MaxOpenConns int `yaml:"max_open_conns"` // only used by serve
	MaxIdleConns int `yaml:"max_idle_conns"`
}

// DSN returns the connection string for the configured driver.
// URL wins when set; otherwise one is built from the discrete fields.
func (d *DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	if d.Driver == DriverMySQL {
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s", d.User, d.Password, d.Host, d.Port, d.Name)
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:     "/" + d.Name,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

type InputConfig struct {
	Dir string `yaml:"dir"` // directory holding <user-id>.txt files
}

type EmbeddingConfig struct {
	Backend      string        `yaml:"backend"`        // http or dlib
	URL          string        `yaml:"url"`            // embedding server, defaults to http://localhost:8000
	ModelsDir    string        `yaml:"models_dir"`     // dlib model files
	MaxImageSide int           `yaml:"max_image_side"` // downscale larger images before extraction
	Timeout      time.Duration `yaml:"timeout"`
}

type MatchConfig struct {
	Metric    string  `yaml:"metric"`    // euclidean or cosine
	Tolerance float64 `yaml:"tolerance"` // max distance considered a match
	Neighbors int     `yaml:"neighbors"` // candidates fetched from the index when identifying
}

type WebConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

const (
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"

	BackendHTTP = "http"
	BackendDlib = "dlib"

	MetricEuclidean = "euclidean"
	MetricCosine    = "cosine"
)

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable as a positive float.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		return f
	}
	return defaultVal
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

// Load builds the configuration from environment variables.
func Load() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver:       envString("DATABASE_DRIVER", DriverPostgres),
			URL:          os.Getenv("DATABASE_URL"),
			Host:         envString("DB_HOST", "localhost"),
			Port:         envInt("DB_PORT", 5432),
			User:         envString("DB_USER", "postgres"),
			Password:     os.Getenv("DB_PASSWORD"),
			Name:         envString("DB_NAME", "postgres"),
			Table:        envString("FACEID_TABLE", "Users"),
			IDColumn:     envString("FACEID_ID_COLUMN", "Id"),
			FaceColumn:   envString("FACEID_FACE_COLUMN", "Face"),
			Timeout:      envDuration("DATABASE_TIMEOUT", 30*time.Second),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 10),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 2),
		},
		Input: InputConfig{
			Dir: envString("FACEID_INPUT_DIR", "data"),
		},
		Embedding: EmbeddingConfig{
			Backend:      envString("EMBEDDING_BACKEND", BackendHTTP),
			URL:          os.Getenv("EMBEDDING_URL"),
			ModelsDir:    envString("EMBEDDING_MODELS_DIR", "models"),
			MaxImageSide: envInt("EMBEDDING_MAX_IMAGE_SIDE", constants.MaxImageSize),
			Timeout:      envDuration("EMBEDDING_TIMEOUT", 2*time.Minute),
		},
		Match: MatchConfig{
			Metric:    envString("MATCH_METRIC", MetricEuclidean),
			Tolerance: envFloat("MATCH_TOLERANCE", constants.DefaultTolerance),
			Neighbors: envInt("MATCH_NEIGHBORS", constants.DefaultNeighbors),
		},
		Web: WebConfig{
			Host: envString("WEB_HOST", "0.0.0.0"),
			Port: envInt("WEB_PORT", 8080),
		},
	}
}

// LoadFile loads the environment configuration and overlays the YAML file at path.
// Fields missing from the file keep their environment or default values.
func LoadFile(path string) (*Config, error) {
	cfg := Load()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks enumerated settings.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverPostgres, DriverMySQL:
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	switch c.Embedding.Backend {
	case BackendHTTP, BackendDlib:
	default:
		return fmt.Errorf("unsupported embedding backend %q", c.Embedding.Backend)
	}
	switch c.Match.Metric {
	case MetricEuclidean, MetricCosine:
	default:
		return fmt.Errorf("unsupported match metric %q", c.Match.Metric)
	}
	if c.Match.Tolerance <= 0 {
		return fmt.Errorf("match tolerance must be positive, got %v", c.Match.Tolerance)
	}
	if c.Database.Table == "" || c.Database.IDColumn == "" || c.Database.FaceColumn == "" {
		return fmt.Errorf("database table and column names must not be empty")
	}
	return nil
}
