package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Gallery backend names.
const (
	BackendRemote   = "remote"
	BackendFile     = "file"
	BackendMinIO    = "minio"
	BackendPostgres = "postgres"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Gallery  GalleryConfig  `yaml:"gallery"`
	Remote   RemoteConfig   `yaml:"remote"`
	File     FileConfig     `yaml:"file"`
	MinIO    MinIOConfig    `yaml:"minio"`
	Database DatabaseConfig `yaml:"database"`
	NATS     NATSConfig     `yaml:"nats"`
	Matching MatchingConfig `yaml:"matching"`
	History  HistoryConfig  `yaml:"history"`
	Vision   VisionConfig   `yaml:"vision"`
	Capture  CaptureConfig  `yaml:"capture"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type ServerConfig struct {
	Port          int    `yaml:"port"`
	APIKey        string `yaml:"api_key"`
	AdminUsername string `yaml:"admin_username"`
	AdminPassword string `yaml:"admin_password"`
	SessionSecret string `yaml:"session_secret"`
	SecureCookies bool   `yaml:"secure_cookies"`
}

// GalleryConfig selects the persistence backend and the load retry policy.
type GalleryConfig struct {
	Backend       string        `yaml:"backend"`
	MaxRetries    int           `yaml:"max_retries"`
	RetryInterval time.Duration `yaml:"retry_interval"`
}

type RemoteConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

type FileConfig struct {
	Path string `yaml:"path"`
}

type MinIOConfig struct {
	Endpoint   string `yaml:"endpoint"`
	AccessKey  string `yaml:"access_key"`
	SecretKey  string `yaml:"secret_key"`
	Bucket     string `yaml:"bucket"`
	GalleryKey string `yaml:"gallery_key"`
	UseSSL     bool   `yaml:"use_ssl"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	MaxConns int    `yaml:"max_conns"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

// NATSConfig configures the event bus. An empty URL disables it.
type NATSConfig struct {
	URL string `yaml:"url"`
}

// MatchingConfig holds the distance thresholds. The administrative flow and
// the live scan flow use separate values.
type MatchingConfig struct {
	AdminThreshold float64 `yaml:"admin_threshold"`
	ScanThreshold  float64 `yaml:"scan_threshold"`
	DescriptorDim  int     `yaml:"descriptor_dim"`
}

type HistoryConfig struct {
	Dir      string `yaml:"dir"`
	InMemory bool   `yaml:"in_memory"`
}

// ScannerDir is where the scanner daemon keeps its own history database.
func (h HistoryConfig) ScannerDir() string {
	return filepath.Join(h.Dir, "scanner")
}

type VisionConfig struct {
	ModelsDir          string  `yaml:"models_dir"`
	DetectorModel      string  `yaml:"detector_model"`
	EmbedderModel      string  `yaml:"embedder_model"`
	DetectionThreshold float64 `yaml:"detection_threshold"`
	OnnxLibrary        string  `yaml:"onnx_library"`
}

// CaptureConfig drives frame capture. Source is the default camera for
// on-demand captures; the scanner daemon loops over Sources (or Source).
type CaptureConfig struct {
	Source      string        `yaml:"source"`
	Sources     []string      `yaml:"sources"`
	Width       int           `yaml:"width"`
	Interval    time.Duration `yaml:"interval"`
	MetricsPort int           `yaml:"metrics_port"`
}

// ScanSources returns the sources the scanner daemon watches.
func (c CaptureConfig) ScanSources() []string {
	if len(c.Sources) > 0 {
		return c.Sources
	}
	return []string{c.Source}
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads config from YAML file and applies environment variable overrides.
// A missing file is not an error: env vars and defaults still apply.
// Retry count and thresholds are seeded before parsing, so an explicit 0 is kept.
func Load(path string) (*Config, error) {
	cfg := &Config{
		Gallery: GalleryConfig{MaxRetries: 3},
		Matching: MatchingConfig{
			AdminThreshold: 0.6,
			ScanThreshold:  0.45,
		},
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("read config file: %w", err)
	}

	applyEnvOverrides(cfg)
	setDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks settings that have no sensible default.
func (c *Config) Validate() error {
	switch c.Gallery.Backend {
	case BackendRemote:
		if c.Remote.BaseURL == "" {
			return fmt.Errorf("remote.base_url is required for the remote gallery backend")
		}
	case BackendFile:
	case BackendMinIO:
		if c.MinIO.Endpoint == "" || c.MinIO.Bucket == "" {
			return fmt.Errorf("minio.endpoint and minio.bucket are required for the minio gallery backend")
		}
	case BackendPostgres:
		if c.Database.Host == "" {
			return fmt.Errorf("database.host is required for the postgres gallery backend")
		}
	default:
		return fmt.Errorf("unknown gallery backend %q", c.Gallery.Backend)
	}
	if c.Matching.AdminThreshold < 0 || c.Matching.ScanThreshold < 0 {
		return fmt.Errorf("matching thresholds must be non-negative")
	}
	if c.Gallery.MaxRetries < 0 {
		return fmt.Errorf("gallery.max_retries must be non-negative")
	}
	return nil
}

func setDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.AdminUsername == "" {
		cfg.Server.AdminUsername = "admin"
	}
	if cfg.Server.AdminPassword == "" {
		cfg.Server.AdminPassword = "password"
	}
	if cfg.Gallery.Backend == "" {
		cfg.Gallery.Backend = BackendFile
	}
	if cfg.Gallery.RetryInterval == 0 {
		cfg.Gallery.RetryInterval = 2 * time.Second
	}
	if cfg.Remote.Timeout == 0 {
		cfg.Remote.Timeout = 30 * time.Second
	}
	if cfg.File.Path == "" {
		cfg.File.Path = "data/face_recognition_data.json"
	}
	if cfg.MinIO.GalleryKey == "" {
		cfg.MinIO.GalleryKey = "face_recognition_data.json"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = 10
	}
	if cfg.Matching.DescriptorDim == 0 {
		cfg.Matching.DescriptorDim = 128
	}
	if cfg.History.Dir == "" {
		cfg.History.Dir = "data/history"
	}
	if cfg.Vision.ModelsDir == "" {
		cfg.Vision.ModelsDir = "models"
	}
	if cfg.Vision.DetectorModel == "" {
		cfg.Vision.DetectorModel = "det_10g.onnx"
	}
	if cfg.Vision.EmbedderModel == "" {
		cfg.Vision.EmbedderModel = "face_recognition_128.onnx"
	}
	if cfg.Vision.DetectionThreshold == 0 {
		cfg.Vision.DetectionThreshold = 0.5
	}
	if cfg.Capture.Source == "" {
		cfg.Capture.Source = "/dev/video0"
	}
	if cfg.Capture.Width == 0 {
		cfg.Capture.Width = 640
	}
	if cfg.Capture.Interval == 0 {
		cfg.Capture.Interval = 2 * time.Second
	}
	if cfg.Capture.MetricsPort == 0 {
		cfg.Capture.MetricsPort = 8082
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("IDSCAN_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("IDSCAN_API_KEY"); v != "" {
		cfg.Server.APIKey = v
	}
	if v := os.Getenv("ADMIN_USERNAME"); v != "" {
		cfg.Server.AdminUsername = v
	}
	if v := os.Getenv("ADMIN_PASSWORD"); v != "" {
		cfg.Server.AdminPassword = v
	}
	if v := os.Getenv("IDSCAN_SESSION_SECRET"); v != "" {
		cfg.Server.SessionSecret = v
	}
	if v := os.Getenv("IDSCAN_GALLERY_BACKEND"); v != "" {
		cfg.Gallery.Backend = v
	}
	if v := os.Getenv("IDSCAN_GALLERY_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Gallery.MaxRetries = n
		}
	}
	if v := os.Getenv("IDSCAN_GALLERY_RETRY_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Gallery.RetryInterval = d
		}
	}
	if v := os.Getenv("IDSCAN_REMOTE_BASE_URL"); v != "" {
		cfg.Remote.BaseURL = v
	}
	if v := os.Getenv("IDSCAN_FILE_PATH"); v != "" {
		cfg.File.Path = v
	}
	if v := os.Getenv("IDSCAN_DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("IDSCAN_DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := os.Getenv("IDSCAN_DB_NAME"); v != "" {
		cfg.Database.Name = v
	}
	if v := os.Getenv("IDSCAN_DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("IDSCAN_DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("IDSCAN_NATS_URL"); v != "" {
		cfg.NATS.URL = v
	}
	if v := os.Getenv("IDSCAN_MINIO_ENDPOINT"); v != "" {
		cfg.MinIO.Endpoint = v
	}
	if v := os.Getenv("IDSCAN_MINIO_ACCESS_KEY"); v != "" {
		cfg.MinIO.AccessKey = v
	}
	if v := os.Getenv("IDSCAN_MINIO_SECRET_KEY"); v != "" {
		cfg.MinIO.SecretKey = v
	}
	if v := os.Getenv("IDSCAN_MINIO_BUCKET"); v != "" {
		cfg.MinIO.Bucket = v
	}
	if v := os.Getenv("IDSCAN_ADMIN_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Matching.AdminThreshold = f
		}
	}
	if v := os.Getenv("IDSCAN_SCAN_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Matching.ScanThreshold = f
		}
	}
	if v := os.Getenv("IDSCAN_HISTORY_DIR"); v != "" {
		cfg.History.Dir = v
	}
	if v := os.Getenv("IDSCAN_MODELS_DIR"); v != "" {
		cfg.Vision.ModelsDir = v
	}
	if v := os.Getenv("IDSCAN_ONNX_LIBRARY"); v != "" {
		cfg.Vision.OnnxLibrary = v
	}
	if v := os.Getenv("IDSCAN_CAPTURE_SOURCE"); v != "" {
		cfg.Capture.Source = v
	}
	if v := os.Getenv("IDSCAN_CAPTURE_SOURCES"); v != "" {
		cfg.Capture.Sources = strings.Split(v, ",")
	}
	if v := os.Getenv("IDSCAN_CAPTURE_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Capture.Interval = d
		}
	}
}
