package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Inference InferenceConfig `mapstructure:"inference"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	Render    RenderConfig    `mapstructure:"render"`
}

type ServerConfig struct {
	Port int        `mapstructure:"port"`
	Mode string     `mapstructure:"mode"`
	CORS CORSConfig `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	AllowAllOrigins bool     `mapstructure:"allow_all_origins"`
}

// DatabaseConfig selects the job store. Driver is "sqlite" or "postgres".
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	Path            string        `mapstructure:"path"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// DSN returns the driver-specific connection string.
func (c DatabaseConfig) DSN() string {
	if c.Driver == "postgres" {
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
	}
	return c.Path
}

type StorageConfig struct {
	Type      string `mapstructure:"type"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	PublicURL string `mapstructure:"public_url"`
}

// Enabled reports whether object storage is configured at all.
func (c StorageConfig) Enabled() bool {
	return c.Endpoint != "" && c.Bucket != ""
}

// InferenceConfig configures the OpenAI-compatible backend used for
// classification, room extraction and line-item scaffolding.
type InferenceConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	APIKey      string        `mapstructure:"api_key"`
	TextModel   string        `mapstructure:"text_model"`
	VisionModel string        `mapstructure:"vision_model"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	// MaxPageChars truncates page text sent in a single request.
	MaxPageChars int `mapstructure:"max_page_chars"`
}

// PipelineConfig holds the tunable policy values of the parse pipeline.
type PipelineConfig struct {
	JobTimeout             time.Duration `mapstructure:"job_timeout"`
	ScannedMaxRatio        float64       `mapstructure:"scanned_max_ratio"`
	VectorMinRatio         float64       `mapstructure:"vector_min_ratio"`
	SampleThreshold        int           `mapstructure:"sample_threshold"`
	SampleCap              int           `mapstructure:"sample_cap"`
	ClassifyBatchSize      int           `mapstructure:"classify_batch_size"`
	ClassifyConcurrency    int           `mapstructure:"classify_concurrency"`
	AdmitTypes             []string      `mapstructure:"admit_types"`
	MinSheetConfidence     int           `mapstructure:"min_sheet_confidence"`
	AdmitRoomLabels        bool          `mapstructure:"admit_room_labels"`
	MinRoomLabelConfidence int           `mapstructure:"min_room_label_confidence"`
	LegacyPrefixPages      int           `mapstructure:"legacy_prefix_pages"`
	MaxScannedVisionPages  int           `mapstructure:"max_scanned_vision_pages"`
	MaxMixedVisionPages    int           `mapstructure:"max_mixed_vision_pages"`
	RenderConcurrency      int           `mapstructure:"render_concurrency"`
	FallbackPageCount      int           `mapstructure:"fallback_page_count"`
	MaxRemoteBytes         int64         `mapstructure:"max_remote_bytes"`
}

// RenderConfig configures page rasterization for vision extraction.
type RenderConfig struct {
	Binary     string        `mapstructure:"binary"`
	DPI        int           `mapstructure:"dpi"`
	MaxEdgePx  int           `mapstructure:"max_edge_px"`
	Format     string        `mapstructure:"format"`
	JPEGQuality int           `mapstructure:"jpeg_quality"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// Load reads configuration from file, .env and the environment.
// Parameters:
//   - configPath: explicit config file; empty searches ./configs and the working directory.
// Returns:
//   - *Config: the merged configuration.
//   - error: non-nil when an existing file cannot be read or decoded.
func Load(configPath string) (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Bind environment variables explicitly for sensitive data
	v.BindEnv("database.driver", "DATABASE_DRIVER")
	v.BindEnv("database.password", "DATABASE_PASSWORD")
	v.BindEnv("storage.endpoint", "S3_ENDPOINT")
	v.BindEnv("storage.access_key", "S3_ACCESS_KEY")
	v.BindEnv("storage.secret_key", "S3_SECRET_KEY")
	v.BindEnv("storage.bucket", "S3_BUCKET")
	v.BindEnv("storage.public_url", "S3_PUBLIC_URL")
	v.BindEnv("inference.api_key", "OPENAI_API_KEY")
	v.BindEnv("inference.base_url", "OPENAI_BASE_URL")
	v.BindEnv("inference.text_model", "TEXT_MODEL")
	v.BindEnv("inference.vision_model", "VISION_MODEL")
	v.BindEnv("render.binary", "PDFTOPPM_BIN")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.cors.allow_all_origins", true)
	v.SetDefault("server.cors.allowed_origins", []string{})

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/planscan.db")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("storage.use_ssl", true)

	v.SetDefault("inference.base_url", "https://api.openai.com/v1")
	v.SetDefault("inference.text_model", "gpt-4o-mini")
	v.SetDefault("inference.vision_model", "gpt-4o")
	v.SetDefault("inference.timeout", 45*time.Second)
	v.SetDefault("inference.max_tokens", 4096)
	v.SetDefault("inference.max_page_chars", 6000)

	d := DefaultPipeline()
	v.SetDefault("pipeline.job_timeout", d.JobTimeout)
	v.SetDefault("pipeline.scanned_max_ratio", d.ScannedMaxRatio)
	v.SetDefault("pipeline.vector_min_ratio", d.VectorMinRatio)
	v.SetDefault("pipeline.sample_threshold", d.SampleThreshold)
	v.SetDefault("pipeline.sample_cap", d.SampleCap)
	v.SetDefault("pipeline.classify_batch_size", d.ClassifyBatchSize)
	v.SetDefault("pipeline.classify_concurrency", d.ClassifyConcurrency)
	v.SetDefault("pipeline.admit_types", d.AdmitTypes)
	v.SetDefault("pipeline.min_sheet_confidence", d.MinSheetConfidence)
	v.SetDefault("pipeline.admit_room_labels", d.AdmitRoomLabels)
	v.SetDefault("pipeline.min_room_label_confidence", d.MinRoomLabelConfidence)
	v.SetDefault("pipeline.legacy_prefix_pages", d.LegacyPrefixPages)
	v.SetDefault("pipeline.max_scanned_vision_pages", d.MaxScannedVisionPages)
	v.SetDefault("pipeline.max_mixed_vision_pages", d.MaxMixedVisionPages)
	v.SetDefault("pipeline.render_concurrency", d.RenderConcurrency)
	v.SetDefault("pipeline.fallback_page_count", d.FallbackPageCount)
	v.SetDefault("pipeline.max_remote_bytes", d.MaxRemoteBytes)

	r := DefaultRender()
	v.SetDefault("render.binary", r.Binary)
	v.SetDefault("render.dpi", r.DPI)
	v.SetDefault("render.max_edge_px", r.MaxEdgePx)
	v.SetDefault("render.format", r.Format)
	v.SetDefault("render.jpeg_quality", r.JPEGQuality)
	v.SetDefault("render.timeout", r.Timeout)
}

// DefaultPipeline returns the pipeline policy used when nothing is configured.
func DefaultPipeline() PipelineConfig {
	return PipelineConfig{
		JobTimeout:             120 * time.Second,
		ScannedMaxRatio:        0.3,
		VectorMinRatio:         0.8,
		SampleThreshold:        20,
		SampleCap:              20,
		ClassifyBatchSize:      10,
		ClassifyConcurrency:    2,
		AdmitTypes:             []string{"floor_plan"},
		MinSheetConfidence:     60,
		AdmitRoomLabels:        true,
		MinRoomLabelConfidence: 40,
		LegacyPrefixPages:      5,
		MaxScannedVisionPages:  4,
		MaxMixedVisionPages:    6,
		RenderConcurrency:      3,
		FallbackPageCount:      3,
		MaxRemoteBytes:         50 << 20,
	}
}

// DefaultRender returns the rasterization settings used when nothing is configured.
func DefaultRender() RenderConfig {
	return RenderConfig{
		Binary:      "pdftoppm",
		DPI:         110,
		MaxEdgePx:   2000,
		Format:      "jpeg",
		JPEGQuality: 82,
		Timeout:     30 * time.Second,
	}
}
