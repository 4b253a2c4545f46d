package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds the application configuration
type Config struct {
	Analysis AnalysisConfig `json:"analysis"`
	Upload   UploadConfig   `json:"upload"`
	Overlay  OverlayConfig  `json:"overlay"`
	Output   OutputConfig   `json:"output"`
	Server   ServerConfig   `json:"server"`
	Links    LinksConfig    `json:"links"`
	Settings SettingsConfig `json:"settings"`
}

// AnalysisConfig selects and configures the vision backend
type AnalysisConfig struct {
	Backend       string `json:"backend"` // azure, ollama or llamacpp
	BaseURL       string `json:"base_url"`
	OllamaURL     string `json:"ollama_url"`
	LlamaCppURL   string `json:"llamacpp_url"`
	Model         string `json:"model"`
	GenderNeutral bool   `json:"gender_neutral"`
	// TimeoutSeconds of 0 keeps the transport default
	TimeoutSeconds int `json:"timeout_seconds"`
}

// UploadConfig selects and configures the media host
type UploadConfig struct {
	Backend          string      `json:"backend"` // cloudinary or minio
	CloudinaryName   string      `json:"cloudinary_cloud_name"`
	CloudinaryURL    string      `json:"cloudinary_url"`
	UnsignedPreset   string      `json:"cloudinary_unsigned_preset"`
	Minio            MinioConfig `json:"minio"`
	MaxUploadSizeMiB int         `json:"max_upload_size_mib"`
}

// MinioConfig configures the object store uploader
type MinioConfig struct {
	Endpoint      string `json:"endpoint"`
	AccessKey     string `json:"access_key"`
	SecretKey     string `json:"secret_key"`
	Bucket        string `json:"bucket"`
	Region        string `json:"region"`
	UseSSL        bool   `json:"use_ssl"`
	PublicBaseURL string `json:"public_base_url"`
}

// OverlayConfig controls the rendered canvas
type OverlayConfig struct {
	ContainerHeight int `json:"container_height"`
}

// OutputConfig holds configuration for files written by the CLI
type OutputConfig struct {
	DefaultFormat string `json:"default_format"`
	OutputDir     string `json:"output_dir"`
	Quality       int    `json:"quality"`
	Suffix        string `json:"suffix"`
}

// ServerConfig configures the local HTTP surface
type ServerConfig struct {
	Addr           string   `json:"addr"`
	AllowedOrigins []string `json:"allowed_origins"`
}

// LinksConfig holds the footer links
type LinksConfig struct {
	RepoURL        string `json:"repo_url"`
	BackendRepoURL string `json:"backend_repo_url"`
}

// SettingsConfig locates the persisted user preferences
type SettingsConfig struct {
	Path string `json:"path"`
}

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		Analysis: AnalysisConfig{
			Backend:       "azure",
			OllamaURL:     "http://localhost:11434",
			LlamaCppURL:   "http://localhost:8080",
			Model:         "openbmb/minicpm-v4.5",
			GenderNeutral: true,
		},
		Upload: UploadConfig{
			Backend:          "cloudinary",
			MaxUploadSizeMiB: 20,
		},
		Overlay: OverlayConfig{
			ContainerHeight: 480,
		},
		Output: OutputConfig{
			DefaultFormat: "png",
			OutputDir:     "./out",
			Quality:       90,
			Suffix:        "_overlay",
		},
		Server: ServerConfig{
			Addr:           ":8090",
			AllowedOrigins: []string{"*"},
		},
		Links: LinksConfig{
			RepoURL:        "https://github.com/menta2k/vision-lens",
			BackendRepoURL: "https://github.com/menta2k/vision-lens",
		},
		Settings: SettingsConfig{
			Path: defaultSettingsPath(),
		},
	}
}

// Load builds the configuration: defaults, then the JSON file when it
// exists, then .env and process environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			fileCfg, err := LoadFromFile(path)
			if err != nil {
				return nil, err
			}
			cfg = fileCfg
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to stat config file: %w", err)
		}
	}

	// a missing .env is fine
	_ = godotenv.Load()
	cfg.ApplyEnv(os.Getenv)
	return cfg, nil
}

// LoadFromFile loads configuration from a JSON file on top of the defaults
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a JSON file
func (c *Config) SaveToFile(filename string) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ApplyEnv overrides fields from environment variables. URLs pasted with a
// leading "@" are accepted.
func (c *Config) ApplyEnv(getenv func(string) string) {
	str := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v := strings.TrimSpace(getenv(k)); v != "" {
				*dst = v
				return
			}
		}
	}
	url := func(dst *string, keys ...string) {
		str(dst, keys...)
		*dst = strings.TrimPrefix(*dst, "@")
	}
	boolean := func(dst *bool, key string) {
		if v := getenv(key); v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				*dst = b
			}
		}
	}

	url(&c.Analysis.BaseURL, "VISION_API_URL", "AZURE_API_URL")
	url(&c.Analysis.OllamaURL, "OLLAMA_URL")
	url(&c.Analysis.LlamaCppURL, "LLAMACPP_URL")
	str(&c.Analysis.Backend, "VISION_BACKEND")
	str(&c.Analysis.Model, "VISION_MODEL")
	boolean(&c.Analysis.GenderNeutral, "VISION_GENDER_NEUTRAL")

	str(&c.Upload.Backend, "UPLOAD_BACKEND")
	str(&c.Upload.CloudinaryName, "CLOUDINARY_CLOUD_NAME")
	str(&c.Upload.CloudinaryURL, "CLOUDINARY_URL")
	str(&c.Upload.UnsignedPreset, "CLOUDINARY_UNSIGNED_PRESET")
	str(&c.Upload.Minio.Endpoint, "MINIO_ENDPOINT")
	str(&c.Upload.Minio.AccessKey, "MINIO_ACCESS_KEY")
	str(&c.Upload.Minio.SecretKey, "MINIO_SECRET_KEY")
	str(&c.Upload.Minio.Bucket, "MINIO_BUCKET")
	str(&c.Upload.Minio.Region, "MINIO_REGION")
	url(&c.Upload.Minio.PublicBaseURL, "MINIO_PUBLIC_URL")
	boolean(&c.Upload.Minio.UseSSL, "MINIO_USE_SSL")

	str(&c.Server.Addr, "VISION_LENS_ADDR")
	url(&c.Links.RepoURL, "REPO_URL")
	url(&c.Links.BackendRepoURL, "BE_REPO_URL")
	str(&c.Settings.Path, "VISION_LENS_SETTINGS")
}

// Validate checks values that do not depend on remote credentials.
// Missing upload credentials are reported by the upload clients themselves,
// right before an upload would be attempted.
func (c *Config) Validate() error {
	switch c.Analysis.Backend {
	case "azure", "ollama", "llamacpp":
	default:
		return fmt.Errorf("analysis.backend must be azure, ollama or llamacpp, got %q", c.Analysis.Backend)
	}

	switch c.Upload.Backend {
	case "cloudinary", "minio":
	default:
		return fmt.Errorf("upload.backend must be cloudinary or minio, got %q", c.Upload.Backend)
	}

	if c.Analysis.TimeoutSeconds < 0 {
		return fmt.Errorf("analysis.timeout_seconds cannot be negative")
	}

	if c.Upload.MaxUploadSizeMiB < 1 {
		return fmt.Errorf("upload.max_upload_size_mib must be positive")
	}

	if c.Overlay.ContainerHeight < 1 {
		return fmt.Errorf("overlay.container_height must be positive")
	}

	if c.Output.Quality < 1 || c.Output.Quality > 100 {
		return fmt.Errorf("output.quality must be between 1 and 100")
	}

	switch strings.ToLower(c.Output.DefaultFormat) {
	case "png", "jpg", "jpeg", "webp":
	default:
		return fmt.Errorf("output.default_format must be png, jpg or webp")
	}

	return nil
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.json"
	}
	return filepath.Join(home, ".config", "vision-lens", "config.json")
}

func defaultSettingsPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./settings.yaml"
	}
	return filepath.Join(home, ".config", "vision-lens", "settings.yaml")
}
