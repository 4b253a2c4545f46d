package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func env(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	require.Equal(t, 480, cfg.Overlay.ContainerHeight)
	require.True(t, cfg.Analysis.GenderNeutral)
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	cfg.ApplyEnv(env(map[string]string{
		"VISION_API_URL":             "@https://vision.example.com/api",
		"CLOUDINARY_URL":             "cloudinary://k:s@demo",
		"CLOUDINARY_UNSIGNED_PRESET": "unsigned",
		"MINIO_USE_SSL":              "true",
		"VISION_GENDER_NEUTRAL":      "false",
		"REPO_URL":                   "@https://github.com/example/fe",
		"UPLOAD_BACKEND":             "minio",
		"LLAMACPP_URL":               "@http://gpu-box:8080",
	}))

	require.Equal(t, "https://vision.example.com/api", cfg.Analysis.BaseURL)
	require.Equal(t, "cloudinary://k:s@demo", cfg.Upload.CloudinaryURL)
	require.Equal(t, "unsigned", cfg.Upload.UnsignedPreset)
	require.True(t, cfg.Upload.Minio.UseSSL)
	require.False(t, cfg.Analysis.GenderNeutral)
	require.Equal(t, "https://github.com/example/fe", cfg.Links.RepoURL)
	require.Equal(t, "minio", cfg.Upload.Backend)
	require.Equal(t, "http://gpu-box:8080", cfg.Analysis.LlamaCppURL)
}

func TestApplyEnvFallsBackToLegacyName(t *testing.T) {
	cfg := Default()
	cfg.ApplyEnv(env(map[string]string{"AZURE_API_URL": "https://legacy"}))
	require.Equal(t, "https://legacy", cfg.Analysis.BaseURL)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Analysis.Backend = "gpt"
	require.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Upload.Backend = "ftp"
	require.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Overlay.ContainerHeight = 0
	require.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Output.Quality = 101
	require.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Output.DefaultFormat = "tiff"
	require.Error(t, cfg.Validate())
}

func TestSaveAndLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg", "config.json")
	cfg := Default()
	cfg.Overlay.ContainerHeight = 600
	cfg.Upload.UnsignedPreset = "preset"
	require.NoError(t, cfg.SaveToFile(path))

	loaded, err := LoadFromFile(path)
	require.NoError(t, err)
	require.Equal(t, 600, loaded.Overlay.ContainerHeight)
	require.Equal(t, "preset", loaded.Upload.UnsignedPreset)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)
	require.Equal(t, "cloudinary", cfg.Upload.Backend)
}
