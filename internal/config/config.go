// internal/config/config.go
package config

import (
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Store    StoreConfig
	Paths    PathsConfig
	Transfer TransferConfig
	Log      LogConfig
}

type StoreConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
}

type PathsConfig struct {
	BatchConfigsDir string
	VideoPrefix     string
	ImagePrefix     string
	ResultsPrefix   string
}

type TransferConfig struct {
	Concurrency       int
	RetryAttempts     int
	MinArtifactBytes  int64
	UnitPrefix        string
	ExpectedArtifacts []string
}

type LogConfig struct {
	Level string
	File  string
}

// Load reads configuration from the environment. A .env file in the working
// directory and the legacy credentials/.env location are consulted first, but
// variables already set in the environment win.
func Load() *Config {
	// Load .env files if they exist
	_ = godotenv.Load()
	_ = godotenv.Load(filepath.Join("credentials", ".env"))

	// Set default values
	viper.SetDefault("AZSYNC_ENDPOINT", "")
	viper.SetDefault("AZSYNC_ACCESS_KEY", "")
	viper.SetDefault("AZSYNC_SECRET_KEY", "")
	viper.SetDefault("AZSYNC_BUCKET", "videos")
	viper.SetDefault("AZSYNC_REGION", "")
	viper.SetDefault("AZSYNC_USE_SSL", true)
	viper.SetDefault("AZSYNC_BATCH_CONFIGS_DIR", "./batch_configs")
	viper.SetDefault("AZSYNC_VIDEO_PREFIX", "ruijian-research/raw")
	viper.SetDefault("AZSYNC_IMAGE_PREFIX", "ruijian-research/celeba-hq")
	viper.SetDefault("AZSYNC_RESULTS_PREFIX", "ruijian-research/batch_results")
	viper.SetDefault("AZSYNC_CONCURRENCY", 4)
	viper.SetDefault("AZSYNC_RETRY_ATTEMPTS", 3)
	viper.SetDefault("AZSYNC_MIN_ARTIFACT_BYTES", 1000)
	viper.SetDefault("AZSYNC_UNIT_PREFIX", "")
	viper.SetDefault("AZSYNC_EXPECTED_ARTIFACTS", strings.Join([]string{
		"part2_output/inpainted_video.mp4",
		"part2_output/masked_area_filled.mp4",
		"part2_output/inpainted_frame.png",
	}, ","))
	viper.SetDefault("AZSYNC_LOG_LEVEL", "info")
	viper.SetDefault("AZSYNC_LOG_FILE", "")

	// Read from environment variables
	viper.AutomaticEnv()

	return &Config{
		Store: StoreConfig{
			Endpoint:  viper.GetString("AZSYNC_ENDPOINT"),
			AccessKey: viper.GetString("AZSYNC_ACCESS_KEY"),
			SecretKey: viper.GetString("AZSYNC_SECRET_KEY"),
			Bucket:    viper.GetString("AZSYNC_BUCKET"),
			Region:    viper.GetString("AZSYNC_REGION"),
			UseSSL:    viper.GetBool("AZSYNC_USE_SSL"),
		},
		Paths: PathsConfig{
			BatchConfigsDir: viper.GetString("AZSYNC_BATCH_CONFIGS_DIR"),
			VideoPrefix:     viper.GetString("AZSYNC_VIDEO_PREFIX"),
			ImagePrefix:     viper.GetString("AZSYNC_IMAGE_PREFIX"),
			ResultsPrefix:   viper.GetString("AZSYNC_RESULTS_PREFIX"),
		},
		Transfer: TransferConfig{
			Concurrency:       viper.GetInt("AZSYNC_CONCURRENCY"),
			RetryAttempts:     viper.GetInt("AZSYNC_RETRY_ATTEMPTS"),
			MinArtifactBytes:  viper.GetInt64("AZSYNC_MIN_ARTIFACT_BYTES"),
			UnitPrefix:        viper.GetString("AZSYNC_UNIT_PREFIX"),
			ExpectedArtifacts: splitList(viper.GetString("AZSYNC_EXPECTED_ARTIFACTS")),
		},
		Log: LogConfig{
			Level: viper.GetString("AZSYNC_LOG_LEVEL"),
			File:  viper.GetString("AZSYNC_LOG_FILE"),
		},
	}
}

// splitList parses a comma-separated value, dropping empty segments.
func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
