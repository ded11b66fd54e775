package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

var (
	once        sync.Once
	initErr     error
	initialized bool

	// configPath may be set before Init (by the --config flag).
	configPath = "./config.yaml"
)

// SetConfigPath overrides the config file location. Must be called before
// Init; later calls have no effect.
func SetConfigPath(path string) {
	if path != "" {
		configPath = path
	}
}

// Init initializes the configuration system
// This should be called once at application startup
func Init() error {
	once.Do(func() {
		// Set default values
		setDefaults()

		// Set up environment variable reading for overrides
		viper.SetEnvPrefix("DIGEST")
		viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
		viper.AutomaticEnv()

		// The operator-facing variables keep their historical flat names.
		bindLegacyEnvVars()

		if env := os.Getenv("DIGEST_CONFIG_PATH"); env != "" {
			configPath = env
		}
		viper.SetConfigFile(filepath.Clean(configPath))

		// Try to read the config file
		if err := viper.ReadInConfig(); err != nil {
			// Missing config file is fine; defaults and env vars cover it.
			if !os.IsNotExist(err) {
				initErr = fmt.Errorf("error reading config file %s: %w", configPath, err)
				return
			}
		}

		// Validate the configuration
		if err := validate(); err != nil {
			initErr = fmt.Errorf("invalid configuration: %w", err)
			return
		}

		initialized = true
	})

	return initErr
}

// IsInitialized reports whether Init completed successfully.
func IsInitialized() bool {
	return initialized
}

// GetConfig returns the current configuration as a struct
// Init() must be called before using this
func GetConfig() (*Config, error) {
	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	return &config, nil
}

// Get returns a config value by key using Viper directly
func Get(key string) any {
	return viper.Get(key)
}

// GetString returns a string config value
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetDuration returns a time.Duration config value
func GetDuration(key string) time.Duration {
	return viper.GetDuration(key)
}

// DefaultMode returns "test" when TESTING_MODE is set, otherwise "full".
func DefaultMode() string {
	if viper.GetBool("transcription.testing_mode") {
		return "test"
	}
	return "full"
}

// bindLegacyEnvVars maps the flat operator environment variables into
// their config keys. The DIGEST_-prefixed nested forms still work; the
// flat names win only when the nested form is unset.
func bindLegacyEnvVars() {
	bindings := map[string][]string{
		"summarize.api_key":          {"OPENAI_API_KEY"},
		"transcription.api_key":      {"ASSEMBLYAI_API_KEY"},
		"delivery.sendgrid_api_key":  {"SENDGRID_API_KEY"},
		"delivery.dry_run":           {"DRY_RUN"},
		"youtube.api_key":            {"YOUTUBE_API_KEY"},
		"spotify.client_id":          {"SPOTIFY_CLIENT_ID"},
		"spotify.client_secret":      {"SPOTIFY_CLIENT_SECRET"},
		"podcast_index.api_key":      {"PODCASTINDEX_API_KEY"},
		"podcast_index.api_secret":   {"PODCASTINDEX_API_SECRET"},
		"transcription.testing_mode": {"TESTING_MODE"},
		"transcription.max_minutes":  {"MAX_TRANSCRIPTION_MINUTES"},
		"fetch.verify_apple":         {"VERIFY_APPLE_PODCASTS"},
		"fetch.fetch_missing":        {"FETCH_MISSING_EPISODES"},
	}
	for key, envs := range bindings {
		args := append([]string{key}, envs...)
		// BindEnv only errors on an empty key.
		_ = viper.BindEnv(args...)
	}
}

// validate validates the configuration using Viper values
func validate() error {
	port := viper.GetInt("server.port")
	if port <= 0 || port > 65535 {
		return fmt.Errorf("invalid server port: %d", port)
	}

	if viper.GetString("catalog.path") == "" {
		return fmt.Errorf("catalog.path must point at the podcast catalog file")
	}

	if viper.GetString("database.path") == "" {
		fmt.Println("Warning: No database path configured")
	}

	// Credentials are validated at the point of use: a run that needs
	// summaries fails fast there, but serving cached data must not.
	warnMissingCredentials()

	if viper.GetInt("download.max_concurrent") <= 0 {
		viper.Set("download.max_concurrent", 10)
	}
	if viper.GetInt("transcription.max_concurrent") <= 0 {
		viper.Set("transcription.max_concurrent", 10)
	}
	if viper.GetInt("summarize.max_concurrent") <= 0 {
		viper.Set("summarize.max_concurrent", 20)
	}
	if viper.GetInt("transcription.max_minutes") <= 0 {
		viper.Set("transcription.max_minutes", 15)
	}

	return nil
}

func warnMissingCredentials() {
	checks := []struct {
		key  string
		name string
	}{
		{"summarize.api_key", "OpenAI"},
		{"transcription.api_key", "AssemblyAI"},
	}
	for _, c := range checks {
		if viper.GetString(c.key) == "" {
			fmt.Printf("Warning: %s API key is not set; runs needing it will fail\n", c.name)
		}
	}
}

// Validate validates a Config struct (for testing)
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Catalog.Path == "" {
		return fmt.Errorf("catalog path is required")
	}
	if c.Download.MaxConcurrent <= 0 {
		c.Download.MaxConcurrent = 10
	}
	if c.Transcription.MaxConcurrent <= 0 {
		c.Transcription.MaxConcurrent = 10
	}
	return nil
}

// setDefaults sets default configuration values
func setDefaults() {
	// Environment defaults
	viper.SetDefault("environment", "development")

	// Server defaults
	viper.SetDefault("server.host", "127.0.0.1")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", 30*time.Second)
	// The fetch endpoint aggregates many slow feeds before responding.
	viper.SetDefault("server.write_timeout", 2*time.Minute)
	viper.SetDefault("server.shutdown_timeout", 10*time.Second)
	viper.SetDefault("server.max_header_bytes", 1048576)

	// Database defaults
	viper.SetDefault("database.path", "./data/podcast_data.db")
	viper.SetDefault("database.verbose", false)

	// Storage defaults
	viper.SetDefault("storage.base_dir", "./data")
	viper.SetDefault("storage.write_mirrors", true)
	viper.SetDefault("storage.max_audio_dir_size", int64(2<<30))

	// Catalog defaults
	viper.SetDefault("catalog.path", "./podcasts.yaml")

	// Fetch defaults
	viper.SetDefault("fetch.days_back", 7)
	viper.SetDefault("fetch.connect_timeout", 10*time.Second)
	viper.SetDefault("fetch.total_timeout", 30*time.Second)
	viper.SetDefault("fetch.verify_apple", false)
	viper.SetDefault("fetch.fetch_missing", false)
	viper.SetDefault("fetch.max_concurrent", 5)

	// Download defaults
	viper.SetDefault("download.stall_timeout", 60*time.Second)
	viper.SetDefault("download.max_timeout", 30*time.Minute)
	viper.SetDefault("download.min_speed", int64(1024))
	viper.SetDefault("download.stage_timeout", 5*time.Minute)
	viper.SetDefault("download.episode_timeout", 15*time.Minute)
	viper.SetDefault("download.max_concurrent", 10)
	viper.SetDefault("download.user_agent", "")

	// Transcription defaults
	viper.SetDefault("transcription.base_url", "https://api.assemblyai.com/v2")
	viper.SetDefault("transcription.testing_mode", false)
	viper.SetDefault("transcription.max_minutes", 15)
	viper.SetDefault("transcription.max_concurrent", 10)
	viper.SetDefault("transcription.full_concurrent", 3)
	viper.SetDefault("transcription.poll_initial", 2*time.Second)
	viper.SetDefault("transcription.poll_factor", 1.5)
	viper.SetDefault("transcription.poll_cap", 30*time.Second)
	viper.SetDefault("transcription.poll_overall", 8*time.Minute)
	viper.SetDefault("transcription.breaker_threshold", 5)
	viper.SetDefault("transcription.breaker_cooldown", 5*time.Minute)
	viper.SetDefault("transcription.speaker_labels", true)
	viper.SetDefault("transcription.ffmpeg_path", "ffmpeg")
	viper.SetDefault("transcription.ffprobe_path", "ffprobe")
	viper.SetDefault("transcription.ffmpeg_timeout", 5*time.Minute)

	// Summarize defaults
	viper.SetDefault("summarize.base_url", "")
	viper.SetDefault("summarize.model", "gpt-4o-mini")
	viper.SetDefault("summarize.temperature", 0.2)
	viper.SetDefault("summarize.paragraph_words", 150)
	viper.SetDefault("summarize.rate_per_minute", 50)
	viper.SetDefault("summarize.rate_safety", 0.1)
	viper.SetDefault("summarize.max_retries", 2)
	viper.SetDefault("summarize.max_concurrent", 20)
	viper.SetDefault("summarize.timeout", 2*time.Minute)
	viper.SetDefault("summarize.validate_cached", true)
	viper.SetDefault("summarize.validate_entities", false)

	// YouTube defaults
	viper.SetDefault("youtube.ytdlp_path", "yt-dlp")
	viper.SetDefault("youtube.cookies_dir", "")
	viper.SetDefault("youtube.search_timeout", 30*time.Second)
	viper.SetDefault("youtube.download_audio", "mp3")

	// Podcast Index defaults
	viper.SetDefault("podcast_index.base_url", "https://api.podcastindex.org/api/1.0")
	viper.SetDefault("podcast_index.timeout", 10*time.Second)
	viper.SetDefault("podcast_index.user_agent", "DigestAPI/1.0")

	// Delivery defaults
	viper.SetDefault("delivery.dry_run", false)

	// Cache defaults
	viper.SetDefault("cache.memory.default_ttl", 10*time.Minute)
	viper.SetDefault("cache.memory.cleanup_interval", 5*time.Minute)
	viper.SetDefault("cache.memory.max_entries", 1000)
	viper.SetDefault("cache.api.lookup_ttl", 1*time.Hour)
	viper.SetDefault("cache.api.recent_ttl", 1*time.Minute)
	viper.SetDefault("cache.api.catalog_ttl", 10*time.Minute)

	// Cleanup defaults
	viper.SetDefault("cleanup.max_temp_age", 24*time.Hour)
	viper.SetDefault("cleanup.interval", 1*time.Hour)

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.file_path", "")
	viper.SetDefault("logging.max_size", 10)
	viper.SetDefault("logging.max_backups", 3)
	viper.SetDefault("logging.max_age", 28)
}
