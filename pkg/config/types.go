package config

import "time"

// Config represents the complete application configuration
type Config struct {
	Environment   string              `mapstructure:"environment"`
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Storage       StorageConfig       `mapstructure:"storage"`
	Catalog       CatalogConfig       `mapstructure:"catalog"`
	Fetch         FetchConfig         `mapstructure:"fetch"`
	Download      DownloadConfig      `mapstructure:"download"`
	Transcription TranscriptionConfig `mapstructure:"transcription"`
	Summarize     SummarizeConfig     `mapstructure:"summarize"`
	YouTube       YouTubeConfig       `mapstructure:"youtube"`
	Spotify       SpotifyConfig       `mapstructure:"spotify"`
	PodcastIndex  PodcastIndexConfig  `mapstructure:"podcast_index"`
	Delivery      DeliveryConfig      `mapstructure:"delivery"`
	Cache         CacheConfig         `mapstructure:"cache"`
	Cleanup       CleanupConfig       `mapstructure:"cleanup"`
	Logging       LoggingConfig       `mapstructure:"logging"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxHeaderBytes  int           `mapstructure:"max_header_bytes"`
}

// DatabaseConfig contains database settings
type DatabaseConfig struct {
	Path    string `mapstructure:"path"`
	Verbose bool   `mapstructure:"verbose"`
}

// StorageConfig describes the on-disk layout rooted at BaseDir:
// audio/, transcripts/, summaries/, cache/, temp/ and the SQLite file.
type StorageConfig struct {
	BaseDir         string `mapstructure:"base_dir"`
	WriteMirrors    bool   `mapstructure:"write_mirrors"`
	MaxAudioDirSize int64  `mapstructure:"max_audio_dir_size"` // bytes, 0 disables eviction
}

// CatalogConfig locates the podcast catalog file.
type CatalogConfig struct {
	Path string `mapstructure:"path"`
}

// FetchConfig controls episode discovery.
type FetchConfig struct {
	DaysBack       int           `mapstructure:"days_back"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	TotalTimeout   time.Duration `mapstructure:"total_timeout"`
	VerifyApple    bool          `mapstructure:"verify_apple"`
	FetchMissing   bool          `mapstructure:"fetch_missing"`
	MaxConcurrent  int           `mapstructure:"max_concurrent"`
}

// DownloadConfig controls the download router and the Direct strategy's
// progress-based timeout.
type DownloadConfig struct {
	StallTimeout   time.Duration `mapstructure:"stall_timeout"`
	MaxTimeout     time.Duration `mapstructure:"max_timeout"`
	MinSpeed       int64         `mapstructure:"min_speed"` // bytes/sec
	StageTimeout   time.Duration `mapstructure:"stage_timeout"`
	EpisodeTimeout time.Duration `mapstructure:"episode_timeout"`
	MaxConcurrent  int           `mapstructure:"max_concurrent"`
	UserAgent      string        `mapstructure:"user_agent"`
}

// TranscriptionConfig contains ASR service settings
type TranscriptionConfig struct {
	APIKey           string        `mapstructure:"api_key"`
	BaseURL          string        `mapstructure:"base_url"`
	TestingMode      bool          `mapstructure:"testing_mode"`
	MaxMinutes       int           `mapstructure:"max_minutes"`
	MaxConcurrent    int           `mapstructure:"max_concurrent"`
	FullConcurrent   int           `mapstructure:"full_concurrent"`
	PollInitial      time.Duration `mapstructure:"poll_initial"`
	PollFactor       float64       `mapstructure:"poll_factor"`
	PollCap          time.Duration `mapstructure:"poll_cap"`
	PollOverall      time.Duration `mapstructure:"poll_overall"`
	BreakerThreshold int           `mapstructure:"breaker_threshold"`
	BreakerCooldown  time.Duration `mapstructure:"breaker_cooldown"`
	SpeakerLabels    bool          `mapstructure:"speaker_labels"`
	FFmpegPath       string        `mapstructure:"ffmpeg_path"`
	FFprobePath      string        `mapstructure:"ffprobe_path"`
	FFmpegTimeout    time.Duration `mapstructure:"ffmpeg_timeout"`
}

// SummarizeConfig contains LLM summarization settings
type SummarizeConfig struct {
	APIKey         string        `mapstructure:"api_key"`
	BaseURL        string        `mapstructure:"base_url"`
	Model          string        `mapstructure:"model"`
	Temperature    float32       `mapstructure:"temperature"`
	ParagraphWords int           `mapstructure:"paragraph_words"`
	RatePerMinute  int           `mapstructure:"rate_per_minute"`
	RateSafety     float64       `mapstructure:"rate_safety"` // fraction held back from the quota
	MaxRetries     int           `mapstructure:"max_retries"`
	MaxConcurrent  int           `mapstructure:"max_concurrent"`
	Timeout        time.Duration `mapstructure:"timeout"`
	ValidateCached bool          `mapstructure:"validate_cached"`
	// ValidateEntities asks the LLM to propose extra name corrections
	// before summarizing. Off by default; one more call per episode.
	ValidateEntities bool `mapstructure:"validate_entities"`
}

// YouTubeConfig contains video-host settings
type YouTubeConfig struct {
	APIKey        string        `mapstructure:"api_key"`
	YtdlpPath     string        `mapstructure:"ytdlp_path"`
	CookiesDir    string        `mapstructure:"cookies_dir"`
	SearchTimeout time.Duration `mapstructure:"search_timeout"`
	DownloadAudio string        `mapstructure:"download_audio"` // yt-dlp audio format
}

// SpotifyConfig contains optional Spotify search credentials
type SpotifyConfig struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
}

// PodcastIndexConfig contains Podcast Index API settings
type PodcastIndexConfig struct {
	APIKey    string        `mapstructure:"api_key"`
	APISecret string        `mapstructure:"api_secret"`
	BaseURL   string        `mapstructure:"base_url"`
	Timeout   time.Duration `mapstructure:"timeout"`
	UserAgent string        `mapstructure:"user_agent"`
}

// DeliveryConfig holds the hand-off knobs for the digest email step, which
// itself lives outside the core.
type DeliveryConfig struct {
	SendgridAPIKey string `mapstructure:"sendgrid_api_key"`
	DryRun         bool   `mapstructure:"dry_run"`
}

// CacheConfig contains cache settings
type CacheConfig struct {
	Memory MemoryCacheConfig `mapstructure:"memory"`
	API    APICacheConfig    `mapstructure:"api"`
}

// MemoryCacheConfig contains in-memory cache settings
type MemoryCacheConfig struct {
	DefaultTTL      time.Duration `mapstructure:"default_ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
	MaxEntries      int           `mapstructure:"max_entries"`
}

// APICacheConfig contains API response cache settings
type APICacheConfig struct {
	LookupTTL  time.Duration `mapstructure:"lookup_ttl"`
	RecentTTL  time.Duration `mapstructure:"recent_ttl"`
	CatalogTTL time.Duration `mapstructure:"catalog_ttl"`
}

// CleanupConfig contains temp sweeper settings
type CleanupConfig struct {
	MaxTempAge time.Duration `mapstructure:"max_temp_age"`
	Interval   time.Duration `mapstructure:"interval"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
}
