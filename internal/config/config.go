package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	// Import godotenv for loading .env files
	_ "github.com/joho/godotenv/autoload"
)

type Config struct {
	Server    ServerConfig    `json:"server"`
	Database  DatabaseConfig  `json:"database"`
	Auth      AuthConfig      `json:"auth"`
	Recording RecordingConfig `json:"recording"`
	Security  SecurityConfig  `json:"security"`
}

type ServerConfig struct {
	Port         int           `json:"port"`
	Host         string        `json:"host"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	IdleTimeout  time.Duration `json:"idle_timeout"`
}

type DatabaseConfig struct {
	Host     string `json:"host"`
	Port     string `json:"port"`
	Name     string `json:"name"`
	Username string `json:"username"`
	Password string `json:"password"`
	URI      string `json:"uri"` // Full connection URI
}

type AuthConfig struct {
	// APIKey guards the /api group. Empty disables authentication,
	// which is the default for a recorder running on localhost.
	APIKey     string        `json:"-"`
	JWTSecret  string        `json:"-"`
	TokenTTL   time.Duration `json:"token_ttl"`
}

type RecordingConfig struct {
	RecordingsDir string `json:"recordings_dir"`
	TempDir       string `json:"temp_dir"`
	FinalExt      string `json:"final_ext"`
	TempVideoExt  string `json:"temp_video_ext"`

	DefaultFPS   int `json:"default_fps"`
	TargetWidth  int `json:"target_width"`  // portrait target for the letterbox policy
	TargetHeight int `json:"target_height"`

	SampleRate int `json:"sample_rate"`
	Channels   int `json:"channels"`

	// SystemAudioOffset shifts the system-audio stream during assembly.
	// Negative trims the head so the stream plays earlier; the right
	// magnitude depends on the host's device latency.
	SystemAudioOffset time.Duration `json:"system_audio_offset"`

	MinAudioBytes int64 `json:"min_audio_bytes"`
	MinVideoBytes int64 `json:"min_video_bytes"`

	JoinTimeout       time.Duration `json:"join_timeout"`
	QueuePollInterval time.Duration `json:"queue_poll_interval"`
	QueueSize         int           `json:"queue_size"`

	MinFreeDiskMB uint64 `json:"min_free_disk_mb"`

	FFmpegPath  string `json:"ffmpeg_path"`
	FFprobePath string `json:"ffprobe_path"`
}

type SecurityConfig struct {
	CORSOrigins []string      `json:"cors_origins"`
	RateLimit   int           `json:"rate_limit"`
	RateWindow  time.Duration `json:"rate_window"`
}

// Load reads configuration from environment variables and the .env file.
func Load() (*Config, error) {
	config := &Config{}

	if err := config.loadServerConfig(); err != nil {
		return nil, fmt.Errorf("failed to load server config: %w", err)
	}

	if err := config.loadDatabaseConfig(); err != nil {
		return nil, fmt.Errorf("failed to load database config: %w", err)
	}

	if err := config.loadAuthConfig(); err != nil {
		return nil, fmt.Errorf("failed to load auth config: %w", err)
	}

	if err := config.loadRecordingConfig(); err != nil {
		return nil, fmt.Errorf("failed to load recording config: %w", err)
	}

	if err := config.loadSecurityConfig(); err != nil {
		return nil, fmt.Errorf("failed to load security config: %w", err)
	}

	return config, nil
}

func (c *Config) loadServerConfig() error {
	portStr := getEnv("PORT", "8080")
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return fmt.Errorf("invalid port: %w", err)
	}

	c.Server = ServerConfig{
		Port:         port,
		Host:         getEnv("HOST", "0.0.0.0"),
		ReadTimeout:  getDurationEnv("READ_TIMEOUT", 10*time.Second),
		WriteTimeout: getDurationEnv("WRITE_TIMEOUT", 10*time.Second),
		IdleTimeout:  getDurationEnv("IDLE_TIMEOUT", 10*time.Second),
	}
	return nil
}

func (c *Config) loadDatabaseConfig() error {
	c.Database = DatabaseConfig{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnv("DB_PORT", "27017"),
		Name:     getEnv("DB_NAME", "screenrec"),
		Username: getEnv("DB_USERNAME", ""),
		Password: getEnv("DB_PASSWORD", ""),
	}

	// An explicit DB_URI wins over the host/port pair.
	if uri := getEnv("DB_URI", ""); uri != "" {
		c.Database.URI = uri
	} else if c.Database.Username != "" && c.Database.Password != "" {
		c.Database.URI = fmt.Sprintf("mongodb://%s:%s@%s:%s", c.Database.Username, c.Database.Password, c.Database.Host, c.Database.Port)
	} else {
		c.Database.URI = fmt.Sprintf("mongodb://%s:%s", c.Database.Host, c.Database.Port)
	}

	return nil
}

func (c *Config) loadAuthConfig() error {
	c.Auth = AuthConfig{
		APIKey:    getEnv("REC_API_KEY", ""),
		JWTSecret: getEnv("JWT_SECRET", ""),
		TokenTTL:  getDurationEnv("JWT_EXPIRATION", 24*time.Hour),
	}
	return nil
}

func (c *Config) loadRecordingConfig() error {
	c.Recording = RecordingConfig{
		RecordingsDir: getEnv("RECORDINGS_DIR", "recordings"),
		TempDir:       getEnv("TEMP_DIR", "temp_recordings"),
		FinalExt:      strings.TrimPrefix(getEnv("FINAL_EXT", "mp4"), "."),
		TempVideoExt:  strings.TrimPrefix(getEnv("TEMP_VIDEO_EXT", "avi"), "."),

		DefaultFPS:   getIntEnv("DEFAULT_FPS", 20),
		TargetWidth:  getIntEnv("SHORTS_TARGET_WIDTH", 1080),
		TargetHeight: getIntEnv("SHORTS_TARGET_HEIGHT", 1920),

		SampleRate: getIntEnv("AUDIO_SAMPLE_RATE", 44100),
		Channels:   getIntEnv("AUDIO_CHANNELS", 2),

		SystemAudioOffset: getDurationEnv("SYS_AUDIO_OFFSET", -200*time.Millisecond),

		MinAudioBytes: getInt64Env("MIN_AUDIO_BYTES", 1024),
		MinVideoBytes: getInt64Env("MIN_VIDEO_BYTES", 1024),

		JoinTimeout:       getDurationEnv("JOIN_TIMEOUT", 5*time.Second),
		QueuePollInterval: getDurationEnv("QUEUE_POLL_INTERVAL", 100*time.Millisecond),
		QueueSize:         getIntEnv("QUEUE_SIZE", 64),

		MinFreeDiskMB: uint64(getInt64Env("MIN_FREE_DISK_MB", 512)),

		FFmpegPath:  getEnv("FFMPEG_PATH", "ffmpeg"),
		FFprobePath: getEnv("FFPROBE_PATH", "ffprobe"),
	}
	return nil
}

func (c *Config) loadSecurityConfig() error {
	corsOriginsStr := getEnv("CORS_ORIGINS", "*")
	var corsOrigins []string
	if corsOriginsStr != "*" {
		for _, origin := range strings.Split(corsOriginsStr, ",") {
			corsOrigins = append(corsOrigins, strings.TrimSpace(origin))
		}
	} else {
		corsOrigins = []string{"*"}
	}
	c.Security = SecurityConfig{
		CORSOrigins: corsOrigins,
		RateLimit:   getIntEnv("RATE_LIMIT", 100),
		RateWindow:  getDurationEnv("RATE_WINDOW", 1*time.Minute),
	}

	return nil
}

func getEnv(key string, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getInt64Env(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}
	if c.Database.URI == "" {
		return fmt.Errorf("database URI is required")
	}
	if c.Auth.APIKey != "" && c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required when REC_API_KEY is set")
	}
	if c.Recording.RecordingsDir == "" {
		return fmt.Errorf("recordings directory is required")
	}
	if c.Recording.TempDir == "" {
		return fmt.Errorf("temp directory is required")
	}
	if c.Recording.DefaultFPS < 1 || c.Recording.DefaultFPS > 60 {
		return fmt.Errorf("default fps out of range: %d", c.Recording.DefaultFPS)
	}
	if c.Recording.TargetWidth <= 0 || c.Recording.TargetHeight <= 0 {
		return fmt.Errorf("invalid letterbox target size: %dx%d", c.Recording.TargetWidth, c.Recording.TargetHeight)
	}
	if c.Recording.SampleRate <= 0 {
		return fmt.Errorf("invalid sample rate: %d", c.Recording.SampleRate)
	}
	if c.Recording.Channels < 1 || c.Recording.Channels > 2 {
		return fmt.Errorf("invalid channel count: %d", c.Recording.Channels)
	}
	if c.Recording.JoinTimeout <= 0 {
		return fmt.Errorf("join timeout must be positive")
	}
	if c.Recording.QueuePollInterval <= 0 || c.Recording.QueuePollInterval > time.Second {
		return fmt.Errorf("queue poll interval out of range: %s", c.Recording.QueuePollInterval)
	}
	if c.Recording.QueueSize < 1 {
		return fmt.Errorf("queue size must be at least 1")
	}

	return nil
}
