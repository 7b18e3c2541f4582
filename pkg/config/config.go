package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Host      string
	Port      int
	APIPrefix string
	Timezone  string

	Database   DatabaseConfig
	Redis      RedisConfig
	CORS       CORSConfig
	Log        LogConfig
	Auth       AuthConfig
	LLM        LLMConfig
	VoiceAgent VoiceAgentConfig
	Grading    GradingConfig
	Jobs       JobsConfig
}

type DatabaseConfig struct {
	URL          string
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// AuthConfig holds Supabase credentials and the development test identity.
type AuthConfig struct {
	SupabaseURL     string
	SupabaseKey     string
	ServiceRoleKey  string
	JWTSecret       string
	VerifyTimeout   time.Duration
	TestUserID      string
	TestUserEmail   string
	TestUserName    string
	EnableTestRoute bool
}

// LLMConfig configures the chat completion provider.
type LLMConfig struct {
	APIKey       string
	BaseURL      string
	IntentModel  string
	GradingModel string
	Timeout      time.Duration
	HistoryLimit int
}

// VoiceAgentConfig configures the ElevenLabs conversational agent integration.
type VoiceAgentConfig struct {
	APIKey           string
	AgentID          string
	BaseURL          string
	RequestTimeout   time.Duration
	AttachAttempts   int
	AttachRetryDelay time.Duration
	RAGModel         string
	PendingTTL       time.Duration
}

// GradingConfig bounds submission text extraction.
type GradingConfig struct {
	MaxPages        int
	MaxChars        int
	DownloadTimeout time.Duration
	StorageDir      string
	DefaultMaxScore float64
}

// JobsConfig tunes the background RAG indexing queue.
type JobsConfig struct {
	RAGWorkers    int
	RAGBuffer     int
	RAGMaxRetries int
	RAGRetryDelay time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		var pathErr *fs.PathError
		if !errors.As(err, &notFound) && !errors.As(err, &pathErr) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Host = v.GetString("HOST")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")
	cfg.Timezone = v.GetString("TIMEZONE")

	cfg.Database = DatabaseConfig{
		URL:          v.GetString("DATABASE_URL"),
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	origins := v.GetString("ALLOWED_ORIGINS")
	if origins == "" {
		origins = v.GetString("CORS_ORIGINS")
	}
	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(origins)}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Auth = AuthConfig{
		SupabaseURL:     strings.TrimRight(v.GetString("SUPABASE_URL"), "/"),
		SupabaseKey:     v.GetString("SUPABASE_KEY"),
		ServiceRoleKey:  v.GetString("SUPABASE_SERVICE_ROLE_KEY"),
		JWTSecret:       v.GetString("SUPABASE_JWT_SECRET"),
		VerifyTimeout:   parseDuration(v.GetString("AUTH_VERIFY_TIMEOUT"), 10*time.Second),
		TestUserID:      v.GetString("TEST_USER_ID"),
		TestUserEmail:   v.GetString("TEST_USER_EMAIL"),
		TestUserName:    v.GetString("TEST_USER_NAME"),
		EnableTestRoute: v.GetBool("ENABLE_TEST_ROUTES"),
	}

	cfg.LLM = LLMConfig{
		APIKey:       v.GetString("OPENAI_API_KEY"),
		BaseURL:      v.GetString("OPENAI_BASE_URL"),
		IntentModel:  v.GetString("OPENAI_INTENT_MODEL"),
		GradingModel: v.GetString("OPENAI_GRADING_MODEL"),
		Timeout:      parseDuration(v.GetString("OPENAI_TIMEOUT"), 60*time.Second),
		HistoryLimit: v.GetInt("AGENT_HISTORY_LIMIT"),
	}

	cfg.VoiceAgent = VoiceAgentConfig{
		APIKey:           v.GetString("ELEVENLABS_API_KEY"),
		AgentID:          v.GetString("ELEVENLABS_AGENT_ID"),
		BaseURL:          strings.TrimRight(v.GetString("ELEVENLABS_BASE_URL"), "/"),
		RequestTimeout:   parseDuration(v.GetString("ELEVENLABS_TIMEOUT"), 30*time.Second),
		AttachAttempts:   v.GetInt("ELEVENLABS_ATTACH_ATTEMPTS"),
		AttachRetryDelay: parseDuration(v.GetString("ELEVENLABS_ATTACH_RETRY_DELAY"), 2*time.Second),
		RAGModel:         v.GetString("ELEVENLABS_RAG_MODEL"),
		PendingTTL:       parseDuration(v.GetString("ELEVENLABS_PENDING_TTL"), 24*time.Hour),
	}

	cfg.Grading = GradingConfig{
		MaxPages:        v.GetInt("PDF_MAX_PAGES"),
		MaxChars:        v.GetInt("PDF_MAX_CHARS"),
		DownloadTimeout: parseDuration(v.GetString("PDF_DOWNLOAD_TIMEOUT"), 30*time.Second),
		StorageDir:      v.GetString("SUBMISSIONS_STORAGE_DIR"),
		DefaultMaxScore: v.GetFloat64("GRADING_DEFAULT_MAX_POINTS"),
	}

	cfg.Jobs = JobsConfig{
		RAGWorkers:    v.GetInt("RAG_INDEX_WORKERS"),
		RAGBuffer:     v.GetInt("RAG_INDEX_BUFFER"),
		RAGMaxRetries: v.GetInt("RAG_INDEX_MAX_RETRIES"),
		RAGRetryDelay: parseDuration(v.GetString("RAG_INDEX_RETRY_DELAY"), 5*time.Second),
	}

	return cfg, nil
}

// Validate reports the settings the server cannot start without.
func (c *Config) Validate() error {
	var missing []string
	if c.Database.URL == "" && c.Database.Host == "" {
		missing = append(missing, "DATABASE_URL or DB_HOST")
	}
	if c.LLM.APIKey == "" {
		missing = append(missing, "OPENAI_API_KEY")
	}
	if c.Auth.JWTSecret == "" && c.Auth.SupabaseURL == "" {
		missing = append(missing, "SUPABASE_JWT_SECRET or SUPABASE_URL")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	return nil
}

// VoiceAgentEnabled reports whether ElevenLabs credentials are present.
func (c *Config) VoiceAgentEnabled() bool {
	return c.VoiceAgent.APIKey != ""
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("HOST", "0.0.0.0")
	v.SetDefault("PORT", 8000)
	v.SetDefault("API_PREFIX", "/api")
	v.SetDefault("TIMEZONE", "UTC")

	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "mylo")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("SUPABASE_URL", "")
	v.SetDefault("SUPABASE_KEY", "")
	v.SetDefault("SUPABASE_SERVICE_ROLE_KEY", "")
	v.SetDefault("SUPABASE_JWT_SECRET", "")
	v.SetDefault("AUTH_VERIFY_TIMEOUT", "10s")
	v.SetDefault("TEST_USER_ID", "00000000-0000-0000-0000-000000000001")
	v.SetDefault("TEST_USER_EMAIL", "test@example.com")
	v.SetDefault("TEST_USER_NAME", "Test Teacher")
	v.SetDefault("ENABLE_TEST_ROUTES", true)

	v.SetDefault("OPENAI_API_KEY", "")
	v.SetDefault("OPENAI_BASE_URL", "")
	v.SetDefault("OPENAI_INTENT_MODEL", "gpt-3.5-turbo")
	v.SetDefault("OPENAI_GRADING_MODEL", "gpt-4o-mini")
	v.SetDefault("OPENAI_TIMEOUT", "60s")
	v.SetDefault("AGENT_HISTORY_LIMIT", 10)

	v.SetDefault("ELEVENLABS_API_KEY", "")
	v.SetDefault("ELEVENLABS_AGENT_ID", "")
	v.SetDefault("ELEVENLABS_BASE_URL", "https://api.elevenlabs.io")
	v.SetDefault("ELEVENLABS_TIMEOUT", "30s")
	v.SetDefault("ELEVENLABS_ATTACH_ATTEMPTS", 3)
	v.SetDefault("ELEVENLABS_ATTACH_RETRY_DELAY", "2s")
	v.SetDefault("ELEVENLABS_RAG_MODEL", "e5_mistral_7b_instruct")
	v.SetDefault("ELEVENLABS_PENDING_TTL", "24h")

	v.SetDefault("PDF_MAX_PAGES", 50)
	v.SetDefault("PDF_MAX_CHARS", 50000)
	v.SetDefault("PDF_DOWNLOAD_TIMEOUT", "30s")
	v.SetDefault("SUBMISSIONS_STORAGE_DIR", "./submissions")
	v.SetDefault("GRADING_DEFAULT_MAX_POINTS", 100)

	v.SetDefault("RAG_INDEX_WORKERS", 2)
	v.SetDefault("RAG_INDEX_BUFFER", 32)
	v.SetDefault("RAG_INDEX_MAX_RETRIES", 3)
	v.SetDefault("RAG_INDEX_RETRY_DELAY", "5s")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
