package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the bot, the credit
// ledger, and the admin console.
type Config struct {
	BotToken    string
	DBDriver    string
	DBDSN       string
	SuperUserID int64

	OpenAIAPIKey  string
	OpenAIBaseURL string
	ChatModel     string
	ImageModel    string
	ImageSize     string
	ChatPersona   string

	ImagePrice     float64
	CreditLimit    float64
	RequestTimeout time.Duration
	TypingInterval time.Duration
	UploadInterval time.Duration

	AdminListenAddr string
	AdminUsername   string
	AdminPassword   string

	S3Endpoint      string
	S3Region        string
	S3AccessKey     string
	S3SecretKey     string
	S3Bucket        string
	S3PublicBaseURL string
	S3UsePathStyle  bool
	S3Prefix        string
}

const defaultPersona = "You are a divine messenger, embodiment of Hermes, " +
	"the Greek god of trade and cunning. Your mission is to guide and assist " +
	"users with wit and charm, embodying the essence of Hermes in your interactions."

// Load reads configuration from environment variables, applying sane defaults.
func Load() (Config, error) {
	if err := loadEnvFile(); err != nil {
		return Config{}, err
	}

	cfg := Config{
		DBDriver:        getEnv("DB_DRIVER", "sqlite"),
		DBDSN:           os.Getenv("DB_DSN"),
		SuperUserID:     getInt64("SUPER_USER_ID", 0),
		OpenAIBaseURL:   getEnv("OPENAI_BASE_URL", "https://api.openai.com"),
		ChatModel:       getEnv("CHAT_MODEL", "gpt-3.5-turbo"),
		ImageModel:      getEnv("IMAGE_MODEL", "dall-e-3"),
		ImageSize:       getEnv("IMAGE_SIZE", "1024x1024"),
		ChatPersona:     getEnv("CHAT_PERSONA", defaultPersona),
		ImagePrice:      getFloat("IMAGE_PRICE", 2.00),
		CreditLimit:     getFloat("CREDIT_LIMIT", 10.00),
		RequestTimeout:  time.Second * time.Duration(getInt("HTTP_TIMEOUT_SECONDS", 60)),
		TypingInterval:  time.Second * time.Duration(getInt("TYPING_INTERVAL_SECONDS", 1)),
		UploadInterval:  time.Second * time.Duration(getInt("UPLOAD_INTERVAL_SECONDS", 5)),
		AdminListenAddr: getEnv("ADMIN_LISTEN_ADDR", ":8080"),
		AdminUsername:   getEnv("ADMIN_USERNAME", "admin"),
		AdminPassword:   getEnv("ADMIN_PASSWORD", "change-me"),
		S3Endpoint:      os.Getenv("S3_ENDPOINT"),
		S3Region:        os.Getenv("S3_REGION"),
		S3AccessKey:     os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey:     os.Getenv("S3_SECRET_KEY"),
		S3Bucket:        os.Getenv("S3_BUCKET"),
		S3PublicBaseURL: os.Getenv("S3_PUBLIC_BASE_URL"),
		S3UsePathStyle:  getBool("S3_USE_PATH_STYLE", false),
		S3Prefix:        getEnv("S3_PREFIX", "generations"),
	}

	cfg.BotToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	cfg.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")

	var missing []string
	if cfg.BotToken == "" {
		missing = append(missing, "TELEGRAM_BOT_TOKEN")
	}
	if cfg.OpenAIAPIKey == "" {
		missing = append(missing, "OPENAI_API_KEY")
	}
	if cfg.DBDSN == "" {
		missing = append(missing, "DB_DSN")
	}
	if cfg.SuperUserID == 0 {
		missing = append(missing, "SUPER_USER_ID")
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required environment variables: %v", missing)
	}

	if cfg.DBDriver != "sqlite" && cfg.DBDriver != "mysql" {
		return Config{}, fmt.Errorf("unsupported DB_DRIVER %q (want sqlite or mysql)", cfg.DBDriver)
	}
	if cfg.ImagePrice <= 0 {
		return Config{}, fmt.Errorf("IMAGE_PRICE must be greater than 0")
	}
	if cfg.CreditLimit < cfg.ImagePrice {
		return Config{}, fmt.Errorf("CREDIT_LIMIT must be at least IMAGE_PRICE")
	}

	return cfg, nil
}

// ArchiveEnabled reports whether the optional S3 archive is configured.
func (c Config) ArchiveEnabled() bool {
	return c.S3Bucket != ""
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

func getInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return i
}

func getFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func getBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func loadEnvFile() error {
	candidates := []string{}
	if custom, ok := os.LookupEnv("CONFIG_ENV_PATH"); ok && custom != "" {
		candidates = append(candidates, custom)
	}
	candidates = append(candidates,
		filepath.Join("configs", ".env"),
		".env",
	)

	for _, path := range candidates {
		info, err := os.Stat(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return fmt.Errorf("access env file %s: %w", path, err)
		}
		if info.IsDir() {
			continue
		}
		if err := godotenv.Overload(path); err != nil {
			return fmt.Errorf("load env file %s: %w", path, err)
		}
		return nil
	}
	// No env file is fine; the process environment may carry everything.
	return nil
}
