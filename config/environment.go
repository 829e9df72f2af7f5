package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Environment struct {
	IsDevelopment bool
	Domain        string
	CookieSecure  bool
	CookieMaxAge  time.Duration

	Port           string
	AllowedOrigins []string
	LogLevel       string

	DBDriver          string
	DBURL             string
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxIdleTime time.Duration
	DBConnMaxLifetime time.Duration

	AccessTokenSecret  string
	AccessTokenLife    time.Duration
	RefreshTokenSecret string
	RefreshTokenLife   time.Duration

	RootAdminEmail string
	WebsiteDomain  string

	AssetBackend   string
	AssetDir       string
	AssetBaseURL   string
	S3Bucket       string
	S3Region       string
	S3Endpoint     string
	S3AccessKey    string
	S3SecretKey    string
	S3UsePathStyle bool
	S3PublicURL    string

	BrevoAPIKey     string
	MailFromAddress string
	MailFromName    string

	TranslateURL string
	InferenceURL string
	RedisURL     string

	ReconcileSchedule string
}

// LoadDotEnv reads a .env file outside managed environments. A missing file
// is reported but not fatal.
func LoadDotEnv() error {
	if os.Getenv("RAILWAY_ENVIRONMENT_NAME") != "" {
		return nil
	}
	return godotenv.Load()
}

func Load() (Environment, error) {
	// Get domain from environment variable
	domain := os.Getenv("COOKIE_DOMAIN")

	// If no domain is set, we're in development
	isDev := domain == ""
	if isDev {
		domain = "localhost"
	}

	env := Environment{
		IsDevelopment: isDev,
		Domain:        domain,
		CookieSecure:  !isDev,
		CookieMaxAge:  getDuration("COOKIE_MAX_AGE", 14*24*time.Hour),

		Port:           getString("PORT", "8080"),
		AllowedOrigins: getList("ALLOWED_ORIGINS", []string{"http://localhost:5173"}),
		LogLevel:       getString("LOG_LEVEL", "info"),

		DBDriver:          getString("DB_DRIVER", "postgres"),
		DBURL:             os.Getenv("DB_URL"),
		DBMaxOpenConns:    getInt("DB_MAX_OPEN_CONNS", 50),
		DBMaxIdleConns:    getInt("DB_MAX_IDLE_CONNS", 10),
		DBConnMaxIdleTime: getDuration("DB_CONN_MAX_IDLE_TIME", 30*time.Second),
		DBConnMaxLifetime: getDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),

		AccessTokenSecret:  os.Getenv("ACCESS_TOKEN_SECRET"),
		AccessTokenLife:    getDuration("ACCESS_TOKEN_LIFE", time.Hour),
		RefreshTokenSecret: os.Getenv("REFRESH_TOKEN_SECRET"),
		RefreshTokenLife:   getDuration("REFRESH_TOKEN_LIFE", 14*24*time.Hour),

		RootAdminEmail: strings.ToLower(os.Getenv("ROOT_ADMIN_EMAIL")),
		WebsiteDomain:  getString("WEBSITE_DOMAIN", "http://localhost:5173"),

		AssetBackend:   getString("ASSET_BACKEND", "filesystem"),
		AssetDir:       getString("ASSET_DIR", "./uploads"),
		AssetBaseURL:   getString("ASSET_BASE_URL", "http://localhost:8080/uploads"),
		S3Bucket:       os.Getenv("S3_BUCKET"),
		S3Region:       getString("S3_REGION", "us-east-1"),
		S3Endpoint:     os.Getenv("S3_ENDPOINT"),
		S3AccessKey:    os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey:    os.Getenv("S3_SECRET_KEY"),
		S3UsePathStyle: getBool("S3_USE_PATH_STYLE", false),
		S3PublicURL:    os.Getenv("S3_PUBLIC_BASE_URL"),

		BrevoAPIKey:     os.Getenv("BREVO_API_KEY"),
		MailFromAddress: os.Getenv("MAIL_FROM_ADDRESS"),
		MailFromName:    getString("MAIL_FROM_NAME", "EngBoost"),

		TranslateURL: getString("TRANSLATE_URL", "https://translate.googleapis.com/translate_a/single"),
		InferenceURL: os.Getenv("INFERENCE_URL"),
		RedisURL:     os.Getenv("REDIS_URL"),

		ReconcileSchedule: getString("RECONCILE_SCHEDULE", "@every 10m"),
	}

	if env.AccessTokenSecret == "" || env.RefreshTokenSecret == "" {
		return env, errors.New("ACCESS_TOKEN_SECRET and REFRESH_TOKEN_SECRET must be set")
	}
	if env.DBURL == "" {
		return env, errors.New("DB_URL must be set")
	}
	if env.AssetBackend == "s3" && env.S3Bucket == "" {
		return env, errors.New("S3_BUCKET must be set when ASSET_BACKEND=s3")
	}

	return env, nil
}

func getString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func getBool(key string, fallback bool) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func getList(key string, fallback []string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
