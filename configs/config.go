package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

type R2 struct {
	AccountID  string `env:"R2_ACCOUNT_ID"`
	AccessKey  string `env:"R2_ACCESS_KEY"`
	SecretKey  string `env:"R2_SECRET_KEY"`
	BucketName string `env:"R2_BUCKET_NAME"`
	// Endpoint overrides the account-derived R2 endpoint.
	Endpoint string `env:"R2_ENDPOINT"`
}

type Storage struct {
	Backend  string `env:"STORAGE_BACKEND,default=local"`
	LocalDir string `env:"STORAGE_LOCAL_DIR,default=./media"`
	R2       R2
}

type HTTPClient struct {
	Timeout     time.Duration `env:"HTTP_TIMEOUT,default=30s"`
	MaxAttempts int           `env:"HTTP_MAX_ATTEMPTS,default=3"`
	Backoff     time.Duration `env:"HTTP_BACKOFF,default=1s"`
	RateLimit   float64       `env:"HTTP_RATE_LIMIT,default=0"`
	RateBurst   int           `env:"HTTP_RATE_BURST,default=5"`
}

type Facebook struct {
	AppID       string `env:"FACEBOOK_APP_ID"`
	AppSecret   string `env:"FACEBOOK_APP_SECRET"`
	RedirectURI string `env:"FACEBOOK_REDIRECT_URI"`
	GraphURL    string `env:"FACEBOOK_GRAPH_URL,default=https://graph.facebook.com/v19.0"`
	DialogURL   string `env:"FACEBOOK_DIALOG_URL,default=https://www.facebook.com/v19.0/dialog/oauth"`
}

type Instagram struct {
	GraphURL string `env:"INSTAGRAM_GRAPH_URL,default=https://graph.facebook.com/v19.0"`
}

type Tiktok struct {
	ClientKey    string `env:"TIKTOK_CLIENT_KEY"`
	ClientSecret string `env:"TIKTOK_CLIENT_SECRET"`
	RedirectURI  string `env:"TIKTOK_REDIRECT_URI"`
	APIURL       string `env:"TIKTOK_API_URL,default=https://open.tiktokapis.com"`
	AuthURL      string `env:"TIKTOK_AUTH_URL,default=https://www.tiktok.com/v2/auth/authorize/"`
}

type Google struct {
	ClientID     string `env:"GOOGLE_CLIENT_ID"`
	ClientSecret string `env:"GOOGLE_CLIENT_SECRET"`
	RedirectURI  string `env:"GOOGLE_REDIRECT_URI"`
	AuthURL      string `env:"GOOGLE_AUTH_URL,default=https://accounts.google.com/o/oauth2/auth"`
	TokenURL     string `env:"GOOGLE_TOKEN_URL,default=https://oauth2.googleapis.com/token"`
	// YoutubeURL replaces the YouTube Data API base path when set.
	YoutubeURL string `env:"YOUTUBE_API_URL"`
}

type Jobs struct {
	DueSchedule     string        `env:"JOBS_DUE_SCHEDULE,default=@every 1m"`
	DueBatch        int           `env:"JOBS_DUE_BATCH,default=100"`
	RefreshSchedule string        `env:"JOBS_REFRESH_SCHEDULE,default=@every 10m"`
	RefreshWindow   time.Duration `env:"JOBS_REFRESH_WINDOW,default=30m"`
	Concurrency     int           `env:"WORKER_CONCURRENCY,default=10"`
}

type Config struct {
	Port          string        `env:"PORT,default=3000"`
	PostgresURI   string        `env:"POSTGRES_URI"`
	RedisURI      string        `env:"REDIS_URI,default=localhost:6379"`
	FrontendURL   string        `env:"FRONTEND_URL,default=http://localhost:5173"`
	SecretKey     string        `env:"SECRET_KEY"`
	CookieName    string        `env:"COOKIE_NAME,default=crosspost_session"`
	OAuthStateTTL time.Duration `env:"OAUTH_STATE_TTL,default=600s"`

	HTTP      HTTPClient
	Storage   Storage
	Facebook  Facebook
	Instagram Instagram
	Tiktok    Tiktok
	Google    Google
	Jobs      Jobs
}

func LoadConfig(ctx context.Context) (*Config, error) {
	return load(ctx, envconfig.OsLookuper())
}

func load(ctx context.Context, l envconfig.Lookuper) (*Config, error) {
	cfg := &Config{}
	if err := envconfig.ProcessWith(ctx, cfg, l); err != nil {
		return nil, fmt.Errorf("parsing env vars: %w", err)
	}

	switch cfg.Storage.Backend {
	case "local", "r2":
	default:
		return nil, fmt.Errorf("unknown STORAGE_BACKEND %q", cfg.Storage.Backend)
	}
	if cfg.HTTP.MaxAttempts < 1 {
		return nil, fmt.Errorf("HTTP_MAX_ATTEMPTS must be at least 1")
	}
	return cfg, nil
}
