package authsync

import (
	"time"

	"github.com/caarlos0/env/v11"
	goerrors "github.com/goliatone/go-errors"
	"github.com/joho/godotenv"
)

// Config carries the knobs for the orchestrator, editor and route guard.
// Values come from the environment; an optional .env file is honored.
type Config struct {
	BackendURL   string `env:"AUTHSYNC_BACKEND_URL"`
	AnonKey      string `env:"AUTHSYNC_ANON_KEY"`
	ProfileTable string `env:"AUTHSYNC_PROFILE_TABLE" envDefault:"profiles"`

	InitTimeout   time.Duration `env:"AUTHSYNC_INIT_TIMEOUT" envDefault:"5s"`
	SignUpTimeout time.Duration `env:"AUTHSYNC_SIGNUP_TIMEOUT" envDefault:"15s"`
	SaveTimeout   time.Duration `env:"AUTHSYNC_SAVE_TIMEOUT" envDefault:"30s"`

	SignInPath           string `env:"AUTHSYNC_SIGNIN_PATH" envDefault:"/auth"`
	RejectedRouteKey     string `env:"AUTHSYNC_REJECTED_ROUTE_KEY" envDefault:"authsync_rejected_route"`
	RejectedRouteDefault string `env:"AUTHSYNC_REJECTED_ROUTE_DEFAULT" envDefault:"/dashboard"`
}

var _ GuardConfig = Config{}

// LoadConfig reads configuration from the environment.
func LoadConfig() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{}
	if err := env.Parse(&cfg); err != nil {
		return cfg, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to parse environment configuration")
	}
	return cfg, nil
}

func (c Config) GetSignInPath() string {
	return c.SignInPath
}

func (c Config) GetRejectedRouteKey() string {
	return c.RejectedRouteKey
}

func (c Config) GetRejectedRouteDefault() string {
	return c.RejectedRouteDefault
}

// OrchestratorOptions renders the configured timeouts as options.
func (c Config) OrchestratorOptions() []Option {
	return []Option{
		WithInitTimeout(c.InitTimeout),
		WithSignUpTimeout(c.SignUpTimeout),
	}
}

// EditorOptions renders the configured save ceiling as options.
func (c Config) EditorOptions() []EditorOption {
	return []EditorOption{
		WithSaveTimeout(c.SaveTimeout),
	}
}
