package cli

import (
	"context"
	"log/slog"

	"github.com/joho/godotenv"
	"golang.org/x/oauth2"

	"github.com/mdale/monzo-lunchmoney-sync/internal/config"
	"github.com/mdale/monzo-lunchmoney-sync/internal/lunchmoney"
	"github.com/mdale/monzo-lunchmoney-sync/internal/monzo"
	"github.com/mdale/monzo-lunchmoney-sync/internal/observability"
)

// Setup loads configuration and builds the logger. A .env file in the
// working directory is applied first so local development does not need
// exported variables.
func Setup(configFile string, verbose bool) (*config.Config, *slog.Logger, error) {
	_ = godotenv.Load()

	var cfg *config.Config
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, nil, err
		}
		cfg = loaded
	} else {
		cfg = config.LoadOrEnv()
	}

	loggingCfg := cfg.Observability.Logging
	if verbose {
		loggingCfg.Level = "debug"
	}
	logger := observability.NewLogger(loggingCfg)

	// Validation is left to the caller: the API server and interest sync
	// need far less configuration than a full transaction sync.
	return cfg, logger, nil
}

// NewMonzoClient builds the Monzo API client with a file-backed token
// source, so refreshed tokens survive across invocations.
func NewMonzoClient(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*monzo.Client, error) {
	oauthCfg := &oauth2.Config{
		ClientID:     cfg.Monzo.ClientID,
		ClientSecret: cfg.Monzo.ClientSecret,
		Endpoint:     monzo.OAuthEndpoint,
	}
	tokens, err := monzo.NewFileTokenSource(ctx, oauthCfg, cfg.Monzo.TokenFile)
	if err != nil {
		return nil, err
	}
	return monzo.NewClient(tokens, logger), nil
}

// NewLedgerClient builds the Lunch Money API client.
func NewLedgerClient(cfg *config.Config, logger *slog.Logger) *lunchmoney.Client {
	return lunchmoney.NewClient(cfg.LunchMoney.AccessToken, logger)
}
