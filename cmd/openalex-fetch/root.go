package main

import (
	"context"
	"errors"
	"os"

	"github.com/pterm/pterm"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/scholarly-go/openalex-client/pkg/client"
	"github.com/scholarly-go/openalex-client/pkg/config"
	"github.com/scholarly-go/openalex-client/pkg/logging"
)

var (
	flagEmail      string
	flagAPIKey     string
	flagUserAgent  string
	flagPerPage    int
	flagMaxResults int
	flagPageMode   bool
	flagRedisAddr  string
	flagLogLevel   string
	flagLogPretty  bool
)

var rootCmd = &cobra.Command{
	Use:          "openalex-fetch",
	Short:        "Query the OpenAlex API with rate limiting, retries, and batching",
	SilenceUsage: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagEmail, "email", "", "contact email for the polite pool")
	pf.StringVar(&flagAPIKey, "api-key", "", "OpenAlex API key")
	pf.StringVar(&flagUserAgent, "user-agent", "", "User-Agent header")
	pf.IntVar(&flagPerPage, "per-page", 0, "results per page (1..200)")
	pf.IntVar(&flagMaxResults, "max-results", 0, "cap on total results (0 = unlimited)")
	pf.BoolVar(&flagPageMode, "page-mode", false, "use page numbers instead of cursors")
	pf.StringVar(&flagRedisAddr, "redis", "", "Redis address for response caching")
	pf.StringVar(&flagLogLevel, "log-level", "", "log level (debug, info, warn, error)")
	pf.BoolVar(&flagLogPretty, "pretty-logs", false, "human-readable log output")

	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(batchCmd)
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		reportError(err)
		os.Exit(1)
	}
}

// loadConfig merges environment configuration with command-line overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("email") {
		cfg.Email = flagEmail
	}
	if flags.Changed("api-key") {
		cfg.APIKey = flagAPIKey
	}
	if flags.Changed("user-agent") {
		cfg.UserAgent = flagUserAgent
	}
	if flags.Changed("per-page") {
		cfg.DefaultPerPage = flagPerPage
	}
	if flags.Changed("redis") {
		cfg.RedisAddr = flagRedisAddr
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = flagLogLevel
	}
	if flags.Changed("pretty-logs") {
		cfg.LogPretty = flagLogPretty
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logging.Setup(logging.Config{
		Level:  logging.LogLevel(cfg.LogLevel),
		Pretty: cfg.LogPretty,
		Output: os.Stderr,
	})
	return cfg, nil
}

// newClient builds the HTTP client, wiring the Redis cache when configured.
func newClient(ctx context.Context, cfg *config.Config) (*client.Client, error) {
	cc := cfg.ClientConfig()

	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			pterm.Warning.Printfln("Redis unreachable at %s, caching disabled: %v", cfg.RedisAddr, err)
		} else {
			cc.Redis = redisClient
		}
	}

	return client.New(cc)
}

// reportError maps error kinds to actionable messages.
func reportError(err error) {
	var apiErr *client.APIError
	if !errors.As(err, &apiErr) {
		pterm.Error.Println(err)
		return
	}

	switch apiErr.Kind {
	case client.KindMalformedQuery:
		pterm.Error.Printfln("Invalid query: %s", apiErr.Message)
		pterm.Info.Println("Check filter names and values against the OpenAlex documentation.")
	case client.KindRateLimited:
		pterm.Error.Println("Rate limit exceeded and retries exhausted.")
		pterm.Info.Println("Reduce OPENALEX_REQUESTS_PER_SECOND or add an API key.")
	case client.KindNetworkError:
		pterm.Error.Printfln("Network error: %v", err)
		pterm.Info.Println("Check connectivity to api.openalex.org.")
	case client.KindServerError:
		pterm.Error.Printfln("OpenAlex server error persisted through retries: %v", err)
	default:
		pterm.Error.Println(err)
	}
}
