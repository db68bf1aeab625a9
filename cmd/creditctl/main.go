// Command creditctl performs operator tasks against the service database:
// storing provider API keys, granting credits and minting dev tokens.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"promoreel/internal/credits"
	"promoreel/internal/infra"
	"promoreel/internal/infra/credentials"
	"promoreel/internal/middleware"
)

const usage = `usage: creditctl <command> [flags]

commands:
  set-key   store a provider API key (-provider gemini|openai -key ...);
            the api server reads keys at startup, so restart it afterwards
  grant     add credits to a user (-user ID -amount N)
  balance   print a user's credits (-user ID)
  token     mint a bearer token for a user (-user ID -ttl 24h)`

func main() {
	_ = godotenv.Load()
	if err := run(context.Background(), os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errors.New(usage)
	}
	switch args[0] {
	case "set-key":
		return setKey(ctx, args[1:], out)
	case "grant":
		return grant(ctx, args[1:], out)
	case "balance":
		return balance(ctx, args[1:], out)
	case "token":
		return token(args[1:], out)
	default:
		return fmt.Errorf("unknown command %q\n%s", args[0], usage)
	}
}

func setKey(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("set-key", flag.ContinueOnError)
	providerFlag := fs.String("provider", credentials.ProviderGemini, "provider to configure (gemini or openai)")
	keyFlag := fs.String("key", "", "API key; falls back to GEMINI_API_KEY or OPENAI_API_KEY")
	if err := fs.Parse(args); err != nil {
		return err
	}

	provider := strings.ToLower(strings.TrimSpace(*providerFlag))
	envKey := "GEMINI_API_KEY"
	switch provider {
	case credentials.ProviderGemini:
	case credentials.ProviderOpenAI:
		envKey = "OPENAI_API_KEY"
	default:
		return fmt.Errorf("unsupported provider %q", *providerFlag)
	}
	key := strings.TrimSpace(*keyFlag)
	if key == "" {
		key = strings.TrimSpace(os.Getenv(envKey))
	}
	if key == "" {
		return fmt.Errorf("%s API key is required via -key or %s", strings.ToUpper(provider), envKey)
	}

	runner, closeDB, err := openRunner(ctx, "set-key")
	if err != nil {
		return err
	}
	defer closeDB()

	execCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := credentials.NewStore(runner).Set(execCtx, provider, key); err != nil {
		return fmt.Errorf("store %s api key: %w", provider, err)
	}
	fmt.Fprintf(out, "%s API key stored; restart the api server to use it\n", strings.ToUpper(provider))
	return nil
}

func grant(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("grant", flag.ContinueOnError)
	userFlag := fs.String("user", "", "user ID")
	amountFlag := fs.Int64("amount", 0, "credits to add")
	if err := fs.Parse(args); err != nil {
		return err
	}
	userID := strings.TrimSpace(*userFlag)
	if userID == "" {
		return errors.New("-user is required")
	}
	if *amountFlag <= 0 {
		return errors.New("-amount must be positive")
	}

	runner, closeDB, err := openRunner(ctx, "grant")
	if err != nil {
		return err
	}
	defer closeDB()

	execCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	remaining, err := credits.NewLedger(runner).Grant(execCtx, userID, *amountFlag)
	if err != nil {
		return fmt.Errorf("grant credits: %w", err)
	}
	fmt.Fprintf(out, "user %s now has %d credits\n", userID, remaining)
	return nil
}

func balance(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("balance", flag.ContinueOnError)
	userFlag := fs.String("user", "", "user ID")
	if err := fs.Parse(args); err != nil {
		return err
	}
	userID := strings.TrimSpace(*userFlag)
	if userID == "" {
		return errors.New("-user is required")
	}

	runner, closeDB, err := openRunner(ctx, "balance")
	if err != nil {
		return err
	}
	defer closeDB()

	execCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	amount, err := credits.NewLedger(runner).Balance(execCtx, userID)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%d\n", amount)
	return nil
}

func token(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	userFlag := fs.String("user", "", "user ID placed in the sub claim")
	localeFlag := fs.String("locale", "", "optional locale claim (en or id)")
	ttlFlag := fs.Duration("ttl", 24*time.Hour, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *ttlFlag <= 0 {
		return errors.New("-ttl must be positive")
	}
	secret := os.Getenv("JWT_SECRET")
	if strings.TrimSpace(secret) == "" {
		return errors.New("JWT_SECRET is required")
	}
	signed, err := middleware.SignJWT(secret, strings.TrimSpace(*userFlag), *localeFlag, *ttlFlag)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, signed)
	return nil
}

func openRunner(ctx context.Context, cmd string) (*infra.SQLRunner, func(), error) {
	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		return nil, nil, errors.New("DATABASE_URL is required")
	}
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	pool, err := pgxpool.New(connectCtx, dbURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect database: %w", err)
	}
	logger := infra.NewLogger("cli").With().Str("cmd", "creditctl").Str("subcommand", cmd).Logger()
	return infra.NewSQLRunner(pool, logger), pool.Close, nil
}
