package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"Hollowmere/commands"
	"Hollowmere/internal/config"
	"Hollowmere/internal/coordinator"
	"Hollowmere/internal/game"
	"Hollowmere/internal/logger"
	"Hollowmere/internal/server"
	"Hollowmere/internal/worker"
)

func main() {
	configPath := flag.String("config", "", "Optional YAML configuration file")
	accountsPath := flag.String("accounts", "", "Path to the account database (default "+game.DefaultAccountsPath+")")
	worldPath := flag.String("world", "", "Path to the world file (default "+game.DefaultWorldPath+")")
	redisAddr := flag.String("redis", "", "Keep accounts in Redis at this address instead of a file")
	logLevel := flag.String("log-level", "", "Log level: debug, info, warn or error")
	pretty := flag.Bool("pretty", false, "Human readable console logs")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] [port]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
		cfg = loaded
	}
	if *accountsPath != "" {
		cfg.Accounts = *accountsPath
	}
	if *worldPath != "" {
		cfg.World = *worldPath
	}
	if *redisAddr != "" {
		cfg.Redis.Addr = *redisAddr
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if *pretty {
		cfg.LogPretty = true
	}
	if flag.NArg() > 1 {
		flag.Usage()
		os.Exit(2)
	}
	if flag.NArg() == 1 {
		port, err := strconv.Atoi(flag.Arg(0))
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid port %q\n", flag.Arg(0))
			os.Exit(2)
		}
		cfg.Port = port
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	log, err := logger.New(os.Stderr, cfg.LogLevel, cfg.LogPretty)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func run(ctx context.Context, cfg config.Config, log zerolog.Logger) error {
	charset, err := game.ParseCharset(cfg.Charset)
	if err != nil {
		return err
	}

	store, closeStore := openStore(cfg, log)
	defer closeStore()

	accounts, err := game.OpenAccounts(ctx, store)
	if errors.Is(err, game.ErrNoAccounts) {
		name, berr := bootstrapAdmin(ctx, accounts, newTerminalPrompter())
		if berr != nil {
			return berr
		}
		log.Info().Str("user", name).Msg("administrator account created")
	} else if err != nil {
		return fmt.Errorf("open accounts: %w", err)
	}

	world, err := game.LoadWorld(cfg.World)
	if err != nil {
		return err
	}

	coord := coordinator.New(log, world, accounts, coordinator.Options{
		MailboxSize:     cfg.Mailbox,
		WaitTimeout:     cfg.WaitTimeout,
		ShutdownMessage: cfg.ShutdownMessage,
	})
	srv := server.New(coord, commands.Dispatch, server.Options{
		Charset:      charset,
		Lockout:      cfg.Lockout,
		WriteTimeout: cfg.WriteTimeout,
		DrainTimeout: cfg.DrainTimeout,
		Worker: worker.Options{
			MaxAttempts: cfg.MaxAttempts,
			AuthDelay:   cfg.AuthDelay,
			RateLimit:   cfg.RateLimit,
		},
		Logger: log,
	})

	ln, err := net.Listen("tcp", cfg.Addr())
	if err != nil {
		return err
	}
	err = srv.Serve(ctx, ln)
	log.Info().Msg("shut down")
	return err
}

func openStore(cfg config.Config, log zerolog.Logger) (game.AccountStore, func()) {
	if cfg.Redis.Addr == "" {
		return game.NewFileAccountStore(cfg.Accounts), func() {}
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	log.Info().Str("addr", cfg.Redis.Addr).Str("key", cfg.Redis.Key).Msg("accounts in redis")
	return game.NewRedisAccountStore(client, cfg.Redis.Key), func() {
		if err := client.Close(); err != nil {
			log.Warn().Err(err).Msg("closing redis client")
		}
	}
}
