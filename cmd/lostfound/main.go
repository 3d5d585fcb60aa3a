package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/erazemk/lostfound/internal/api"
	"github.com/erazemk/lostfound/internal/auth"
	"github.com/erazemk/lostfound/internal/catalog"
	"github.com/erazemk/lostfound/internal/claims"
	"github.com/erazemk/lostfound/internal/config"
	"github.com/erazemk/lostfound/internal/janitor"
	"github.com/erazemk/lostfound/internal/notify"
)

func main() {
	args := os.Args[1:]
	cmd := "serve"
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		cmd, args = args[0], args[1:]
	}

	var err error
	switch cmd {
	case "serve":
		err = cmdServe(args)
	case "sweep":
		err = cmdSweep(args)
	case "hash-password":
		err = cmdHashPassword(args)
	case "token":
		err = cmdToken(args)
	default:
		err = fmt.Errorf("unknown command: %s (want serve, sweep, hash-password or token)", cmd)
	}

	if errors.Is(err, config.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func cmdServe(args []string) error {
	cfg, err := config.Load(args, os.Stdout)
	if err != nil {
		return err
	}

	closeLog, err := setupLogger(cfg.LogPath, slog.LevelInfo)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	s, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	cat, err := catalog.New(s, cfg.MatchCacheTTL)
	if err != nil {
		return fmt.Errorf("creating catalog: %w", err)
	}
	jan := janitor.New(s)
	resolver := &auth.Resolver{Secret: cfg.TokenSecret, DemoEnabled: cfg.DemoEnabled}
	if cfg.TokenSecret == "" {
		slog.Warn("token signatures are not verified; run behind a gateway that verifies them")
	}
	if cfg.OperatorToken == "" {
		slog.Info("operator endpoints disabled (no operator token)")
	}

	router := api.NewRouter(api.Deps{
		Store:         s,
		Catalog:       cat,
		Claims:        claims.New(s),
		Notify:        &notify.Service{Store: s},
		Janitor:       jan,
		Resolver:      resolver,
		Demo:          auth.Demo{User: cfg.DemoUser, PasswordHash: cfg.DemoPasswordHash},
		OperatorToken: cfg.OperatorToken,
		Retention:     cfg.Retention,
		SecureCookies: cfg.SecureCookies,
	})

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.LoggingMiddleware(router),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		jan.Run(gctx, cfg.CleanupInterval, cfg.Retention)
		return nil
	})
	g.Go(func() error {
		slog.Info("server started", "addr", cfg.Addr, "retention", cfg.Retention, "cleanup_interval", cfg.CleanupInterval)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server forced to shutdown", "error", err)
		}
		return nil
	})

	err = g.Wait()
	slog.Info("server stopped, closing database")
	return err
}

// cmdSweep runs one cleanup pass, for use from cron when the server's own
// janitor is not wanted.
func cmdSweep(args []string) error {
	cfg, err := config.Load(args, os.Stdout)
	if err != nil {
		return err
	}
	closeLog, err := setupLogger(cfg.LogPath, slog.LevelInfo)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx := context.Background()
	s, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	res, err := janitor.New(s).Sweep(ctx, cfg.Retention)
	if err != nil {
		return fmt.Errorf("sweep: %w", err)
	}
	fmt.Printf("Deleted %d items and %d claims (cutoff %s, %d failed)\n",
		res.DeletedItems, res.DeletedClaims, res.Cutoff.Format(time.RFC3339), res.Failed)
	return nil
}

// cmdHashPassword prints a bcrypt hash for DEMO_PASSWORD_HASH. The password
// is read from the first argument or, if absent, from stdin.
func cmdHashPassword(args []string) error {
	var password string
	if len(args) > 0 {
		password = args[0]
	} else {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("reading password: %w", err)
		}
		password = strings.TrimRight(line, "\r\n")
	}
	if password == "" {
		return errors.New("password required")
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	fmt.Println(hash)
	return nil
}

// cmdToken prints a signed token for local testing against a server that
// verifies signatures.
func cmdToken(args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return errors.New("usage: lostfound token <user-id> [email]")
	}
	cfg, err := config.Load(nil, os.Stdout)
	if err != nil {
		return err
	}
	if cfg.TokenSecret == "" {
		return errors.New("LOSTFOUND_TOKEN_SECRET is not set")
	}

	email := ""
	if len(args) == 2 {
		email = args[1]
	}
	token, err := auth.GenerateToken(cfg.TokenSecret, args[0], email, auth.TokenExpiry)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}
