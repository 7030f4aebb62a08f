package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/amoylab/oauthprobe/internal/apiserver"
	"github.com/amoylab/oauthprobe/internal/auth/jwt"
	"github.com/amoylab/oauthprobe/internal/common/cnst"
	"github.com/amoylab/oauthprobe/internal/common/config"
	"github.com/amoylab/oauthprobe/internal/correlator"
	"github.com/amoylab/oauthprobe/internal/database"
	"github.com/amoylab/oauthprobe/internal/i18n"
	"github.com/amoylab/oauthprobe/pkg/helper"
	"github.com/amoylab/oauthprobe/pkg/logger"
	"github.com/amoylab/oauthprobe/pkg/trace"
	"github.com/amoylab/oauthprobe/pkg/version"
)

var (
	configPath string
	pidFile    string

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of oauthprobe",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version %s\n", cnst.CommandName, version.Get())
		},
	}

	testCmd = &cobra.Command{
		Use:   "test",
		Short: "Check the configuration file and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, err := config.LoadConfig(configPath)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			if err := checkConfig(cfg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "configuration file %s is valid\n", path)
			return nil
		},
	}

	hashPasswordCmd = &cobra.Command{
		Use:   "hash-password <password>",
		Short: "Print the bcrypt hash of a password for session.password_hash",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := bcrypt.GenerateFromPassword([]byte(args[0]), bcrypt.DefaultCost)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(hash))
			return nil
		},
	}

	stopCmd = &cobra.Command{
		Use:   "stop",
		Short: "Send SIGTERM to the running server recorded in the PID file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := pidFile
			if path == "" {
				cfg, _, err := config.LoadConfig(configPath)
				if err != nil {
					return fmt.Errorf("failed to load configuration: %w", err)
				}
				path = cfg.Server.PID
			}
			if path == "" {
				return errors.New("no PID file configured, pass --pid or set server.pid")
			}
			path = helper.GetPIDPath(path)
			if err := helper.SignalPIDFile(path, syscall.SIGTERM); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "sent SIGTERM to process in %s\n", path)
			return nil
		},
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the OAuth2 client test harness",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run()
		},
	}

	rootCmd = &cobra.Command{
		Use:   cnst.CommandName,
		Short: "OAuth2 client test harness",
		Long:  `oauthprobe drives authorization code flows and dynamic client registration against an OAuth2 authorization server and calls protected resources with the tokens it obtains`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run()
		},
		SilenceUsage: true,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "conf", "c", cnst.AppName+".yaml", "path to configuration file")
	rootCmd.PersistentFlags().StringVar(&pidFile, "pid", "", "path to PID file")
	rootCmd.AddCommand(versionCmd, testCmd, hashPasswordCmd, stopCmd, serveCmd)
}

// checkConfig fails on settings that would only surface at startup
func checkConfig(cfg *config.Config) error {
	if _, err := jwt.NewService(jwt.Config{SecretKey: cfg.Session.SecretKey, Duration: cfg.Session.Duration}); err != nil {
		return fmt.Errorf("invalid session configuration: %w", err)
	}
	if cfg.Session.Username == "" || (cfg.Session.Password == "" && cfg.Session.PasswordHash == "") {
		return errors.New("session.username and a password or password_hash are required")
	}
	switch cfg.Correlator.Type {
	case "memory", "redis":
	default:
		return fmt.Errorf("unsupported correlator type: %s", cfg.Correlator.Type)
	}
	switch cfg.Database.Type {
	case "sqlite", "mysql", "postgres":
	default:
		return fmt.Errorf("unsupported database type: %s", cfg.Database.Type)
	}
	return nil
}

func run() error {
	cfg, cfgPath, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := checkConfig(cfg); err != nil {
		return err
	}

	lg, err := logger.NewLogger(&cfg.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = lg.Sync() }()

	lg.Info("starting oauthprobe",
		zap.String("version", version.Get()),
		zap.String("config", cfgPath))

	if err := i18n.InitTranslator(cfg.I18n.Path); err != nil {
		return fmt.Errorf("failed to load translations: %w", err)
	}
	i18n.SetDefaultLanguage(cfg.I18n.DefaultLang)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := trace.InitTracing(ctx, &cfg.Tracing, lg)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			lg.Warn("failed to shutdown tracing", zap.Error(err))
		}
	}()

	db, err := database.NewDatabase(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	pending, err := correlator.NewStore(lg, &cfg.Correlator)
	if err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to initialize correlator: %w", err)
	}

	srv, err := apiserver.New(cfg, lg, db, pending)
	if err != nil {
		_ = pending.Close()
		_ = db.Close()
		return err
	}

	pidPath := pidFile
	if pidPath == "" {
		pidPath = cfg.Server.PID
	}
	if pidPath != "" {
		pidPath = helper.GetPIDPath(pidPath)
		if err := helper.WritePID(pidPath); err != nil {
			lg.Warn("failed to write PID file", zap.String("path", pidPath), zap.Error(err))
		} else {
			defer func() { _ = helper.RemovePID(pidPath) }()
		}
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			lg.Error("server stopped", zap.Error(err))
		}
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(sctx)
		return err
	case <-ctx.Done():
	}

	lg.Info("shutting down server")
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		lg.Error("failed to shutdown server", zap.Error(err))
		return err
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
