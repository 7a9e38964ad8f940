package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/gosiva/archive-ui/internal/api"
	"github.com/gosiva/archive-ui/internal/config"
	"github.com/gosiva/archive-ui/internal/format"
	"github.com/gosiva/archive-ui/internal/logging"
	"github.com/gosiva/archive-ui/internal/scanner"
	"github.com/gosiva/archive-ui/internal/storage"
	"github.com/gosiva/archive-ui/internal/watch"
)

const releaseVersion = "1.0.0"

func main() {
	cmd, err := newCmd()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// flagKeys maps command-line flags to config keys.
var flagKeys = map[string]string{
	"host":         "server.host",
	"port":         "server.port",
	"storage-type": "storage.type",
	"storage-path": "storage.filesystem.path",
	"db-path":      "storage.database.path",
	"timezone":     "display.timezone",
	"log-level":    "log.level",
	"dev":          "log.dev",
}

// bindFlags binds every flag in flagKeys to its config key.
func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for flag, key := range flagKeys {
		if err := v.BindPFlag(key, fs.Lookup(flag)); err != nil {
			return errors.Wrapf(err, "bind flag --%s", flag)
		}
	}
	return nil
}

func newCmd() (*cobra.Command, error) {
	v := viper.New()
	var configPath string

	cmd := &cobra.Command{
		Use:     "archive-ui",
		Short:   "Browse archived snapshots of websites.",
		Args:    cobra.ExactArgs(0),
		Version: releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v, configPath)
			if err != nil {
				return err
			}
			log, err := logging.NewLogger(cfg.Log.Level, cfg.Log.Dev)
			if err != nil {
				return err
			}
			defer log.Sync()
			return run(cfg, log)
		},
	}

	fs := cmd.Flags()
	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&configPath, "config", "c", "", "path to YAML config (default "+config.DefaultConfigPath+")")
	fs.StringP("host", "b", "127.0.0.1", "address to bind to (env: CIVERS_SERVER_HOST, HOST)")
	fs.IntP("port", "p", 8000, "port to listen on (env: CIVERS_SERVER_PORT, PORT)")
	fs.String("storage-type", config.StorageFilesystem, "storage provider: filesystem or database (env: CIVERS_STORAGE_TYPE)")
	fs.String("storage-path", "archives", "archive root directory (env: CIVERS_FILESYSTEM_PATH)")
	fs.String("db-path", "data/archive-ui.db", "SQLite index and user database (env: CIVERS_DATABASE_PATH, DB_PATH)")
	fs.String("timezone", "UTC", "timezone for displayed dates (env: CIVERS_DISPLAY_TIMEZONE)")
	fs.String("log-level", "info", "log level (env: CIVERS_LOG_LEVEL, LOG_LEVEL)")
	fs.Bool("dev", false, "human-readable development logging (env: CIVERS_LOG_DEV)")

	if err := bindFlags(v, fs); err != nil {
		return nil, err
	}

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("archive-ui v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd, nil
}

func run(cfg *config.Config, log *zap.Logger) error {
	log.Info("Starting archive-ui server...",
		zap.String("storage", cfg.Storage.Type),
		zap.String("path", cfg.Storage.Filesystem.Path))

	loc, err := cfg.Display.Location()
	if err != nil {
		return err
	}

	// Initialize database
	db, err := storage.New(cfg.Storage.Database.Path, log)
	if err != nil {
		return errors.Wrap(err, "failed to initialize database")
	}
	defer db.Close()

	// Initialize admin user if needed
	if err := initAdminUser(db, cfg.Admin, log); err != nil {
		return errors.Wrap(err, "failed to initialize admin user")
	}

	provider, err := storage.NewProvider(cfg.Storage, db, log)
	if err != nil {
		return err
	}
	svc := storage.NewService(provider, cfg.Storage.Cache.TTL(), log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Storage.Watch && cfg.Storage.Type == config.StorageFilesystem {
		w, err := watch.New(cfg.Storage.Filesystem.Path, watch.DefaultDebounce, svc.ClearCache, log)
		if err != nil {
			log.Warn("Archive watcher disabled", zap.Error(err))
		} else {
			go w.Run(ctx)
		}
	}

	notifier := format.NewNotifier(log.Named("toast"))
	var lifecycle format.Lifecycle
	lifecycle.OnReady(format.ReadyHook(log))

	// Initialize router
	router, err := api.Router(api.Deps{
		Service:   svc,
		DB:        db,
		Describer: scanner.New(cfg.Storage.Filesystem.Path, cfg.Storage.Filesystem.Timeout(), log),
		Dates:     format.NewDateFormatter(loc),
		Notifier:  notifier,
		Admin:     cfg.Admin,
		Version:   releaseVersion,
		Log:       log,
	})
	if err != nil {
		return errors.Wrap(err, "failed to initialize router")
	}

	addr := net.JoinHostPort(cfg.Server.Host, fmt.Sprint(cfg.Server.Port))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrapf(err, "listen on %s", addr)
	}

	server := &http.Server{
		Handler:     router,
		ReadTimeout: 30 * time.Second,
		// WriteTimeout stays 0 so large WARC/WACZ downloads are not cut off.
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	// Hooks run once pages and routes are built, before any request is served.
	lifecycle.OnReady(func() {
		notifier.Info("Archive UI ready on http://" + addr)
	})
	lifecycle.Ready()

	serveErr := make(chan error, 1)
	go func() {
		log.Info("Server listening", zap.String("addr", addr))
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
		close(serveErr)
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err, ok := <-serveErr:
		if ok {
			return errors.Wrap(err, "server failed")
		}
	}

	log.Info("Shutting down server...")
	cancel()

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server stopped")
	return nil
}

func initAdminUser(db *storage.DB, admin config.AdminConfig, log *zap.Logger) error {
	if !admin.Enabled() {
		log.Warn("Admin credentials not provided, admin routes are disabled")
		return nil
	}

	// Check if user already exists
	exists, err := db.UserExists(admin.User)
	if err != nil {
		return errors.Wrap(err, "failed to check if user exists")
	}

	if exists {
		log.Info("Admin user already exists", zap.String("user", admin.User))
		return nil
	}

	// Create admin user
	if err := db.CreateUser(admin.User, admin.Password, admin.TOTPSecret); err != nil {
		return errors.Wrap(err, "failed to create admin user")
	}

	log.Info("Admin user created successfully", zap.String("user", admin.User))
	return nil
}
