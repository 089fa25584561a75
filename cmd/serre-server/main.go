package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"serreclub/internal/club"
	"serreclub/internal/server"
	"serreclub/internal/shared"
	"serreclub/internal/storage"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		addr       string
		store      string
		dbPath     string
		dataFile   string
		staticDir  string
		logLevel   string
	)

	cmd := &cobra.Command{
		Use:          "serre-server",
		Short:        "HTTP API of the association: members, population, annonces and the serre",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := shared.LoadServerConfig(configPath)
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			flags := cmd.Flags()
			if flags.Changed("addr") {
				cfg.Addr = addr
			}
			if flags.Changed("store") {
				cfg.Store = store
			}
			if flags.Changed("db") {
				cfg.DBPath = dbPath
			}
			if flags.Changed("data-file") {
				cfg.DataFile = dataFile
			}
			if flags.Changed("static") {
				cfg.StaticDir = staticDir
			}
			if flags.Changed("log-level") {
				cfg.LogLevel = logLevel
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("config: %w", err)
			}
			return run(cfg)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&configPath, "config", "c", os.Getenv("SERRE_CONFIG"), "JSON config file")
	f.StringVar(&addr, "addr", "", "listen address (overrides SERRE_ADDR)")
	f.StringVar(&store, "store", "", "store kind: sqlite, postgres or file")
	f.StringVar(&dbPath, "db", "", "SQLite database path")
	f.StringVar(&dataFile, "data-file", "", "JSON document for the file store")
	f.StringVar(&staticDir, "static", "", "directory served as the front-end")
	f.StringVar(&logLevel, "log-level", "", "logrus level")
	return cmd
}

func run(cfg *shared.ServerConfig) error {
	log, err := shared.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := storage.Open(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			log.WithError(err).Warn("close store")
		}
	}()

	if cfg.UsesDefaultAdmin() {
		log.Warn("built-in admin still uses the default password, set SERRE_ADMIN_PASS")
	}

	svc := club.NewService(st, club.Credentials{Login: cfg.AdminLogin, Password: cfg.AdminPass}, log)
	api := &server.API{
		Service:   svc,
		Log:       log,
		Prefix:    cfg.APIPrefix,
		StaticDir: cfg.StaticDir,
		StoreKind: cfg.Store,
	}
	srv := server.NewHTTPServer(cfg.Addr, api.Routes())

	errc := make(chan error, 1)
	go func() {
		log.WithFields(logrus.Fields{"addr": cfg.Addr, "store": cfg.Store, "prefix": cfg.APIPrefix}).Info("serre-server listening")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
