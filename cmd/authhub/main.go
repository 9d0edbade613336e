package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ecole-connect/authhub/internal/apiserver"
	"github.com/ecole-connect/authhub/internal/common/config"
	"github.com/ecole-connect/authhub/internal/oauth"
	"github.com/ecole-connect/authhub/internal/session"
	"github.com/ecole-connect/authhub/internal/storage"
	"github.com/ecole-connect/authhub/pkg/logger"
	"github.com/ecole-connect/authhub/pkg/trace"
	"github.com/ecole-connect/authhub/pkg/version"
)

var (
	configPath string

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of authhub",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("authhub version %s\n", version.Get())
		},
	}

	rootCmd = &cobra.Command{
		Use:   "authhub",
		Short: "OAuth2 authorization server with delegated sign-in",
		Run: func(cmd *cobra.Command, args []string) {
			run()
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "conf", "authhub.yaml", "path to configuration file")
	rootCmd.AddCommand(versionCmd)
}

func run() {
	cfg, cfgPath, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("failed to load configuration from %s: %v", cfgPath, err)
	}

	lg, err := logger.NewLogger(&cfg.Logger)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer func() {
		_ = lg.Sync()
	}()

	lg.Info("starting authhub",
		zap.String("version", version.Get()),
		zap.String("config", cfgPath))

	ctx := context.Background()

	if cfg.Tracing.Enabled {
		shutdown, err := trace.InitTracing(ctx, &cfg.Tracing, lg)
		if err != nil {
			lg.Fatal("failed to initialize tracing", zap.Error(err))
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				lg.Error("failed to shut down tracing", zap.Error(err))
			}
		}()
	}

	// The store is created exactly once here and handed to every component
	// that needs it.
	store, err := storage.NewStore(lg, &cfg.Storage)
	if err != nil {
		lg.Fatal("failed to initialize store",
			zap.String("type", cfg.Storage.Type),
			zap.Error(err))
	}
	defer func() {
		if err := store.Close(); err != nil {
			lg.Error("failed to close store", zap.Error(err))
		}
	}()

	provider := session.NewProvider(lg, cfg.Session.Provider)
	engine, err := session.NewEngine(lg, store, provider, cfg.Session)
	if err != nil {
		lg.Fatal("failed to initialize session engine", zap.Error(err))
	}
	oauthSrv := oauth.NewServer(lg, store, cfg.OAuth)

	router := apiserver.NewRouter(lg, cfg, oauthSrv, engine)
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		lg.Info("http server listening", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			lg.Fatal("http server failed", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	lg.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		lg.Error("forced shutdown", zap.Error(err))
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
