package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/anoixa/catdex/api/core"
	"github.com/anoixa/catdex/config"
	"github.com/anoixa/catdex/internal/app"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start web server",
	Run: func(cmd *cobra.Command, args []string) {
		RunServer()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func RunServer() {
	cfg := config.Get()
	log.Info().Str("version", config.BuildInfo()).Msg("Starting catdex")

	container := app.NewContainer(cfg)
	if err := container.Init(); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize application")
	}

	if err := container.Migrate(context.Background()); err != nil {
		_ = container.Close()
		log.Fatal().Err(err).Msg("Failed to auto migrate database")
	}

	// 孤儿图片扫描，interval 为 0 时不启动
	container.OrphanScanner.Start()

	server, cleanup := core.NewServer(cfg, container.ServerDependencies())
	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", server.Addr).Msg("Server started")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// 处理退出signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	exitCode := 0
	select {
	case sig := <-quit:
		log.Info().Str("signal", sig.String()).Msg("Shutting down server...")
	case err := <-serverErr:
		log.Error().Err(err).Msg("Server failed")
		exitCode = 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// 先停止接收请求，再释放协程池和数据库
	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
		exitCode = 1
	}
	cleanup()

	if err := container.Close(); err != nil {
		log.Error().Err(err).Msg("Error closing container")
		exitCode = 1
	}

	log.Info().Msg("Server exited")
	if exitCode != 0 {
		os.Exit(exitCode)
	}
}
