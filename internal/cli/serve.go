package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/isolatesandbox/isolate-sandbox/internal/api"
	"github.com/isolatesandbox/isolate-sandbox/internal/compiler"
	"github.com/isolatesandbox/isolate-sandbox/internal/config"
	"github.com/isolatesandbox/isolate-sandbox/internal/pipeline"
	"github.com/isolatesandbox/isolate-sandbox/internal/pool"
	"github.com/isolatesandbox/isolate-sandbox/internal/registry"
	"github.com/isolatesandbox/isolate-sandbox/internal/runner"
	"github.com/isolatesandbox/isolate-sandbox/internal/sandbox"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var configFile string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the isolate-sandbox server",
	Run: func(cmd *cobra.Command, args []string) {
		runServer()
	},
}

func init() {
	serveCmd.Flags().StringVarP(&configFile, "config", "c", "", "Path to an optional YAML config overlay")
	RootCmd.AddCommand(serveCmd)
}

func runServer() {
	cfg, err := config.Load(configFile)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	if apiKey != "" {
		cfg.APIKey = apiKey
	}

	log.Info().Uint16("port", cfg.Port).Str("config_dir", cfg.ConfigDir).Msg("starting isolate-sandbox server")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Info().Str("signal", sig.String()).Msg("shutdown signal received")
		cancel()
	}()

	r := runner.New()

	if err := verifyIsolate(ctx, r); err != nil {
		log.Fatal().Err(err).Msg("isolate sandbox tool is not usable")
	}

	reg := registry.New(cfg.ConfigDir, r)
	if err := reg.Setup(ctx); err != nil {
		log.Fatal().Err(err).Msg("language setup failed")
	}

	scratchDir, err := os.MkdirTemp("", "isolate-sandbox-scratch-*")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create scratch directory")
	}
	defer os.RemoveAll(scratchDir)

	comp := compiler.New(r)
	slotPool := pool.New(int(cfg.BoxPoolSize))
	driver := sandbox.New(r)
	pipe := pipeline.New(reg, comp, slotPool, driver, cfg.SandboxLimit, scratchDir)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	h := api.NewHandler(pipe, reg, cfg.APIKey)
	h.RegisterRoutes(e)

	serverErr := make(chan error, 1)
	go func() {
		log.Info().Uint16("port", cfg.Port).Msg("server listening")
		serverErr <- e.Start(addrFor(cfg.Port))
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := e.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("server forced to shutdown")
		}
	case err := <-serverErr:
		log.Fatal().Err(err).Msg("server startup failed")
	}
}

func addrFor(port uint16) string {
	return ":" + strconv.Itoa(int(port))
}

// verifyIsolate fails fast if the sandbox tool isn't installed or
// sudo-accessible, matching the spec's documented non-zero startup
// exit code for this condition.
func verifyIsolate(ctx context.Context, r *runner.Runner) error {
	_, stderr, exitCode, err := r.Run(ctx, "sudo", "isolate", "--version")
	if err != nil {
		return err
	}
	if exitCode != 0 {
		log.Error().Str("stderr", stderr).Msg("isolate --version failed")
		return errors.New("isolate --version exited non-zero")
	}
	log.Info().Msg("isolate is installed and accessible")
	return nil
}
