package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ternarybob/folio/internal/app"
	"github.com/ternarybob/folio/internal/common"
)

// configPaths allows multiple -config flags; later files override earlier
type configPaths []string

func (c *configPaths) String() string {
	return fmt.Sprintf("%v", *c)
}

func (c *configPaths) Set(value string) error {
	*c = append(*c, value)
	return nil
}

var (
	configFiles configPaths
	serverPort  = flag.Int("port", 0, "Server port (overrides config)")
	serverHost  = flag.String("host", "", "Server host (overrides config)")
	showVersion = flag.Bool("version", false, "Print version information")
)

func init() {
	flag.Var(&configFiles, "config", "Configuration file path (can be specified multiple times, later files override earlier ones)")
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("Folio version %s\n", common.GetFullVersion())
		os.Exit(0)
	}

	// Auto-discover a config file when none is given
	if len(configFiles) == 0 {
		if _, err := os.Stat("folio.toml"); err == nil {
			configFiles = append(configFiles, "folio.toml")
		}
	}

	config, err := common.LoadFromFiles(configFiles...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	common.ApplyFlagOverrides(config, *serverPort, *serverHost)

	logger := common.InitLogger(config)
	common.PrintBanner(common.GetVersion())

	logger.Info().
		Strs("config_files", configFiles).
		Str("environment", config.Environment).
		Int("port", config.Server.Port).
		Str("host", config.Server.Host).
		Msg("Configuration loaded")

	application, err := app.New(config, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize application")
	}

	runCtx, cancelRun := context.WithCancel(context.Background())
	application.Start(runCtx)

	go func() {
		if err := application.Server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("Server failed")
		}
	}()

	logger.Info().
		Str("url", fmt.Sprintf("http://%s:%d", config.Server.Host, config.Server.Port)).
		Msg("Folio ready - Press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	logger.Info().Msg("Interrupt signal received")

	// Stop accepting work, drain in-flight jobs, then release resources
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()

	if err := application.Server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Server shutdown failed")
	}
	cancelRun()
	application.Close()

	logger.Info().Msg("Folio stopped")
}
