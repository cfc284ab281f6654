// Command relay is the entry point for the Twitch EventSub relay. It loads
// the configuration, starts the relay and the optional status server, and
// manages graceful shutdown via OS signals.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	flags "github.com/jessevdk/go-flags"
	"golang.org/x/term"

	"github.com/Guliveer/twitch-eventsub-relay/internal/config"
	"github.com/Guliveer/twitch-eventsub-relay/internal/logger"
	"github.com/Guliveer/twitch-eventsub-relay/internal/relay"
	"github.com/Guliveer/twitch-eventsub-relay/internal/server"
)

const banner = `
╔══════════════════════════════════════════════════╗
║              Twitch EventSub Relay               ║
╚══════════════════════════════════════════════════╝
`

func main() {
	os.Exit(run())
}

func run() int {
	opts, err := config.ParseOptions(os.Args[1:])
	if err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			return 0
		}
		return 2
	}

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}
	config.ApplyOptions(cfg, opts)

	colored := !opts.NoColor && term.IsTerminal(int(os.Stdout.Fd())) && os.Getenv("NO_COLOR") == ""

	rootLog, err := logger.Setup(logger.Config{
		Level:     logger.ParseLevel(cfg.Logging.Level),
		FileLevel: logger.ParseLevel(cfg.Logging.FileLevel),
		Colored:   colored,
		LogDir:    cfg.Logging.Dir,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to setup logger: %v\n", err)
		return 1
	}

	if err := config.Validate(cfg); err != nil {
		rootLog.Error("Invalid config", "path", opts.ConfigPath, "error", err)
		return 1
	}

	fmt.Print(banner)
	rootLog.Info("🚀 Starting Twitch EventSub relay",
		"channels", len(cfg.Channels),
		"topics", cfg.EventSub.Topics,
	)

	r, err := relay.New(cfg, rootLog)
	if err != nil {
		rootLog.Error("Failed to build relay", "error", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		rootLog.Info("Received shutdown signal")
		time.AfterFunc(30*time.Second, func() {
			rootLog.Error("Graceful shutdown timed out, forcing exit")
			os.Exit(1)
		})
	}()

	if cfg.Server.Enabled {
		statusServer := server.NewStatusServer(cfg.Server.Addr, r.Status, rootLog.WithComponent("http"))
		go func() {
			if err := statusServer.Run(ctx); err != nil && ctx.Err() == nil {
				rootLog.Error("Status server failed", "error", err)
			}
		}()
	}

	err = r.Run(ctx)
	if ctx.Err() != nil {
		rootLog.Info("🛑 Shutdown complete")
		return 0
	}
	if err != nil {
		rootLog.Error("Relay failed", "error", err)
		return 1
	}
	return 0
}
