package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spaghettifunk/texlab/engine"
	"github.com/spaghettifunk/texlab/engine/core"
)

// Upper bound for draining the GPU on the way out.
const SHUTDOWN_TIMEOUT = 5 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := engine.DefaultConfig()
	if err != nil {
		core.LogError("Invalid configuration: %s", err)
		return 1
	}

	// signal context to capture system calls
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)
	defer stop()

	e := engine.New(cfg)
	code := 0
	if err := e.Initialize(); err != nil {
		core.LogError("Initialization failed: %s", err)
		code = 1
	} else if err := e.Run(ctx); err != nil {
		code = 1
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), SHUTDOWN_TIMEOUT)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		core.LogError("Shutdown: %s", err)
		code = 1
	}
	return code
}
