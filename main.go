/*
This is an example of application that will use the
engine package to test things out
*/
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/spaghettifunk/lumen/engine"
	"github.com/spaghettifunk/lumen/engine/config"
	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/platform"
	"github.com/spaghettifunk/lumen/engine/renderer/opengl"
	"github.com/spaghettifunk/lumen/testbed"
)

func main() {
	configPath := flag.String("config", "", "path to a TOML configuration file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		core.LogError(err.Error())
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg := config.Default()
	var opts []engine.Option
	if configPath != "" {
		c, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = c
		opts = append(opts, engine.WithConfigFile(configPath))
	}

	p := platform.New(cfg)
	if err := p.Startup(); err != nil {
		return err
	}
	defer p.Shutdown()

	opts = append(opts, engine.WithStateApplier(opengl.NewStateApplier()))
	e, err := engine.New(cfg, p, opts...)
	if err != nil {
		return err
	}
	p.SetErrorQueue(e.Errors())

	if err := e.Initialize(); err != nil {
		return err
	}
	defer func() {
		if err := e.Shutdown(); err != nil {
			core.LogError(err.Error())
		}
	}()

	// signal context to capture system calls
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	// run engine
	tb := testbed.NewTestGame(p.FramebufferSize)
	return e.Run(ctx, tb.Game)
}
