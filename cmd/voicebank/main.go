package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rx3lixir/voicebank/internal/auth"
	"github.com/rx3lixir/voicebank/internal/config"
	"github.com/rx3lixir/voicebank/internal/flow"
	"github.com/rx3lixir/voicebank/internal/recorder"
	"github.com/rx3lixir/voicebank/internal/remote"
	"github.com/rx3lixir/voicebank/pkg/audio"
	"github.com/rx3lixir/voicebank/pkg/logger"
	"github.com/spf13/pflag"
)

func main() {
	flags := pflag.NewFlagSet("voicebank", pflag.ContinueOnError)
	configPath := flags.String("config", "", "path to yaml config")
	config.RegisterClientFlags(flags)

	if err := flags.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "voicebank: %v\n", err)
		os.Exit(2)
	}

	cm, err := config.NewConfigManager(*configPath, flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error getting config file: %v\n", err)
		os.Exit(1)
	}
	c := cm.GetConfig()
	if err := c.ValidateClient(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// The console owns stdout, logs go to stderr and stay quiet unless asked
	env := logger.EnvCLI
	if c.GeneralParams.Env != logger.EnvDev {
		env = c.GeneralParams.Env
	}
	log, err := logger.New(logger.Config{
		Env:    env,
		Level:  c.GeneralParams.LogLevel,
		Output: os.Stderr,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	params := c.ClientParams
	client := remote.New(
		params.APIBaseURL,
		auth.NewTokenSource(params.AuthToken, params.TokenFile),
		params.RequestTimeout,
		log.Component("remote"),
	)

	f := flow.New(flow.Deps{
		Remote: client,
		Device: recorder.NewArecordDevice(params.CaptureTool, params.CaptureDevice, log.Component("capture")),
		Format: audio.PCMFormat{
			SampleRate: params.SampleRate,
			Channels:   params.Channels,
			BitDepth:   params.BitDepth,
		},
		PreviewDir: params.PreviewDir,
	}, log.Component("flow"))
	defer f.Close()

	con := newConsole(f, os.Stdin, os.Stdout)
	con.keepDir = params.KeepDir
	if err := con.run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "voicebank: %v\n", err)
		os.Exit(1)
	}
}
