// Command wmsvd embeds, extracts and detects invisible image watermarks.
//
// Usage:
//
//	wmsvd [-config wmsvd.yaml] [-debug] [-human] <command> [flags]
//
// Commands:
//
//	embed        hide a watermark in an image and save its side-information
//	extract      recover a watermark from a suspect image
//	detect       compare an extracted watermark with the original
//	fingerprint  print the perceptual fingerprint of an image
//	qr           render text as a QR code to use as a watermark
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/yyyoichi/watermark_svd/internal/config"
)

var errUsage = errors.New("usage")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err := run(ctx, os.Args[1:], os.Stdout)
	if errors.Is(err, errUsage) || errors.Is(err, flag.ErrHelp) {
		os.Exit(2)
	}
	if err != nil {
		log.Error().Err(err).Msg("wmsvd failed")
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	fs := flag.NewFlagSet("wmsvd", flag.ContinueOnError)
	configFilename := fs.String("config", "", "config file")
	debugFlag := fs.Bool("debug", false, "debug logging level")
	humanFlag := fs.Bool("human", false, "human readable logs")
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "usage: wmsvd [flags] embed|extract|detect|fingerprint|qr [command flags]")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configFilename)
	if err != nil {
		return err
	}
	if err := setupLogging(cfg, *debugFlag, *humanFlag); err != nil {
		return err
	}

	if fs.NArg() == 0 {
		fs.Usage()
		return errUsage
	}
	app := &app{cfg: cfg, stdout: stdout}
	defer app.close()

	name, rest := fs.Arg(0), fs.Args()[1:]
	log.Debug().Str("command", name).Str("config", *configFilename).Msg("start")
	switch name {
	case "embed":
		return app.embed(ctx, rest)
	case "extract":
		return app.extract(ctx, rest)
	case "detect":
		return app.detect(ctx, rest)
	case "fingerprint":
		return app.fingerprint(ctx, rest)
	case "qr":
		return app.qr(rest)
	default:
		fs.Usage()
		return fmt.Errorf("%w: unknown command %q", errUsage, name)
	}
}

func setupLogging(cfg config.Config, debug, human bool) error {
	lvl, err := cfg.Level()
	if err != nil {
		return err
	}
	if lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	if debug {
		lvl = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(lvl)
	if human || cfg.Log.Human {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
	return nil
}
