// popmatch attaches IPv4 addresses (Tor relays by default) to the closest
// known address of a point-of-presence map and reports the PoP it belongs to.
//
// Matching works on a series of tie-breaks: the longest shared prefix inside
// the address's /16 wins, then the closest address, then the numerically
// lower one. Addresses without any neighbour in their /16 fall back to a
// search across their /8 down to a /9 prefix.
//
// Usage:
//
//	popmatch [global options] match (--live | --local <summary.json> | --other <ips.txt>) [--out <file>]
//	popmatch [global options] serve [--addr host:port]
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	app "github.com/ak7sky/popmatch/internal"
	"github.com/ak7sky/popmatch/internal/config"
	"github.com/ak7sky/popmatch/internal/core"
	"github.com/ak7sky/popmatch/internal/logger"
	"github.com/ak7sky/popmatch/internal/source"
	"github.com/urfave/cli/v3"
)

type usageError struct {
	msg string
}

func (e *usageError) Error() string {
	return e.msg
}

func main() {
	os.Exit(run(os.Args))
}

func run(args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := createApp().Run(ctx, args); err != nil {
		var usageErr *usageError
		if errors.As(err, &usageErr) {
			fmt.Fprintf(os.Stderr, "usage error: %v\n", usageErr)
			return 2
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

func createApp() *cli.Command {
	return &cli.Command{
		Name:  "popmatch",
		Usage: "match IPv4 addresses to the closest point of presence",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "YAML or JSON config file",
			},
			&cli.StringFlag{
				Name:  "redis",
				Usage: "host:port of the redis holding the pop map",
			},
			&cli.StringFlag{
				Name:  "popmap",
				Usage: "YAML pop map file, used instead of redis",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "be verbose",
			},
			&cli.BoolFlag{
				Name:    "force",
				Aliases: []string{"f"},
				Usage:   "allow loading the pop map from a local redis",
			},
		},
		Commands: []*cli.Command{
			createMatchCommand(),
			createServeCommand(),
		},
	}
}

func createMatchCommand() *cli.Command {
	return &cli.Command{
		Name:  "match",
		Usage: "match relays and print a JSON list of records",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "live",
				Usage: "load the latest relay summary from Onionoo",
			},
			&cli.StringFlag{
				Name:  "local",
				Usage: "load a relay summary previously downloaded from Onionoo",
			},
			&cli.StringFlag{
				Name:  "other",
				Usage: "match addresses from a file, the first field of every line",
			},
			&cli.StringFlag{
				Name:    "out",
				Aliases: []string{"o"},
				Usage:   "output file (default: stdout)",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, appLogger, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			src, requirePop, err := relaySource(cmd, cfg, appLogger)
			if err != nil {
				return err
			}

			out := io.Writer(os.Stdout)
			if path := cmd.String("out"); path != "" {
				file, err := os.Create(path)
				if err != nil {
					return err
				}
				defer file.Close()
				out = file
			}

			return app.RunMatch(ctx, cfg, app.MatchParams{Source: src, RequirePop: requirePop, Out: out}, appLogger)
		},
	}
}

func createServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "serve match queries over gRPC",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "listen address (default from config)",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, appLogger, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if addr := cmd.String("addr"); addr != "" {
				cfg.GRPC.Addr = addr
			}
			return app.RunServe(ctx, cfg, appLogger)
		},
	}
}

// loadConfig reads the config file and applies the global flag overrides.
func loadConfig(cmd *cli.Command) (*config.Config, *logger.ZLBasedLogger, error) {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return nil, nil, err
	}

	if addr := cmd.String("redis"); addr != "" {
		cfg.Redis.Addr = addr
	}
	if path := cmd.String("popmap"); path != "" {
		cfg.PopMap.File = path
	}
	if cmd.Bool("verbose") {
		cfg.Log.Level = "debug"
	}
	if cmd.Bool("force") {
		cfg.Redis.ForceLocal = true
	}
	if err = cfg.Validate(); err != nil {
		return nil, nil, &usageError{msg: err.Error()}
	}

	return cfg, logger.NewLogger(cfg.Log.Level), nil
}

func relaySource(cmd *cli.Command, cfg *config.Config, appLogger logger.Logger) (core.RelaySource, bool, error) {
	live, local, other := cmd.Bool("live"), cmd.String("local"), cmd.String("other")

	switch {
	case live && (local != "" || other != ""):
		return nil, false, &usageError{msg: "'live' cannot be combined with 'local' or 'other'"}
	case local != "" && other != "":
		return nil, false, &usageError{msg: "'other' cannot be combined with 'local'"}
	case live:
		return source.NewOnionooLive(cfg.Onionoo.URL, cfg.Onionoo.Timeout, cfg.Onionoo.Attempts, appLogger), true, nil
	case local != "":
		return source.NewOnionooFile(local), true, nil
	case other != "":
		return source.NewLineFile(other), false, nil
	default:
		return nil, false, &usageError{msg: "one of 'live', 'local' or 'other' must be specified"}
	}
}
