// Command chessd runs the chess game server.
package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/chessdream/chessd/internal/auth"
	"github.com/chessdream/chessd/internal/chess"
	"github.com/chessdream/chessd/internal/config"
)

const version = "0.3.0"

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "warning: loading .env: %v\n", err)
	}

	log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()

	if err := newApp().Run(context.Background(), os.Args); err != nil {
		log.Fatal().Err(err).Msg("chessd failed")
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:    "chessd",
		Usage:   "authoritative chess game server",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to a config file (default: ./config.yaml or ./config/config.yaml)",
				Sources: cli.EnvVars("CHESSD_CONFIG"),
			},
		},
		Commands: []*cli.Command{
			serveCommand(),
			perftCommand(),
			tokenCommand(),
		},
		DefaultCommand: "serve",
	}
}

func loadConfig(cmd *cli.Command) (*config.Config, error) {
	cfg, err := config.LoadFile(cmd.String("config"))
	if err != nil {
		return nil, err
	}
	setupLogging(cfg.Development)
	return cfg, nil
}

func setupLogging(dev config.DevelopmentConfig) {
	level, err := zerolog.ParseLevel(dev.LogLevel)
	if err != nil || dev.LogLevel == "" {
		level = zerolog.InfoLevel
	}
	if dev.Debug {
		level = zerolog.DebugLevel
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
	zerolog.SetGlobalLevel(level)
}

func perftCommand() *cli.Command {
	return &cli.Command{
		Name:  "perft",
		Usage: "count legal move tree leaves from a position",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "fen", Value: chess.StartFEN, Usage: "starting position"},
			&cli.IntFlag{Name: "depth", Aliases: []string{"d"}, Value: 4, Usage: "search depth"},
			&cli.BoolFlag{Name: "divide", Usage: "print the count below each root move"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			b, err := chess.ParseFEN(cmd.String("fen"))
			if err != nil {
				return err
			}
			depth := int(cmd.Int("depth"))
			if depth < 1 {
				return fmt.Errorf("depth must be at least 1")
			}

			start := time.Now()
			var total uint64
			if cmd.Bool("divide") {
				counts := chess.Divide(b, depth)
				moves := make([]string, 0, len(counts))
				for m := range counts {
					moves = append(moves, m)
				}
				sort.Strings(moves)
				for _, m := range moves {
					fmt.Fprintf(cmd.Root().Writer, "%s: %d\n", m, counts[m])
					total += counts[m]
				}
				fmt.Fprintln(cmd.Root().Writer)
			} else {
				total = chess.Perft(b, depth)
			}
			fmt.Fprintf(cmd.Root().Writer, "nodes %d depth %d time %s\n", total, depth, time.Since(start).Round(time.Millisecond))
			return nil
		},
	}
}

func tokenCommand() *cli.Command {
	return &cli.Command{
		Name:      "token",
		Usage:     "issue a bearer token for a player using the configured secret",
		ArgsUsage: "<player-id>",
		Flags: []cli.Flag{
			&cli.DurationFlag{Name: "ttl", Value: 24 * time.Hour, Usage: "token lifetime"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			player := cmd.Args().First()
			if player == "" {
				return fmt.Errorf("player id is required")
			}
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			verifier, err := auth.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
			if err != nil {
				return err
			}
			token, err := verifier.IssueToken(player, cmd.Duration("ttl"))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.Root().Writer, token)
			return nil
		},
	}
}
