// Command memorygame starts the Memory Match Game server.
//
// It supports three commands:
//  1. "serve" (default) runs the HTTP server exposing the REST API, the browser
//     game, WebSocket updates and an /mcp HTTP endpoint
//  2. "stdio-mcp" runs an MCP stdio server and spins up an internal HTTP API
//     if none is available
//  3. "validate" checks every deck file and reports all problems found
//
// Settings come from MEMORY_GAME_* environment variables (a .env file is
// loaded when present); flags override the most common ones.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/wricardo/mcp-training/memorygame/settings"
	"github.com/wricardo/mcp-training/memorygame/validate"
)

// Version information
const (
	Version = "1.0.0"
	AppName = "Memory Match Game Server"
)

func newCommand() *cli.Command {
	return &cli.Command{
		Name:    "memorygame",
		Usage:   AppName,
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "host", Usage: "HTTP server host"},
			&cli.IntFlag{Name: "port", Usage: "HTTP server port"},
			&cli.StringFlag{Name: "config-dir", Usage: "Directory containing deck configurations"},
			&cli.StringFlag{Name: "session-store", Usage: "Session store: memory, file, redis, sqlite or bolt"},
			&cli.BoolFlag{Name: "debug", Usage: "Enable debug logging"},
			&cli.BoolFlag{Name: "ngrok", Usage: "Enable ngrok tunnel"},
			&cli.StringFlag{Name: "ngrok-auth", Usage: "Ngrok auth token (or use NGROK_AUTHTOKEN env var)"},
			&cli.StringFlag{Name: "ngrok-domain", Usage: "Custom ngrok domain (optional)"},
		},
		Action: serveAction,
		Commands: []*cli.Command{
			{
				Name:    "serve",
				Aliases: []string{"server", "http"},
				Usage:   "Run HTTP server with API, browser game, WebSocket, and MCP endpoint",
				Action:  serveAction,
			},
			{
				Name:    "stdio-mcp",
				Aliases: []string{"mcp-stdio", "mcp"},
				Usage:   "Run MCP stdio server with internal HTTP server",
				Action:  stdioAction,
			},
			{
				Name:      "validate",
				Usage:     "Validate deck files",
				ArgsUsage: "[dir]",
				Action:    validateAction,
			},
		},
	}
}

func main() {
	if err := newCommand().Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadSettings reads the environment and applies the flags that were set
func loadSettings(cmd *cli.Command) (*settings.Settings, error) {
	s, err := settings.Load()
	if err != nil {
		return nil, err
	}

	if cmd.IsSet("host") {
		s.Host = cmd.String("host")
	}
	if cmd.IsSet("port") {
		s.Port = int(cmd.Int("port"))
	}
	if cmd.IsSet("config-dir") {
		s.ConfigDir = cmd.String("config-dir")
	}
	if cmd.IsSet("session-store") {
		s.SessionStore = cmd.String("session-store")
	}
	if cmd.IsSet("debug") {
		s.Debug = cmd.Bool("debug")
	}
	if cmd.IsSet("ngrok") {
		s.NgrokEnabled = cmd.Bool("ngrok")
	}
	if cmd.IsSet("ngrok-auth") {
		s.NgrokAuth = cmd.String("ngrok-auth")
	}
	if cmd.IsSet("ngrok-domain") {
		s.NgrokDomain = cmd.String("ngrok-domain")
	}

	// Also support the unprefixed ngrok variables
	if s.NgrokAuth == "" {
		s.NgrokAuth = os.Getenv("NGROK_AUTHTOKEN")
		if s.NgrokAuth == "" {
			s.NgrokAuth = os.Getenv("NGROK_AUTH_TOKEN")
		}
	}
	if s.NgrokDomain == "" {
		s.NgrokDomain = os.Getenv("NGROK_DOMAIN")
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// setup loads .env, settings and the logger shared by every command
func setup(cmd *cli.Command) (*settings.Settings, *zap.Logger, error) {
	envErr := godotenv.Load()

	s, err := loadSettings(cmd)
	if err != nil {
		return nil, nil, err
	}

	logger, err := newLogger(s.Debug)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}

	switch {
	case envErr == nil:
		logger.Info("loaded environment variables from .env file")
	case !os.IsNotExist(envErr):
		logger.Warn("error loading .env file", zap.Error(envErr))
	}

	return s, logger, nil
}

func serveAction(ctx context.Context, cmd *cli.Command) error {
	s, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	logger.Info("starting", zap.String("app", AppName), zap.String("version", Version), zap.String("mode", "serve"))
	return runServe(ctx, s, logger)
}

func stdioAction(ctx context.Context, cmd *cli.Command) error {
	s, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	logger.Info("starting", zap.String("app", AppName), zap.String("version", Version), zap.String("mode", "stdio-mcp"))
	return runStdio(ctx, s, logger)
}

func validateAction(ctx context.Context, cmd *cli.Command) error {
	dir := cmd.Args().First()
	if dir == "" {
		s, err := loadSettings(cmd)
		if err != nil {
			return err
		}
		dir = s.ConfigDir
	}
	return runValidate(cmd.Root().Writer, dir)
}

// runValidate prints a report for every deck in dir and fails when any is invalid
func runValidate(w io.Writer, dir string) error {
	results, err := validate.Dir(dir)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "Validating %d deck files in %s\n\n", len(results), dir)

	invalid := 0
	for _, r := range results {
		if r.Valid {
			fmt.Fprintf(w, "✅ %s\n", r.File)
			for _, note := range r.Notes {
				fmt.Fprintf(w, "   %s\n", note)
			}
		} else {
			invalid++
			fmt.Fprintf(w, "❌ %s\n", r.File)
			for _, e := range r.Errors {
				fmt.Fprintf(w, "   - %s\n", e)
			}
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Summary: %d valid, %d invalid\n", len(results)-invalid, invalid)
	if invalid > 0 {
		return cli.Exit(fmt.Sprintf("%d invalid deck file(s)", invalid), 1)
	}
	return nil
}
