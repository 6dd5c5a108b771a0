// ABOUTME: Entry point for the modeladmin command line
// ABOUTME: Serves the admin API and runs setup, migration and superuser commands

package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/pressly/goose/v3"
	"github.com/urfave/cli/v3"

	"github.com/2389/modeladmin/internal/config"
	"github.com/2389/modeladmin/internal/server"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
                     _      _           _           _
 _ __ ___   ___   __| | ___| |  __ _  __| |_ __ ___ (_)_ __
| '_ ' _ \ / _ \ / _' |/ _ \ | / _' |/ _' | '_ ' _ \| | '_ \
| | | | | | (_) | (_| |  __/ || (_| | (_| | | | | | | | | | |
|_| |_| |_|\___/ \__,_|\___|_| \__,_|\__,_|_| |_| |_|_|_| |_|
`

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newApp().Run(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:    "modeladmin",
		Usage:   "JSON admin API for registered data models",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to a YAML or TOML config file",
				Sources: cli.EnvVars(config.EnvConfigPath),
			},
		},
		Commands: []*cli.Command{
			serveCommand(),
			initCommand(),
			migrateCommand(),
			createSuperuserCommand(),
			healthCommand(),
		},
	}
}

// loadConfig reads the config named by --config. Without the flag it falls
// back to the default location, and to built-in defaults when no file exists there.
func loadConfig(cmd *cli.Command) (*config.Config, string, error) {
	path := cmd.String("config")
	explicit := path != ""
	if !explicit {
		path = config.DefaultPath()
	}

	cfg, err := config.Load(path)
	if err == nil {
		return cfg, path, nil
	}
	if !explicit && errors.Is(err, fs.ErrNotExist) {
		return config.Default(), "", nil
	}
	return nil, path, fmt.Errorf("loading config: %w", err)
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the admin API server",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Usage: "HTTP listen address (overrides server.http_addr)"},
			&cli.StringFlag{Name: "transport", Usage: "HTTP stack: stdlib, chi or fiber (overrides server.transport)"},
		},
		Action: runServe,
	}
}

func runServe(ctx context.Context, cmd *cli.Command) error {
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)
	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, configPath, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if addr := cmd.String("addr"); addr != "" {
		cfg.Server.HTTPAddr = addr
	}
	if t := cmd.String("transport"); t != "" {
		cfg.Server.Transport = t
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	logger := setupLogger(cfg.Logging, os.Stderr)

	if configPath == "" {
		configPath = "(built-in defaults)"
	}
	green := color.New(color.FgGreen)
	for _, line := range [][2]string{
		{"Config:", configPath},
		{"HTTP:", cfg.Server.HTTPAddr},
		{"Transport:", cfg.Server.Transport},
		{"Backend:", cfg.Backend + " / " + cfg.Database.Driver},
		{"Sessions:", cfg.Sessions.Store},
	} {
		green.Print("    ▶ ")
		fmt.Printf("%-10s %s\n", line[0], line[1])
	}
	fmt.Println()

	logger.Info("starting modeladmin",
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
		"transport", cfg.Server.Transport,
		"backend", cfg.Backend,
	)

	srv, err := server.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	return srv.Run(ctx)
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Apply pending schema migrations and print their status",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, _, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			logger := setupLogger(cfg.Logging, os.Stderr)

			srv, err := server.New(ctx, cfg, logger)
			if err != nil {
				return fmt.Errorf("migrating: %w", err)
			}
			defer srv.Close()

			status, err := srv.MigrationStatus(ctx)
			if err != nil {
				return err
			}
			printMigrationStatus(status)
			return nil
		},
	}
}

func printMigrationStatus(status []*goose.MigrationStatus) {
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)
	for _, m := range status {
		if m.State == goose.StateApplied {
			green.Printf("  applied  ")
			fmt.Printf("%05d  %s  %s\n", m.Source.Version, m.Source.Path, m.AppliedAt.Format(time.DateTime))
			continue
		}
		yellow.Printf("  pending  ")
		fmt.Printf("%05d  %s\n", m.Source.Version, m.Source.Path)
	}
}

func createSuperuserCommand() *cli.Command {
	return &cli.Command{
		Name:  "create-superuser",
		Usage: "Create an active superuser that can sign in",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "username", Aliases: []string{"u"}, Usage: "username (prompted when omitted)"},
			&cli.StringFlag{
				Name:    "password",
				Usage:   "password (prompted when omitted)",
				Sources: cli.EnvVars("MODELADMIN_SUPERUSER_PASSWORD"),
			},
		},
		Action: runCreateSuperuser,
	}
}

func runCreateSuperuser(ctx context.Context, cmd *cli.Command) error {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Backend == "memory" {
		return errors.New("the memory backend keeps no users between runs; configure a database backend first")
	}

	creds := superuserAnswers{Username: cmd.String("username"), Password: cmd.String("password")}
	if err := askSuperuser(&creds); err != nil {
		return err
	}

	logger := setupLogger(cfg.Logging, os.Stderr)
	srv, err := server.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("opening admin site: %w", err)
	}
	defer srv.Close()

	id, err := srv.CreateSuperuser(ctx, creds.Username, creds.Password)
	if err != nil {
		return err
	}

	color.New(color.FgGreen).Print("✓ ")
	fmt.Printf("Created superuser %q (id %s)\n", creds.Username, id)
	return nil
}

func healthCommand() *cli.Command {
	return &cli.Command{
		Name:  "health",
		Usage: "Check a running server",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "ready", Usage: "check readiness instead of liveness"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, _, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			path := "/health"
			if cmd.Bool("ready") {
				path = "/health/ready"
			}
			if err := checkHealth(ctx, "http://"+cfg.Server.HTTPAddr+path); err != nil {
				return err
			}
			fmt.Println("healthy")
			return nil
		},
	}
}

func checkHealth(ctx context.Context, url string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}
	return nil
}
