// ABOUTME: Interactive setup prompts for the init and create-superuser commands
// ABOUTME: Turns survey answers into a validated config file in YAML or TOML

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"
	"github.com/fatih/color"
	"github.com/urfave/cli/v3"

	"github.com/2389/modeladmin/internal/config"
)

// initAnswers collects everything the init command asks for.
type initAnswers struct {
	Path         string `survey:"path"`
	HTTPAddr     string `survey:"http_addr"`
	Transport    string `survey:"transport"`
	Driver       string `survey:"driver"`
	DatabasePath string `survey:"database_path"`
	DSN          string `survey:"dsn"`
	Backend      string `survey:"backend"`
	SessionStore string `survey:"session_store"`
	RedisAddr    string `survey:"redis_addr"`
	SiteName     string `survey:"site_name"`
	Hasher       string `survey:"hasher"`
	SecureCookie bool   `survey:"secure_cookie"`
	LogLevel     string `survey:"log_level"`
	LogFormat    string `survey:"log_format"`
}

type superuserAnswers struct {
	Username string `survey:"username"`
	Password string `survey:"password"`
}

func initCommand() *cli.Command {
	return &cli.Command{
		Name:   "init",
		Usage:  "Create a new config file interactively",
		Action: runInit,
	}
}

func runInit(_ context.Context, cmd *cli.Command) error {
	fmt.Println("modeladmin configuration setup")
	fmt.Println("==============================")
	fmt.Println()

	defaultPath := cmd.String("config")
	if defaultPath == "" {
		defaultPath = config.DefaultPath()
	}

	var a initAnswers
	err := survey.Ask([]*survey.Question{
		{Name: "path", Prompt: &survey.Input{Message: "Config file path (.yaml or .toml):", Default: defaultPath}, Validate: survey.Required},
		{Name: "http_addr", Prompt: &survey.Input{Message: "HTTP address:", Default: config.DefaultHTTPAddr}, Validate: survey.Required},
		{Name: "transport", Prompt: &survey.Select{Message: "HTTP stack:", Options: []string{"stdlib", "chi", "fiber"}, Default: config.DefaultTransport}},
		{Name: "driver", Prompt: &survey.Select{Message: "Database:", Options: []string{"sqlite", "postgres"}, Default: config.DefaultDatabaseDriver}},
	}, &a)
	if err != nil {
		return promptError(err)
	}

	if _, err := os.Stat(a.Path); err == nil {
		overwrite := false
		if err := survey.AskOne(&survey.Confirm{Message: "File exists. Overwrite?"}, &overwrite); err != nil {
			return promptError(err)
		}
		if !overwrite {
			fmt.Println("Aborted.")
			return nil
		}
	}

	var qs []*survey.Question
	if a.Driver == "postgres" {
		qs = append(qs,
			&survey.Question{Name: "dsn", Prompt: &survey.Input{Message: "Postgres DSN:", Default: "postgres://localhost:5432/modeladmin?sslmode=disable"}, Validate: survey.Required},
			&survey.Question{Name: "backend", Prompt: &survey.Select{Message: "Model backend:", Options: []string{"sql", "pgx", "memory"}, Default: "pgx"}},
			&survey.Question{Name: "session_store", Prompt: &survey.Select{Message: "Session store:", Options: []string{"redis", "memory"}, Default: "redis"}},
		)
	} else {
		qs = append(qs,
			&survey.Question{Name: "database_path", Prompt: &survey.Input{Message: "SQLite database path:", Default: defaultDatabasePath()}, Validate: survey.Required},
			&survey.Question{Name: "backend", Prompt: &survey.Select{Message: "Model backend:", Options: []string{"sql", "gorm", "memory"}, Default: config.DefaultBackend}},
			&survey.Question{Name: "session_store", Prompt: &survey.Select{Message: "Session store:", Options: []string{"sqlite", "redis", "memory"}, Default: config.DefaultSessionStore}},
		)
	}
	if err := survey.Ask(qs, &a); err != nil {
		return promptError(err)
	}

	if a.SessionStore == "redis" {
		if err := survey.AskOne(&survey.Input{Message: "Redis address:", Default: "localhost:6379"}, &a.RedisAddr, survey.WithValidator(survey.Required)); err != nil {
			return promptError(err)
		}
	}

	err = survey.Ask([]*survey.Question{
		{Name: "site_name", Prompt: &survey.Input{Message: "Site name:", Default: "Admin"}},
		{Name: "hasher", Prompt: &survey.Select{Message: "Password hasher:", Options: []string{"bcrypt", "argon2id"}, Default: config.DefaultPasswordHasher}},
		{Name: "secure_cookie", Prompt: &survey.Confirm{Message: "Serve behind HTTPS (secure session cookie)?"}},
		{Name: "log_level", Prompt: &survey.Select{Message: "Log level:", Options: []string{"debug", "info", "warn", "error"}, Default: "info"}},
		{Name: "log_format", Prompt: &survey.Select{Message: "Log format:", Options: []string{"text", "json"}, Default: "text"}},
	}, &a)
	if err != nil {
		return promptError(err)
	}

	data, err := renderConfig(a)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(a.Path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(a.Path, data, 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	fmt.Println()
	color.New(color.FgGreen).Print("✓ ")
	fmt.Printf("Config written to %s\n", a.Path)
	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Printf("  modeladmin --config %s create-superuser\n", a.Path)
	fmt.Printf("  modeladmin --config %s serve\n", a.Path)
	return nil
}

// renderConfig validates the answers as a configuration and encodes it in
// the format implied by the target path.
func renderConfig(a initAnswers) ([]byte, error) {
	cfg := config.Default()
	cfg.Server.HTTPAddr = a.HTTPAddr
	cfg.Server.Transport = a.Transport
	cfg.Server.SecureCookie = a.SecureCookie
	cfg.Database.Driver = a.Driver
	cfg.Database.Path = a.DatabasePath
	cfg.Database.DSN = a.DSN
	cfg.Backend = a.Backend
	cfg.Sessions.Store = a.SessionStore
	cfg.Sessions.Redis.Addr = a.RedisAddr
	cfg.Admin.SiteName = a.SiteName
	cfg.Admin.PasswordHasher = a.Hasher
	cfg.Logging.Level = a.LogLevel
	cfg.Logging.Format = a.LogFormat

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid answers: %w", err)
	}

	format := config.FormatFor(a.Path)
	data, err := cfg.Marshal(format)
	if err != nil {
		return nil, err
	}

	comment := "# modeladmin configuration\n# Generated by modeladmin init\n\n"
	return append([]byte(comment), data...), nil
}

// askSuperuser prompts for whichever credentials are still missing.
func askSuperuser(a *superuserAnswers) error {
	askPassword := a.Password == ""
	var qs []*survey.Question
	if a.Username == "" {
		qs = append(qs, &survey.Question{Name: "username", Prompt: &survey.Input{Message: "Username:"}, Validate: survey.Required})
	}
	if askPassword {
		qs = append(qs, &survey.Question{Name: "password", Prompt: &survey.Password{Message: "Password:"}, Validate: survey.Required})
	}
	if len(qs) == 0 {
		return nil
	}
	if err := survey.Ask(qs, a); err != nil {
		return promptError(err)
	}

	if askPassword {
		var confirm string
		if err := survey.AskOne(&survey.Password{Message: "Password (again):"}, &confirm); err != nil {
			return promptError(err)
		}
		if confirm != a.Password {
			return errors.New("passwords do not match")
		}
	}
	return nil
}

func defaultDatabasePath() string {
	base := os.Getenv("XDG_DATA_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return config.DefaultDatabasePath
		}
		base = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(base, "modeladmin", "modeladmin.db")
}

func promptError(err error) error {
	if errors.Is(err, terminal.InterruptErr) {
		return errors.New("aborted")
	}
	return fmt.Errorf("prompt: %w", err)
}
