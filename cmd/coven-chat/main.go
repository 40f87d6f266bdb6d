// ABOUTME: Entry point for the coven-chat command line client
// ABOUTME: Loads config, opens the local store, and dispatches to the account and message commands

package main

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/fatih/color"

	"github.com/2389/coven-chat/internal/config"
	"github.com/2389/coven-chat/internal/logging"
	"github.com/2389/coven-chat/internal/session"
	"github.com/2389/coven-chat/internal/store"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
                                         _           _
  ___ _____   _____ _ __         ___| |__   __ _| |_
 / __/ _ \ \ / / _ \ '_ \ _____ / __| '_ \ / _' | __|
| (_| (_) \ V /  __/ | | |_____| (__| | | | (_| | |_
 \___\___/ \_/ \___|_| |_|      \___|_| |_|\__,_|\__|
`

func usage(w io.Writer) {
	fmt.Fprintln(w, "Usage: coven-chat <command>")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  init                              Create a new config file interactively")
	fmt.Fprintln(w, "  migrate                           Bring the database schema up to date")
	fmt.Fprintln(w, "  register <user> [password]        Create an account")
	fmt.Fprintln(w, "  login <user> [password]           Log in and remember the session")
	fmt.Fprintln(w, "  logout                            Forget the current session")
	fmt.Fprintln(w, "  whoami                            Show the logged-in user")
	fmt.Fprintln(w, "  users [--sort id|name]            List everyone else")
	fmt.Fprintln(w, "  send <to> [text] [--image <uri>]  Send a direct message")
	fmt.Fprintln(w, "  history <with>                    Show the conversation with a user")
	fmt.Fprintln(w, "  photo [<user>]                    Show a profile photo URI")
	fmt.Fprintln(w, "  photo set <uri>                   Set your profile photo")
	fmt.Fprintln(w, "  status                            Show config, database, and session state")
	fmt.Fprintln(w, "  version                           Print the version")
}

func main() {
	if len(os.Args) < 2 {
		usage(os.Stdout)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1], os.Args[2:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s %s\n", color.RedString("Error:"), describeError(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, command string, args []string) error {
	switch command {
	case "init":
		return runInit(os.Stdin, os.Stdout)
	case "version", "--version", "-v":
		fmt.Println(version)
		return nil
	case "help", "--help", "-h":
		usage(os.Stdout)
		return nil
	}

	if _, ok := commands[command]; !ok && command != "migrate" && command != "status" {
		usage(os.Stderr)
		return fmt.Errorf("unknown command: %s", command)
	}

	if err := config.LoadEnvFile(".env"); err != nil {
		return err
	}

	configPath := config.DefaultConfigPath()
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger, logCloser, err := logging.New(cfg.Logging)
	if err != nil {
		return err
	}
	defer logCloser.Close()

	st, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	a := newApp(st, os.Stdin, os.Stdout, logger)
	if cfg.Session.Secret != "" {
		a.sessions, err = session.NewManager(cfg.Session.Secret, cfg.Session.TTL, cfg.Session.Path)
		if err != nil {
			return fmt.Errorf("creating session manager: %w", err)
		}
	}

	switch command {
	case "migrate":
		return runMigrate(ctx, st, a.out)
	case "status":
		return runStatus(ctx, a, st, configPath)
	}

	return a.dispatch(ctx, command, args)
}

// openStore opens the configured database and brings its schema up to date.
func openStore(cfg *config.Config, logger *slog.Logger) (*store.SQLiteStore, error) {
	creds, err := store.CredentialSchemeByName(cfg.Accounts.Credentials, cfg.Accounts.BcryptCost)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(cfg.Database.Path, store.Options{
		Driver:      cfg.Database.Driver,
		BusyTimeout: cfg.Database.BusyTimeout,
		Credentials: creds,
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("opening database %s: %w", cfg.Database.Path, err)
	}
	return st, nil
}

func runMigrate(ctx context.Context, st *store.SQLiteStore, out io.Writer) error {
	v, err := st.SchemaVersion(ctx)
	if err != nil {
		return err
	}

	green := color.New(color.FgGreen)
	green.Fprint(out, "✓ ")
	fmt.Fprintf(out, "Schema at version %d (%s)\n", v, st.Path())
	return nil
}

func runStatus(ctx context.Context, a *app, st *store.SQLiteStore, configPath string) error {
	cyan := color.New(color.FgCyan)
	cyan.Fprint(a.out, banner)

	gray := color.New(color.FgHiBlack)
	gray.Fprintf(a.out, "    version: %s\n\n", version)

	v, err := st.SchemaVersion(ctx)
	if err != nil {
		return err
	}

	green := color.New(color.FgGreen)
	row := func(label, value string) {
		green.Fprint(a.out, "    ▶ ")
		fmt.Fprintf(a.out, "%-10s %s\n", label+":", value)
	}

	configState := configPath
	if _, err := os.Stat(configPath); errors.Is(err, os.ErrNotExist) {
		configState += gray.Sprint(" (not found, using defaults)")
	}

	row("Config", configState)
	row("Database", st.Path())
	row("Driver", st.Driver())
	row("Schema", fmt.Sprintf("v%d of v%d", v, store.CurrentSchemaVersion()))

	switch {
	case a.sessions == nil:
		row("Session", gray.Sprint("disabled (no session.secret)"))
	default:
		claims, err := a.sessions.Current()
		switch {
		case err == nil:
			row("Session", claims.Username())
		case errors.Is(err, session.ErrNoSession):
			row("Session", gray.Sprint("not logged in"))
		default:
			row("Session", color.YellowString("%v", err))
		}
	}

	fmt.Fprintln(a.out)
	return nil
}

func runInit(in io.Reader, out io.Writer) error {
	reader := bufio.NewReader(in)

	fmt.Fprintln(out, "coven-chat configuration setup")
	fmt.Fprintln(out, "==============================")
	fmt.Fprintln(out)

	defaults := config.Default()

	outputFile := prompt(reader, out, "Config file path", config.DefaultConfigPath())

	if _, err := os.Stat(outputFile); err == nil {
		overwrite := prompt(reader, out, "File exists. Overwrite?", "no")
		if !isYes(overwrite) {
			fmt.Fprintln(out, "Aborted.")
			return nil
		}
	}

	fmt.Fprintln(out, "\n--- Database Configuration ---")
	dbPath := prompt(reader, out, "SQLite database path", defaults.Database.Path)
	driver := prompt(reader, out, "Driver (sqlite/sqlite3)", defaults.Database.Driver)

	fmt.Fprintln(out, "\n--- Account Configuration ---")
	credentials := prompt(reader, out, "Password storage (plaintext/bcrypt)", defaults.Accounts.Credentials)

	fmt.Fprintln(out, "\n--- Logging Configuration ---")
	logLevel := prompt(reader, out, "Log level (debug/info/warn/error)", defaults.Logging.Level)
	logFormat := prompt(reader, out, "Log format (text/json)", defaults.Logging.Format)

	secretBytes := make([]byte, 32)
	if _, err := rand.Read(secretBytes); err != nil {
		return fmt.Errorf("generating session secret: %w", err)
	}
	secret := base64.StdEncoding.EncodeToString(secretBytes)

	var cfg strings.Builder
	cfg.WriteString("# coven-chat configuration\n")
	cfg.WriteString("# Generated by coven-chat init\n\n")

	cfg.WriteString("database:\n")
	cfg.WriteString(fmt.Sprintf("  path: %q\n", dbPath))
	cfg.WriteString(fmt.Sprintf("  driver: %q\n", driver))
	cfg.WriteString(fmt.Sprintf("  busy_timeout: %q\n", defaults.Database.BusyTimeoutRaw))
	cfg.WriteString("\n")

	cfg.WriteString("accounts:\n")
	cfg.WriteString(fmt.Sprintf("  credentials: %q\n", credentials))
	cfg.WriteString(fmt.Sprintf("  bcrypt_cost: %d\n", defaults.Accounts.BcryptCost))
	cfg.WriteString("\n")

	cfg.WriteString("session:\n")
	cfg.WriteString(fmt.Sprintf("  secret: %q\n", secret))
	cfg.WriteString(fmt.Sprintf("  ttl: %q\n", defaults.Session.TTLRaw))
	cfg.WriteString("\n")

	cfg.WriteString("logging:\n")
	cfg.WriteString(fmt.Sprintf("  level: %q\n", logLevel))
	cfg.WriteString(fmt.Sprintf("  format: %q\n", logFormat))

	if err := os.MkdirAll(filepath.Dir(outputFile), 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	// The file holds the session signing secret.
	if err := os.WriteFile(outputFile, []byte(cfg.String()), 0o600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	if _, err := config.Load(outputFile); err != nil {
		return fmt.Errorf("generated config is invalid: %w", err)
	}

	fmt.Fprintf(out, "\nConfig written to %s\n", outputFile)
	if outputFile != config.DefaultConfigPath() {
		fmt.Fprintf(out, "Set COVEN_CHAT_CONFIG=%s to use it.\n", outputFile)
	}
	fmt.Fprintln(out, "\nNext:")
	fmt.Fprintln(out, "  coven-chat register <user>")
	fmt.Fprintln(out, "  coven-chat login <user>")

	return nil
}

func prompt(reader *bufio.Reader, out io.Writer, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Fprintf(out, "%s [%s]: ", question, defaultVal)
	} else {
		fmt.Fprintf(out, "%s: ", question)
	}

	input, err := reader.ReadString('\n')
	if err != nil && input == "" {
		// On EOF or error, return default
		fmt.Fprintln(out)
		return defaultVal
	}
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultVal
	}
	return input
}

func isYes(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "yes" || s == "y"
}
