// Command finwise-admin manages accounts and exports from the command line.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"finwise/internal/cli"
	"finwise/internal/config"
	"finwise/internal/log"
	"finwise/internal/services"
	"finwise/internal/storage"
)

const usage = `Usage: finwise-admin <command> [flags]

Commands:
  register        create an account
  reset-password  set a new password for an account
  retry-exports   requeue expenses whose export failed
`

func main() {
	cli.LoadEnvFile()
	cli.SetupLogger(getenv("LOG_LEVEL", "warn"), log.ComponentAdmin)

	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return errors.New("missing command")
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "register":
		return runRegister(rest, stdin, stdout, stderr)
	case "reset-password":
		return runResetPassword(rest, stdin, stdout, stderr)
	case "retry-exports":
		return runRetryExports(rest, stdout, stderr)
	case "help", "-h", "--help":
		fmt.Fprint(stdout, usage)
		return nil
	}
	fmt.Fprint(stderr, usage)
	return fmt.Errorf("unknown command %q", cmd)
}

func newFlagSet(name string, stderr io.Writer) (*flag.FlagSet, *string) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	db := fs.String("db", "", "Path to the SQLite database (default $SQLITE_DB_PATH)")
	return fs, db
}

func openRepo(dbPath string) (*storage.SQLiteRepository, error) {
	cfg := config.Load()
	if dbPath != "" {
		cfg.SQLiteDBPath = dbPath
	}
	if err := cfg.ValidateStorage(); err != nil {
		return nil, err
	}
	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return repo, nil
}

func runRegister(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs, db := newFlagSet("register", stderr)
	username := fs.String("username", "", "Username")
	email := fs.String("email", "", "Email address")
	passwordFlag := fs.String("password", "", "Password (prompted for when omitted)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *username == "" || *email == "" {
		fs.PrintDefaults()
		return errors.New("missing required flags: username, email")
	}

	password, err := passwordOrPrompt(*passwordFlag, "Password: ", stdin, stdout)
	if err != nil {
		return err
	}

	repo, err := openRepo(*db)
	if err != nil {
		return err
	}
	defer repo.Close()

	user, err := services.NewAuthService(repo).Register(context.Background(), *username, *email, password)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "User %s created with ID %d\n", user.Username, user.ID)
	return nil
}

func runResetPassword(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs, db := newFlagSet("reset-password", stderr)
	email := fs.String("email", "", "Email address")
	passwordFlag := fs.String("password", "", "New password (prompted for when omitted)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *email == "" {
		fs.PrintDefaults()
		return errors.New("missing required flag: email")
	}

	password, err := passwordOrPrompt(*passwordFlag, "New password: ", stdin, stdout)
	if err != nil {
		return err
	}

	repo, err := openRepo(*db)
	if err != nil {
		return err
	}
	defer repo.Close()

	if err := services.NewAuthService(repo).ResetPassword(context.Background(), *email, password); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Password updated for %s\n", strings.ToLower(strings.TrimSpace(*email)))
	return nil
}

func runRetryExports(args []string, stdout, stderr io.Writer) error {
	fs, db := newFlagSet("retry-exports", stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}

	repo, err := openRepo(*db)
	if err != nil {
		return err
	}
	defer repo.Close()

	n, err := repo.RetryFailedSyncs(context.Background())
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Requeued %d expenses for export\n", n)
	return nil
}

func passwordOrPrompt(flagValue, prompt string, stdin io.Reader, stdout io.Writer) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	fmt.Fprint(stdout, prompt)
	password, err := readPassword(stdin)
	fmt.Fprintln(stdout)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	if strings.TrimSpace(password) == "" {
		return "", errors.New("password cannot be empty")
	}
	return password, nil
}

func readPassword(stdin io.Reader) (string, error) {
	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		if err != nil {
			return "", err
		}
		return string(b), nil
	}

	// Pipes and tests.
	scanner := bufio.NewScanner(stdin)
	if scanner.Scan() {
		return scanner.Text(), nil
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}
