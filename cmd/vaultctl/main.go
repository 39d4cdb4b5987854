// Command vaultctl manages the vault data directory from a terminal: it
// reports status, registers or resets the master credential and generates
// passwords.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/vaultpass/credcache/internal/config"
	"github.com/vaultpass/credcache/internal/model"
	"github.com/vaultpass/credcache/internal/repository"
	"github.com/vaultpass/credcache/internal/service"
	"github.com/vaultpass/credcache/internal/session"
)

const usage = `usage: vaultctl <command> [flags]

commands:
  status     show whether a master credential is registered
  register   create the master credential
  reset      replace the master credential and wipe every entry
  generate   print a random password
`

var errUsage = errors.New("invalid usage")

func main() {
	_ = godotenv.Load()
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdin, os.Stdout)
	stop()

	if err != nil {
		if !errors.Is(err, errUsage) {
			fmt.Fprintln(os.Stderr, "vaultctl:", err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(stdout, usage)
		return errUsage
	}

	switch args[0] {
	case "generate":
		return runGenerate(args[1:], stdout)
	case "status", "register", "reset":
	default:
		fmt.Fprintf(stdout, "unknown command %q\n\n%s", args[0], usage)
		return errUsage
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return err
	}

	db, err := repository.NewDB(ctx, cfg.DBDriver, cfg.DatabaseDSN)
	if err != nil {
		return err
	}
	defer db.Close()

	auth := service.NewAuthService(repository.NewMasterRepository(db), session.NewManager(), cfg.DataDir, cfg.JWTSecret, cfg.TokenExpiry)
	in := bufio.NewReader(stdin)

	switch args[0] {
	case "status":
		return runStatus(ctx, auth, cfg.DataDir, stdout)
	case "register":
		return runRegister(ctx, auth, in, stdout)
	default:
		return runReset(ctx, auth, in, stdout)
	}
}

func runStatus(ctx context.Context, auth *service.AuthService, dataDir string, w io.Writer) error {
	status, err := auth.Status(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "data directory: %s\n", dataDir)
	fmt.Fprintf(w, "registered:     %t\n", status.Registered)
	return nil
}

func runRegister(ctx context.Context, auth *service.AuthService, in *bufio.Reader, w io.Writer) error {
	req, err := readCredentials(in, w)
	if err != nil {
		return err
	}
	if err := auth.Register(ctx, req); err != nil {
		return err
	}
	fmt.Fprintf(w, "master credential registered for %s\n", req.Username)
	return nil
}

func runReset(ctx context.Context, auth *service.AuthService, in *bufio.Reader, w io.Writer) error {
	fmt.Fprintln(w, "Resetting the master password deletes every stored entry.")
	answer, err := promptLine(in, w, "Type RESET to continue")
	if err != nil {
		return err
	}
	if answer != "RESET" {
		fmt.Fprintln(w, "aborted")
		return nil
	}

	req, err := readCredentials(in, w)
	if err != nil {
		return err
	}
	if err := auth.ResetPassword(ctx, req); err != nil {
		return err
	}
	fmt.Fprintf(w, "master credential reset for %s, vault wiped\n", req.Username)
	return nil
}

func readCredentials(in *bufio.Reader, w io.Writer) (model.RegisterRequest, error) {
	username, err := promptLine(in, w, "Username")
	if err != nil {
		return model.RegisterRequest{}, err
	}
	password, err := promptPassword(w, "Master password")
	if err != nil {
		return model.RegisterRequest{}, err
	}
	confirm, err := promptPassword(w, "Confirm master password")
	if err != nil {
		return model.RegisterRequest{}, err
	}
	return model.RegisterRequest{Username: username, Password: password, ConfirmPassword: confirm}, nil
}

func runGenerate(args []string, w io.Writer) error {
	fs := flag.NewFlagSet("generate", flag.ContinueOnError)
	fs.SetOutput(w)
	length := fs.Int("length", 0, "password length (8-128, default 12)")
	upper := fs.Bool("upper", true, "include uppercase letters")
	digits := fs.Int("digits", 2, "number of distinct digits")
	specials := fs.Int("specials", 2, "number of distinct special characters")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	resp, err := service.NewGeneratorService().Generate(model.GenerateRequest{
		Length:    *length,
		Uppercase: upper,
		Digits:    digits,
		Specials:  specials,
	})
	if err != nil {
		return err
	}

	fmt.Fprintln(w, resp.Password)
	return nil
}
