// Command invisicipher is the command-line client: account commands against the
// auth server and local file encryption gated by a valid login.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/and161185/invisicipher/internal/client"
	"github.com/and161185/invisicipher/internal/crypto/filecrypt"
	"github.com/and161185/invisicipher/internal/errs"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

const usageText = `invisicipher CLI
Usage:
  invisicipher [-addr URL] [-timeout D] <cmd> [args]

Commands:
  version
  signup   -name N -email E [-phone P] -u U [-p P]
  login    -id IDENT [-p P]                                (saves token)
  me
  logout                                                  (deletes saved token)
  encrypt  -in FILE -cipher aes|blowfish [-key K]
  decrypt  -in FILE.enc -cipher aes|blowfish [-key K] [-out FILE]
`

type app struct {
	api    *client.Client
	tokens *client.TokenStore
	prompt *client.Prompter
	stdout io.Writer
	stderr io.Writer
}

// main dispatches subcommands.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdin *os.File, stdout, stderr io.Writer) int {
	defAddr := os.Getenv("INVISICIPHER_URL")
	if defAddr == "" {
		defAddr = "http://127.0.0.1:8000"
	}

	fs := flag.NewFlagSet("invisicipher", flag.ContinueOnError)
	fs.SetOutput(stderr)
	addr := fs.String("addr", defAddr, "auth server base URL")
	timeout := fs.Duration("timeout", client.DefaultTimeout, "HTTP request timeout")
	fs.Usage = func() { fmt.Fprint(stderr, usageText) }
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() < 1 {
		fs.Usage()
		return 2
	}

	a := &app{
		api:    client.New(*addr, *timeout),
		tokens: client.NewTokenStore(client.DefaultDir()),
		prompt: &client.Prompter{In: stdin, Out: stderr},
		stdout: stdout,
		stderr: stderr,
	}

	cmd, rest := fs.Arg(0), fs.Args()[1:]
	var err error
	switch cmd {
	case "version":
		fmt.Fprintf(stdout, "invisicipher %s (%s)\n", version, buildDate)
	case "signup":
		err = a.signup(ctx, rest)
	case "login":
		err = a.login(ctx, rest)
	case "me":
		err = a.me(ctx)
	case "logout":
		err = a.tokens.Delete()
		if err == nil {
			fmt.Fprintln(stdout, "logged out")
		}
	case "encrypt":
		err = a.encrypt(ctx, rest)
	case "decrypt":
		err = a.decrypt(ctx, rest)
	default:
		fmt.Fprintf(stderr, "unknown command %q\n", cmd)
		fs.Usage()
		return 2
	}
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 2
		}
		fmt.Fprintln(stderr, "error:", describe(err))
		return 1
	}
	return 0
}

// describe turns errors into short user-facing messages.
func describe(err error) string {
	switch {
	case errors.Is(err, errs.ErrPadding):
		return "wrong key or corrupted file"
	case errors.Is(err, client.ErrNoToken):
		return "login required"
	case errors.Is(err, errs.ErrAlreadyExists):
		return "username or email already exists"
	case errors.Is(err, errs.ErrRateLimited):
		return "too many login attempts, try again later"
	case errors.Is(err, errs.ErrInvalidCredentials):
		return "invalid credentials"
	}
	return err.Error()
}

func newFlags(name string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs
}

func (a *app) secret(v *string, label string) error {
	if *v != "" {
		return nil
	}
	s, err := a.prompt.Secret(label)
	if err != nil {
		return fmt.Errorf("read %s: %w", label, err)
	}
	*v = s
	return nil
}

func (a *app) signup(ctx context.Context, args []string) error {
	fs := newFlags("signup", a.stderr)
	name := fs.String("name", "", "full name")
	email := fs.String("email", "", "email")
	phone := fs.String("phone", "", "phone (optional)")
	user := fs.String("u", "", "username")
	pass := fs.String("p", "", "password (prompted if empty)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := a.secret(pass, "Password"); err != nil {
		return err
	}

	sum, err := a.api.Signup(ctx, client.SignupRequest{
		FullName: *name, Email: *email, Phone: *phone, Username: *user, Password: *pass,
	})
	if err != nil {
		return err
	}
	return printJSON(a.stdout, sum)
}

func (a *app) login(ctx context.Context, args []string) error {
	fs := newFlags("login", a.stderr)
	ident := fs.String("id", "", "username or email")
	pass := fs.String("p", "", "password (prompted if empty)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *ident == "" {
		return errors.New("need -id")
	}
	if err := a.secret(pass, "Password"); err != nil {
		return err
	}

	res, err := a.api.Login(ctx, *ident, *pass)
	if err != nil {
		return err
	}
	exp, err := a.tokens.Save(res.Token)
	if err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	fmt.Fprintf(a.stdout, "logged in as %s until %s\n", res.User.Username, exp.Local().Format(time.Kitchen))
	return nil
}

// authorized returns the saved token after confirming it with the server.
func (a *app) authorized(ctx context.Context) (string, error) {
	tok, err := a.tokens.Load()
	if err != nil {
		return "", err
	}
	if _, err := a.api.Me(ctx, tok); err != nil {
		if client.IsUnauthorized(err) {
			_ = a.tokens.Delete()
			return "", client.ErrNoToken
		}
		return "", err
	}
	return tok, nil
}

func (a *app) me(ctx context.Context) error {
	tok, err := a.tokens.Load()
	if err != nil {
		return err
	}
	sum, err := a.api.Me(ctx, tok)
	if err != nil {
		if client.IsUnauthorized(err) {
			return client.ErrNoToken
		}
		return err
	}
	return printJSON(a.stdout, sum)
}

func (a *app) cryptFlags(name string, args []string) (in, key, out string, c filecrypt.Cipher, err error) {
	fs := newFlags(name, a.stderr)
	fs.StringVar(&in, "in", "", "input file")
	cipherName := fs.String("cipher", "aes", "aes or blowfish")
	fs.StringVar(&key, "key", "", "passphrase (prompted if empty)")
	if name == "decrypt" {
		fs.StringVar(&out, "out", "", "output file (default: decrypted_<name> next to the input)")
	}
	if err = fs.Parse(args); err != nil {
		return
	}
	if in == "" {
		err = errors.New("need -in")
		return
	}
	c, err = filecrypt.ParseCipher(*cipherName)
	return
}

func (a *app) encrypt(ctx context.Context, args []string) error {
	in, key, _, c, err := a.cryptFlags("encrypt", args)
	if err != nil {
		return err
	}
	if _, err := a.authorized(ctx); err != nil {
		return err
	}
	if err := a.secret(&key, "Key"); err != nil {
		return err
	}
	out, err := filecrypt.Encrypt(in, key, c)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.stdout, out)
	return nil
}

func (a *app) decrypt(ctx context.Context, args []string) error {
	in, key, out, c, err := a.cryptFlags("decrypt", args)
	if err != nil {
		return err
	}
	if _, err := a.authorized(ctx); err != nil {
		return err
	}
	if err := a.secret(&key, "Key"); err != nil {
		return err
	}
	if out == "" {
		out, err = filecrypt.Decrypt(in, key, c)
	} else {
		err = filecrypt.DecryptTo(in, out, key, c)
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(a.stdout, out)
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
