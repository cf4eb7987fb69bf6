// Command receiptvault is the terminal frontend for the ReceiptVault
// backend: account and session management, receipt transport, analytics
// display, and subscription/plan handling.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"golang.org/x/term"

	"receiptvault/internal/api"
	"receiptvault/internal/config"
	"receiptvault/internal/models"
	"receiptvault/internal/session"
)

func main() {
	loadLocalEnv()

	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		if err == flag.ErrHelp {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadLocalEnv() {
	// No .env is the normal case outside development.
	_ = godotenv.Load()
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		printUsage(stderr)
		return errors.New("missing command")
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "register":
		return runRegister(rest, stdin, stdout, stderr)
	case "login":
		return runLogin(rest, stdin, stdout, stderr)
	case "logout":
		return runLogout(rest, stdout, stderr)
	case "whoami":
		return runWhoami(rest, stdout, stderr)
	case "receipts":
		return runReceipts(rest, stdout, stderr)
	case "receipt":
		return runReceipt(rest, stdout, stderr)
	case "upload":
		return runUpload(rest, stdout, stderr)
	case "update":
		return runUpdate(rest, stdout, stderr)
	case "approve":
		return runApprove(rest, stdout, stderr)
	case "delete":
		return runDelete(rest, stdout, stderr)
	case "restore":
		return runRestore(rest, stdout, stderr)
	case "deleted":
		return runDeleted(rest, stdout, stderr)
	case "analytics":
		return runAnalytics(rest, stdout, stderr)
	case "plans":
		return runPlans(rest, stdout, stderr)
	case "status":
		return runStatus(rest, stdout, stderr)
	case "upgrade":
		return runUpgrade(rest, stdout, stderr)
	case "checkout-complete":
		return runCheckoutComplete(rest, stdout, stderr)
	case "help", "-h", "--help":
		printUsage(stdout)
		return nil
	default:
		printUsage(stderr)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `Usage: receiptvault <command> [flags]

Account:
  register            Create a new account
  login               Sign in and store the session
  logout              Discard the stored session
  whoami              Show the signed-in user

Receipts:
  receipts            List receipts
  receipt             Show one receipt (-id)
  upload              Upload a receipt image (-file)
  update              Edit receipt fields (-id ...)
  approve             Approve a pending receipt (-id)
  delete              Delete a receipt (-id)
  restore             Restore a deleted receipt (-id)
  deleted             List deleted receipts
  analytics           Show expense analytics (-start, -end)

Billing:
  plans               Show the plan catalog (-id or -price for one plan)
  status              Show subscription status
  upgrade             Start a plan upgrade checkout (-plan)
  checkout-complete   Confirm a finished checkout (-url)`)
}

// appEnv bundles the wired client-side dependencies for one command run.
type appEnv struct {
	cfg    config.Config
	client *api.Client
	store  *session.Store
}

func newAppEnv() (*appEnv, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	store, err := session.Open(cfg.StatePath)
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}

	return &appEnv{
		cfg:    cfg,
		client: api.New(cfg.APIBaseURL, &http.Client{}),
		store:  store,
	}, nil
}

func (e *appEnv) Close() {
	if err := e.store.Close(); err != nil {
		log.Printf("close session store: %v", err)
	}
}

// authenticate runs the session bootstrap for a protected command. With no
// stored credential it prints the login hint and returns ErrLoginRequired
// without touching the network.
func (e *appEnv) authenticate(ctx context.Context, stderr io.Writer) (string, *models.User, error) {
	boot := session.NewBootstrap(e.client, e.store)
	user, err := boot.Activate(ctx)
	if errors.Is(err, session.ErrLoginRequired) {
		fmt.Fprintln(stderr, "You are not signed in. Run 'receiptvault login' first.")
		return "", nil, err
	}
	if err != nil {
		return "", nil, err
	}

	token, err := e.store.Token()
	if err != nil {
		return "", nil, fmt.Errorf("read stored credential: %w", err)
	}
	return token, user, nil
}

func readPassword(stdin io.Reader) (string, error) {
	// Check if stdin is a terminal
	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		bytePassword, err := term.ReadPassword(int(f.Fd()))
		if err != nil {
			return "", err
		}
		return string(bytePassword), nil
	}

	// Fallback for non-terminal (e.g. tests, pipes)
	scanner := bufio.NewScanner(stdin)
	if scanner.Scan() {
		return scanner.Text(), nil
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

func promptPassword(stdin io.Reader, stdout io.Writer, prompt string) (string, error) {
	fmt.Fprint(stdout, prompt)
	password, err := readPassword(stdin)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	fmt.Fprintln(stdout) // Print newline after password input
	return password, nil
}
