package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"golang.org/x/term"

	"github.com/stemsi/exstem-assessment/internal/client"
	"github.com/stemsi/exstem-assessment/internal/config"
	"github.com/stemsi/exstem-assessment/internal/logger"
	"github.com/stemsi/exstem-assessment/internal/session"
)

func main() {
	var token, baseURL string
	flag.StringVar(&token, "token", os.Getenv("INVITE_TOKEN"), "Invite token (prompted when empty)")
	flag.StringVar(&baseURL, "api", "", "Assessment API base URL (defaults to API_BASE_URL)")
	flag.Parse()

	cfg := config.Load()
	if baseURL == "" {
		baseURL = cfg.APIBaseURL
	}
	// Logs go to stderr so the prompt stays readable.
	log := logger.SetupTo(os.Stderr, cfg.LogLevel, cfg.LogFormat).With().Str("component", "candidate").Logger()

	in := bufio.NewReader(os.Stdin)
	if token == "" {
		t, err := readToken(in)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to read invite token")
		}
		token = t
	}
	if token == "" {
		fmt.Fprintln(os.Stderr, "an invite token is required")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	out := newOutput(os.Stdout)
	api := client.New(baseURL, client.WithTimeout(cfg.HTTPTimeout))
	ctrl := session.New(api, token,
		session.WithAutosaveDelay(cfg.AutosaveDelay),
		session.WithSavedDisplay(cfg.SavedDisplay),
		session.WithSubmitRetries(cfg.SubmitRetries, cfg.SubmitRetryDelay),
		session.WithRequestTimeout(cfg.HTTPTimeout),
		session.WithLogger(log),
		session.WithEventHandler(out.event),
	)
	defer func() {
		ctrl.Close()
		ctrl.Wait()
	}()

	if err := ctrl.Load(ctx); err != nil {
		out.printf("%s\n", ctrl.Snapshot().Error)
		return
	}

	r := &repl{ctrl: ctrl, out: out}
	r.banner()
	r.run(ctx, bufio.NewScanner(in))
}

// readToken prompts for the invite token without echoing it when stdin is a
// terminal.
func readToken(in *bufio.Reader) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		line, err := in.ReadString('\n')
		if err != nil && line == "" {
			return "", err
		}
		return strings.TrimSpace(line), nil
	}

	fmt.Fprint(os.Stderr, "Invite token: ")
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}
