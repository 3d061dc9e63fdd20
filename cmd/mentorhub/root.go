package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	fcolor "github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"mentorhub/internal/app"
	"mentorhub/internal/client"
	"mentorhub/internal/config"
	"mentorhub/internal/dashboard"
	"mentorhub/internal/logging"
	"mentorhub/internal/store"
	"mentorhub/internal/view"
)

var errNotLoggedIn = errors.New("not logged in")

// cli carries the streams, flags and lazily loaded configuration shared by commands.
type cli struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	configFile string
	apiURL     string
	logLevel   string

	cfg *config.Config
	log *zap.Logger
	now func() time.Time
}

func newCLI(stdin io.Reader, stdout, stderr io.Writer) *cli {
	return &cli{stdin: stdin, stdout: stdout, stderr: stderr, now: time.Now}
}

func newRootCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "mentorhub",
		Short:         "Manage mentorship sessions from the terminal",
		Long:          "mentorhub lists, approves and rates mentorship sessions and serves a JSON gateway for browser front ends.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.setup()
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if c.log != nil {
				_ = c.log.Sync()
			}
		},
	}
	cmd.SetIn(c.stdin)
	cmd.SetOut(c.stdout)
	cmd.SetErr(c.stderr)

	flags := cmd.PersistentFlags()
	flags.StringVar(&c.configFile, "config", "", "config file (default: mentorhub.{yaml,json,toml} in . or the user config dir)")
	flags.StringVar(&c.apiURL, "api-url", "", "MentorHub backend base URL")
	flags.StringVar(&c.logLevel, "log-level", "", "log level: debug, info, warn, error")

	cmd.AddCommand(
		newLoginCmd(c),
		newRegisterCmd(c),
		newLogoutCmd(c),
		newWhoamiCmd(c),
		newSessionsCmd(c),
		newDashboardCmd(c),
		newAnalyticsCmd(c),
		newCalendarCmd(c),
		newApproveCmd(c),
		newDeclineCmd(c),
		newFeedbackCmd(c),
		newRequestCmd(c),
		newMentorsCmd(c),
		newProfileCmd(c),
		newWarningsCmd(c),
		newServeCmd(c),
	)
	return cmd
}

// setup resolves configuration once flags are parsed.
// FUNCTIONAL DISCOVERY: Configuration precedence: defaults < file < environment < flags
func (c *cli) setup() error {
	overrides := map[string]any{}
	if c.apiURL != "" {
		overrides["api.base_url"] = c.apiURL
	}
	if c.logLevel != "" {
		overrides["log.level"] = c.logLevel
	}

	cfg, err := config.Load(config.LoadOptions{File: c.configFile, EnvFile: ".env", Overrides: overrides})
	if err != nil {
		return err
	}
	log, err := logging.New(cfg.Log, c.stderr)
	if err != nil {
		return err
	}
	c.cfg = cfg
	c.log = log
	return nil
}

func (c *cli) renderer() *view.Renderer {
	return view.NewRenderer(c.stdout, time.Local)
}

func (c *cli) success(format string, args ...any) {
	fcolor.New(fcolor.FgGreen).Fprintf(c.stdout, "✔ "+format+"\n", args...)
}

func (c *cli) warn(format string, args ...any) {
	fcolor.New(fcolor.FgYellow).Fprintf(c.stderr, "⚠ "+format+"\n", args...)
}

// withStore opens the local store for the duration of fn.
func (c *cli) withStore(fn func(*store.Store) error) error {
	st, err := app.OpenStore(c.cfg, c.log)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()
	return fn(st)
}

// credentials loads the saved token for the configured backend and rejects
// tokens whose expiry has passed.
func (c *cli) credentials(ctx context.Context, st *store.Store) (*store.Credentials, error) {
	creds, err := st.LoadCredentials(ctx, c.cfg.API.BaseURL)
	if errors.Is(err, store.ErrNoCredentials) {
		return nil, fmt.Errorf("%w to %s", errNotLoggedIn, c.cfg.API.BaseURL)
	}
	if err != nil {
		return nil, err
	}

	if identity, err := client.ParseIdentity(creds.Token); err == nil && identity.Expired(c.now()) {
		return nil, fmt.Errorf("%w: saved token expired at %s", errNotLoggedIn, identity.ExpiresAt.Local().Format(time.RFC1123))
	}
	return creds, nil
}

// withService runs fn with a dashboard service acting as the logged-in account.
func (c *cli) withService(ctx context.Context, fn func(*dashboard.Service, *store.Store) error) error {
	return c.withStore(func(st *store.Store) error {
		creds, err := c.credentials(ctx, st)
		if err != nil {
			return err
		}
		api, err := app.NewClient(c.cfg, creds.Token, c.log)
		if err != nil {
			return err
		}
		svc := dashboard.NewService(api,
			dashboard.WithWarningRecorder(st),
			dashboard.WithLogger(c.log),
			dashboard.WithClock(c.now))
		return fn(svc, st)
	})
}

// readPassword prompts on a terminal without echo, or reads one line from
// piped input.
func (c *cli) readPassword(prompt string) (string, error) {
	if f, ok := c.stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(c.stderr, prompt)
		raw, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(c.stderr)
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return string(raw), nil
	}

	line, err := bufio.NewReader(c.stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
