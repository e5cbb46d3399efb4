package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/raleighpd/scenelog/internal/config"
	"github.com/raleighpd/scenelog/internal/lifecycle"
	"github.com/raleighpd/scenelog/internal/tui"
	"github.com/raleighpd/scenelog/pkg/client"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type rootOptions struct {
	apiURL string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "scenelog",
		Short: "Record crime scene perimeters and hand out export links",
		Long: `scenelog signs a field officer in, records a scene with its perimeter
and builds CSV or PDF export links for it.

Environment Variables:
  SCENELOG_SUPABASE_URL   Backend base URL (required unless --api-url is set)
  SCENELOG_ANON_KEY       Public API key sent with every request (required)
  SCENELOG_DEFAULT_EMAIL  Prefills the login form
  SCENELOG_PASSWORD       Password for the create command
  SCENELOG_LOG_LEVEL      debug, info, warn or error (default: info)
  SCENELOG_LOG_FORMAT     console or json (default: console)
  SCENELOG_LOG_FILE       Write logs here instead of stderr`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTUI(cmd.Context(), opts)
		},
	}
	cmd.PersistentFlags().StringVar(&opts.apiURL, "api-url", "", "Backend base URL (overrides SCENELOG_SUPABASE_URL)")

	cmd.AddCommand(newCreateCmd(opts), newVersionCmd())
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the scenelog version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "scenelog "+version)
		},
	}
}

func runTUI(ctx context.Context, opts *rootOptions) error {
	cfg, err := config.Load(opts.apiURL)
	if err != nil {
		return err
	}
	// The alt screen owns the terminal, so logs only go to a file.
	log, closeLog, err := newLogger(cfg, io.Discard)
	if err != nil {
		return err
	}
	defer closeLog() //nolint:errcheck

	m := newMachine(cfg, log)
	app := tui.NewApp(ctx, m, tui.WithDefaultEmail(cfg.DefaultEmail))

	p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("tui error: %w", err)
	}
	// Credentials never outlive the process, but drop them explicitly.
	m.Logout()
	return nil
}

// newMachine wires the Supabase client into a fresh lifecycle machine.
func newMachine(cfg *config.Config, log zerolog.Logger) *lifecycle.Machine {
	c := client.New(cfg.SupabaseURL, cfg.AnonKey,
		client.WithTimeout(cfg.HTTPTimeout),
		client.WithRefreshLeeway(cfg.RefreshLeeway),
		client.WithLogger(log.With().Str("component", "client").Logger()),
	)
	return lifecycle.New(c, c, c.ExportLinks(),
		lifecycle.WithLogger(log.With().Str("component", "lifecycle").Logger()))
}

// newLogger builds the process logger. Output goes to cfg.LogFile when set,
// else to fallback. The returned func closes the log file, if one was opened.
func newLogger(cfg *config.Config, fallback io.Writer) (zerolog.Logger, func() error, error) {
	lvl, err := cfg.Level()
	if err != nil {
		return zerolog.Nop(), nil, err
	}
	out := fallback
	closeFn := func() error { return nil }
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return zerolog.Nop(), nil, fmt.Errorf("open log file: %w", err)
		}
		out = f
		closeFn = f.Close
	}
	if cfg.LogFormat == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen, NoColor: cfg.LogFile != ""}
	}
	return zerolog.New(out).Level(lvl).With().Timestamp().Logger(), closeFn, nil
}
