// Package commands holds the keycal subcommands.
package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"keycal/internal/auth"
	"keycal/internal/client"
	"keycal/internal/config"
	"keycal/internal/ics"
	appLog "keycal/internal/log"
	"keycal/internal/model"
	"keycal/internal/scheduler"
	"keycal/internal/session"
	"keycal/internal/store"
	"keycal/internal/store/postgres"
	"keycal/internal/timefmt"
	"keycal/internal/web"
)

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and the background jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if listen, _ := cmd.Flags().GetString("listen"); listen != "" {
				cfg.Listen = listen
			}
			return runServer(cmd.Context(), cfg)
		},
	}
	cmd.Flags().String("listen", "", "HTTP listen address (overrides config if set)")
	return cmd
}

// NewAgendaCommand creates the agenda command, which prints one day and the
// week's goals from a running server.
func NewAgendaCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agenda",
		Short: "Print a day's schedule and weekly goal progress",
		RunE: func(cmd *cobra.Command, args []string) error {
			server, _ := cmd.Flags().GetString("server")
			token, _ := cmd.Flags().GetString("token")
			date, _ := cmd.Flags().GetString("date")
			return runAgenda(cmd.Context(), cmd.OutOrStdout(), server, token, date)
		},
	}
	cmd.Flags().String("server", "http://127.0.0.1:8080", "Base URL of a keycal server")
	cmd.Flags().String("token", os.Getenv("KEYCAL_TOKEN"), "Bearer token (empty against a demo server)")
	cmd.Flags().String("date", "", "Day to show as YYYY-MM-DD (default today)")
	return cmd
}

// NewExportCommand creates the export command.
func NewExportCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a user's events as an iCalendar file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			user, _ := cmd.Flags().GetString("user")
			out, _ := cmd.Flags().GetString("out")
			return runExport(cmd.Context(), cmd.OutOrStdout(), cfg, user, out)
		},
	}
	cmd.Flags().String("user", "", "User id (default the demo user)")
	cmd.Flags().String("out", "", "Output file (default stdout)")
	return cmd
}

// NewTokenCommand creates the token command, which signs a bearer token
// with the configured secret.
func NewTokenCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token <user>",
		Short: "Issue a bearer token for a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cfg.Auth.JWTSecret == "" {
				return errors.New("auth.jwt_secret is not set")
			}
			ttl, _ := cmd.Flags().GetDuration("ttl")
			token, err := auth.Issue(auth.Config{Secret: cfg.Auth.JWTSecret, Issuer: cfg.Auth.JWTIssuer}, args[0], ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().Duration("ttl", 24*time.Hour, "Token lifetime")
	return cmd
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := appLog.Configure(cfg.LogFormat, appLog.ParseLevel(cfg.LogLevel)); err != nil {
		return nil, err
	}
	return cfg, nil
}

// openStore returns the configured store and a close func.
func openStore(ctx context.Context, cfg *config.Config, loc *time.Location) (store.Store, func(), error) {
	switch cfg.Store.Driver {
	case "postgres":
		pool, err := postgres.Connect(ctx, cfg.Store.PostgresURL)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres: %w", err)
		}
		repo := postgres.NewRepository(pool, loc)
		if err := repo.Migrate(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return repo, pool.Close, nil
	default:
		mem := store.NewMemory()
		if cfg.DemoMode {
			if err := store.SeedDemo(ctx, mem, cfg.Auth.DemoUser, time.Now().In(loc)); err != nil {
				return nil, nil, err
			}
		}
		return mem, func() {}, nil
	}
}

func subscriptions(cfg *config.Config) []ics.Source {
	out := make([]ics.Source, 0, len(cfg.Subscriptions))
	for _, s := range cfg.Subscriptions {
		cat, _ := model.ParseCategory(s.Category)
		out = append(out, ics.Source{ID: s.ID, Name: s.Name, URL: s.URL, UserID: s.UserID, Category: cat})
	}
	return out
}

func runServer(parent context.Context, cfg *config.Config) error {
	appLog.Info("keycal starting",
		"listen", cfg.Listen,
		"timezone", cfg.Timezone,
		"store", cfg.Store.Driver,
		"demo_mode", cfg.DemoMode,
		"subscriptions", len(cfg.Subscriptions),
	)

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	st, closeStore, err := openStore(ctx, cfg, loc)
	if err != nil {
		return err
	}
	defer closeStore()

	sched := scheduler.New(st, ics.NewFetcher(cfg.CacheDir), subscriptions(cfg), loc)
	if err := sched.Start(ctx, cfg.RefreshCron, cfg.RolloverCron); err != nil {
		return err
	}
	if len(cfg.Subscriptions) > 0 {
		go func() {
			if err := sched.RefreshAll(ctx); err != nil {
				appLog.Warn("initial subscription refresh incomplete", "error", err)
			}
		}()
	}

	err = web.StartServer(ctx, web.NewServer(cfg, st))
	appLog.Info("keycal exiting")
	return err
}

func runAgenda(ctx context.Context, w io.Writer, server, token, date string) error {
	c, err := client.New(server, token)
	if err != nil {
		return err
	}
	day := time.Now()
	if date != "" {
		if day, err = timefmt.DayDate(date, time.Local); err != nil {
			return fmt.Errorf("date %q: %w", date, err)
		}
	}

	s := session.New("", c, c, day)
	if !s.Load(ctx, model.DateRange{}) {
		return errors.New("could not load events from " + server)
	}

	fmt.Fprintln(w, timefmt.FormatHeaderDate(day))
	slots := s.DayLayout()
	if len(slots) == 0 {
		fmt.Fprintln(w, "  no events")
	}
	for _, slot := range slots {
		e := slot.Event
		col := ""
		if slot.TotalColumns > 1 {
			col = fmt.Sprintf(" [%d/%d]", slot.Column+1, slot.TotalColumns)
		}
		fmt.Fprintf(w, "  %8s - %-8s %-8s %s%s\n", e.StartTime, e.EndTime, e.Category, e.Title, col)
	}

	progress := s.Indicators(day)
	if len(progress) > 0 {
		fmt.Fprintln(w, "\nWeekly goals")
	}
	for _, p := range progress {
		actual := fmt.Sprintf("%.1fh", p.ActualHours)
		if p.MeasurementType == model.MeasureFrequency {
			actual = fmt.Sprintf("%dx", p.ActualFrequency)
		}
		fmt.Fprintf(w, "  %-8s %6s of %-6g %3.0f%%\n", p.Category, actual, p.Goal(), p.Percent())
	}
	return nil
}

func runExport(ctx context.Context, w io.Writer, cfg *config.Config, user, out string) error {
	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	if user == "" {
		user = cfg.Auth.DemoUser
	}
	st, closeStore, err := openStore(ctx, cfg, loc)
	if err != nil {
		return err
	}
	defer closeStore()

	events, err := st.ListEvents(ctx, user, model.DateRange{})
	if err != nil {
		return err
	}
	body := ics.Export("keycal "+user, events, time.Now())
	if out == "" {
		_, err = io.WriteString(w, body)
		return err
	}
	if err := os.WriteFile(out, []byte(body), 0o644); err != nil {
		return err
	}
	appLog.Info("calendar exported", "user", user, "events", len(events), "path", out)
	return nil
}
