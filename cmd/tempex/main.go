package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	flag "github.com/spf13/pflag"

	"tempex/internal/config"
	"tempex/internal/dates"
	"tempex/internal/ics"
	appLog "tempex/internal/log"
	"tempex/internal/model"
	"tempex/internal/texpr"
	"tempex/internal/web"
)

// flagConfig holds CLI flag values.
type flagConfig struct {
	configPath string
	listen     string
	schedule   string
	date       string
	from       string
	to         string
	ics        bool
	serve      bool
	debug      bool
	logLevel   string
}

func main() {
	flags := parseFlags(os.Args[1:])
	level, err := resolveLogLevel(flags)
	if err != nil {
		appLog.Error("invalid log level", err, "log_level", flags.logLevel)
		os.Exit(2)
	}
	appLog.SetLevel(level)

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}

	// CLI --listen overrides config file listen if provided.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}

	appLog.Debug("effective config",
		"listen", conf.Listen,
		"refresh", conf.RefreshCron,
		"horizon_days", conf.HorizonDays,
		"schedule_count", len(conf.Schedules),
	)

	if flags.serve {
		if err := serve(conf); err != nil {
			appLog.Error("server stopped", err)
			os.Exit(1)
		}
		return
	}

	if err := runOnce(os.Stdout, conf, flags); err != nil {
		appLog.Error("tempex failed", err)
		os.Exit(1)
	}
}

func parseFlags(args []string) flagConfig {
	var cfg flagConfig

	fs := flag.NewFlagSet("tempex", flag.ExitOnError)
	fs.StringVarP(&cfg.configPath, "config", "c", "tempex.yaml", "Path to config file")
	fs.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	fs.StringVarP(&cfg.schedule, "schedule", "s", "", "Schedule name to evaluate")
	fs.StringVar(&cfg.date, "date", "", "Report whether the schedule matches this YYYY-MM-DD date")
	fs.StringVar(&cfg.from, "from", "", "First YYYY-MM-DD date of the range to list")
	fs.StringVar(&cfg.to, "to", "", "YYYY-MM-DD date after the last date of the range to list")
	fs.BoolVar(&cfg.ics, "ics", false, "Print the listed range as an ICS feed")
	fs.BoolVar(&cfg.serve, "serve", false, "Run the HTTP API with cron-driven refresh")
	fs.BoolVar(&cfg.debug, "debug", false, "Enable debug logging (same as --log-level=debug)")
	fs.StringVar(&cfg.logLevel, "log-level", "info", "Minimum log level: debug, info or error")

	_ = fs.Parse(args)
	return cfg
}

// resolveLogLevel applies --log-level, with --debug taking precedence.
func resolveLogLevel(flags flagConfig) (appLog.Level, error) {
	if flags.debug {
		return appLog.LevelDebug, nil
	}
	if flags.logLevel == "" {
		return appLog.LevelInfo, nil
	}
	return appLog.ParseLevel(flags.logLevel)
}

// runOnce answers a single --date or --from/--to query and writes the
// result to w.
func runOnce(w io.Writer, conf *config.Config, flags flagConfig) error {
	compiled, err := conf.Compile()
	if err != nil {
		return err
	}
	if flags.schedule == "" {
		return errors.New("--schedule is required")
	}

	var sched *config.Compiled
	for i := range compiled {
		if compiled[i].Name == flags.schedule {
			sched = &compiled[i]
			break
		}
	}
	if sched == nil {
		return fmt.Errorf("unknown schedule %q", flags.schedule)
	}

	if flags.date != "" {
		d, err := dates.ParseDay(flags.date)
		if err != nil {
			return err
		}
		ok, err := sched.Expr.Includes(d)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, ok)
		return err
	}

	if flags.from == "" || flags.to == "" {
		return errors.New("either --date or both --from and --to are required")
	}
	from, err := dates.ParseDay(flags.from)
	if err != nil {
		return err
	}
	to, err := dates.ParseDay(flags.to)
	if err != nil {
		return err
	}

	got, err := texpr.Occurrences(sched.Expr, from, to)
	if err != nil {
		return err
	}
	appLog.Debug("occurrences listed", "schedule", sched.Name, "count", len(got))

	if flags.ics {
		occs := make([]model.Occurrence, 0, len(got))
		for _, d := range got {
			occs = append(occs, model.Occurrence{Schedule: sched.Name, Summary: sched.Summary, Date: d})
		}
		_, err = io.WriteString(w, ics.Export(sched.Summary, occs, time.Now()))
		return err
	}

	for _, d := range got {
		if _, err := fmt.Fprintln(w, d.Format(time.DateOnly)); err != nil {
			return err
		}
	}
	return nil
}

// serve runs the HTTP API until SIGINT/SIGTERM, refreshing the
// occurrence cache on conf.RefreshCron.
func serve(conf *config.Config) error {
	srv, err := web.NewServer(conf)
	if err != nil {
		return err
	}

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := srv.Refresh(ctx); err != nil {
		return err
	}

	c := cron.New(cron.WithLocation(time.UTC))
	if _, err := c.AddFunc(conf.RefreshCron, func() {
		if err := srv.Refresh(ctx); err != nil {
			appLog.Error("scheduled refresh failed", err)
		}
	}); err != nil {
		return fmt.Errorf("refresh cron %q: %w", conf.RefreshCron, err)
	}
	c.Start()
	defer func() {
		<-c.Stop().Done()
	}()

	appLog.Info("tempex serving", "listen", conf.Listen, "refresh", conf.RefreshCron)
	err = srv.ListenAndServe(ctx)
	appLog.Info("tempex exiting")
	return err
}
