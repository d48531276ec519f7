package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/pcdogyu/trader-clock/internal/alerts"
	"github.com/pcdogyu/trader-clock/internal/calendar"
	"github.com/pcdogyu/trader-clock/internal/config"
	"github.com/pcdogyu/trader-clock/internal/export"
	"github.com/pcdogyu/trader-clock/internal/logger"
	"github.com/pcdogyu/trader-clock/internal/market"
	"github.com/pcdogyu/trader-clock/internal/memstore"
	"github.com/pcdogyu/trader-clock/internal/metrics"
	"github.com/pcdogyu/trader-clock/internal/notify"
	"github.com/pcdogyu/trader-clock/internal/prefs"
	"github.com/pcdogyu/trader-clock/internal/scheduler"
	"github.com/pcdogyu/trader-clock/internal/store/sqlite"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cmd := os.Args[1]
	switch cmd {
	case "init-db":
		fs := flag.NewFlagSet("init-db", flag.ExitOnError)
		cfgPath := fs.String("config", "configs/config.yaml", "config path (YAML)")
		_ = fs.Parse(os.Args[2:])

		cfg, err := config.Load(*cfgPath)
		fatalIf(err)
		store := openStore(cfg)
		defer store.DB().Close()
		fmt.Printf("db initialized: %s\n", cfg.DBPath)
	case "serve":
		fs := flag.NewFlagSet("serve", flag.ExitOnError)
		cfgPath := fs.String("config", "configs/config.yaml", "config path (YAML)")
		_ = fs.Parse(os.Args[2:])

		cfg, err := config.Load(*cfgPath)
		fatalIf(err)
		fatalIf(serve(cfg))
	case "status":
		fs := flag.NewFlagSet("status", flag.ExitOnError)
		cfgPath := fs.String("config", "configs/config.yaml", "config path (YAML)")
		atStr := fs.String("at", "", "instant to evaluate (RFC3339), default: now")
		_ = fs.Parse(os.Args[2:])

		cfg, err := config.Load(*cfgPath)
		fatalIf(err)
		at := time.Now()
		if *atStr != "" {
			at, err = time.Parse(time.RFC3339, *atStr)
			fatalIf(err)
		}
		engine, err := market.NewEngine(cfg.Market())
		fatalIf(err)
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		fatalIf(enc.Encode(engine.Evaluate(at)))
	case "export":
		fs := flag.NewFlagSet("export", flag.ExitOnError)
		cfgPath := fs.String("config", "configs/config.yaml", "config path (YAML)")
		out := fs.String("out", "alerts.xlsx", "output xlsx path")
		_ = fs.Parse(os.Args[2:])

		cfg, err := config.Load(*cfgPath)
		fatalIf(err)
		store := openStore(cfg)
		defer store.DB().Close()

		ctx := context.Background()
		rules, err := store.ListAlerts(ctx)
		fatalIf(err)
		history, err := store.QueryHistory(ctx, 10000)
		fatalIf(err)
		f, err := os.Create(*out)
		fatalIf(err)
		defer f.Close()
		fatalIf(export.WriteAlerts(f, rules, history))
		fmt.Printf("exported %d alerts, %d history rows to %s\n", len(rules), len(history), *out)
	case "calendar":
		fs := flag.NewFlagSet("calendar", flag.ExitOnError)
		cfgPath := fs.String("config", "configs/config.yaml", "config path (YAML)")
		days := fs.Int("days", 7, "number of days")
		out := fs.String("out", "-", "output .ics path, - for stdout")
		_ = fs.Parse(os.Args[2:])

		cfg, err := config.Load(*cfgPath)
		fatalIf(err)
		engine, err := market.NewEngine(cfg.Market())
		fatalIf(err)

		var w io.Writer = os.Stdout
		if *out != "-" {
			f, err := os.Create(*out)
			fatalIf(err)
			defer f.Close()
			w = f
		}
		fatalIf(calendar.Write(w, calendar.Build(engine, time.Now(), *days)))
	default:
		usage()
		os.Exit(2)
	}
}

func serve(cfg config.Config) error {
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine, err := market.NewEngine(cfg.Market())
	if err != nil {
		return err
	}
	store := openStore(cfg)
	defer store.DB().Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	rec := metrics.NewCollector(reg)

	mgr := prefs.Load(ctx, store, log.Named("prefs"))
	mem := memstore.New(memstore.DefaultEventCap)

	sinks := []notify.Sink{
		{Name: "log", Notifier: notify.NewLog(log.Named("notify"))},
		{Name: "feed", Notifier: mem},
		{Name: "history", Notifier: notify.NotifierFunc(store.RecordEvent)},
	}
	if cfg.Telegram.Enabled() {
		tg, err := notify.NewTelegram(cfg.Telegram.Token, cfg.Telegram.ChatID)
		if err != nil {
			log.Warn("telegram disabled", zap.Error(err))
		} else {
			sinks = append(sinks, notify.Sink{Name: "telegram", Notifier: tg})
		}
	}
	disp := notify.NewDispatcher(
		notify.NewMulti(log.Named("notify"), rec, sinks...),
		func() notify.Policy { return mgr.Get() },
		rec,
	)

	knownZone := func(k string) bool {
		_, ok := engine.Zone(k)
		return ok
	}
	svc := alerts.NewService(store, engine.OffsetFor, knownZone, log.Named("alerts"), rec)

	sched := scheduler.New(cfg.TickInterval(), log.Named("scheduler"), rec,
		tickSteps(engine, mem, notify.NewWatcher(), svc, disp)...)
	go func() { _ = sched.Run(ctx) }()
	go runCleanupLoop(ctx, cfg, store.DB(), log.Named("cleanup"))

	srv := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: newWebServer(webDeps{
			cfg:      cfg,
			engine:   engine,
			prefs:    mgr,
			alerts:   svc,
			store:    store,
			mem:      mem,
			gatherer: reg,
			log:      log.Named("http"),
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", cfg.HTTPAddr))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	log.Info("shutting down")
	return srv.Shutdown(shutdownCtx)
}

func openStore(cfg config.Config) *sqlite.Store {
	db, err := sqlite.Open(cfg.DBPath)
	fatalIf(err)
	fatalIf(sqlite.Migrate(db))
	return sqlite.New(db)
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  tclock init-db  -config configs/config.yaml")
	fmt.Fprintln(os.Stderr, "  tclock serve    -config configs/config.yaml")
	fmt.Fprintln(os.Stderr, "  tclock status   -config configs/config.yaml [-at 2026-06-01T09:00:00Z]")
	fmt.Fprintln(os.Stderr, "  tclock export   -config configs/config.yaml [-out alerts.xlsx]")
	fmt.Fprintln(os.Stderr, "  tclock calendar -config configs/config.yaml [-days 7] [-out sessions.ics]")
}

func fatalIf(err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, "tclock:", err)
		os.Exit(1)
	}
}
