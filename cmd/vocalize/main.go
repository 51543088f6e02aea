package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/ayusman/vocalize/internal/app"
	"github.com/ayusman/vocalize/internal/capture"
	"github.com/ayusman/vocalize/internal/config"
	"github.com/ayusman/vocalize/internal/detector"
	"github.com/ayusman/vocalize/internal/gesture"
	"github.com/ayusman/vocalize/internal/observe"
	"github.com/ayusman/vocalize/internal/pipeline"
	"github.com/ayusman/vocalize/internal/plugin"
	"github.com/ayusman/vocalize/internal/server"
	"github.com/ayusman/vocalize/internal/server/api"
	"github.com/ayusman/vocalize/internal/store"
	"github.com/ayusman/vocalize/internal/tray"
)

var version = "dev"

func main() {
	configPath := flag.String("config", config.DefaultConfigPath(), "path to the YAML config file")
	mockDetector := flag.Bool("mock-detector", false, "run with a scripted detector when MediaPipe is unavailable")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: vocalize [-config path] [-mock-detector] [serve|eval]\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "vocalize: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "vocalize: invalid config: %v\n", err)
		os.Exit(1)
	}

	logger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      cfg.SlogLevel(),
		TimeFormat: "15:04:05",
	}))
	slog.SetDefault(logger)

	cmd := "serve"
	if flag.NArg() > 0 {
		cmd = flag.Arg(0)
	}

	switch cmd {
	case "serve":
		err = serve(cfg, logger, *mockDetector)
	case "eval":
		err = eval(cfg, os.Stdout)
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		logger.Error("vocalize failed", "cmd", cmd, "err", err)
		os.Exit(1)
	}
}

func openStore(cfg *config.Config) (*store.Store, error) {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	return store.New(cfg.DBPath())
}

// newDetector returns the MediaPipe estimator. The mock detector, which never
// reports a hand, is only substituted when allowMock is set.
func newDetector(cfg detector.Config, allowMock bool, logger *slog.Logger) (detector.Detector, error) {
	mp, err := detector.NewMediaPipeDetector(cfg, logger)
	if err == nil {
		return mp, nil
	}
	if !allowMock {
		return nil, fmt.Errorf("mediapipe unavailable (rerun with -mock-detector to start without it): %w", err)
	}
	logger.Warn("MediaPipe unavailable, using mock detector", "err", err)
	return detector.NewMockDetector(), nil
}

func serve(cfg *config.Config, logger *slog.Logger, allowMock bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownMetrics, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceVersion: version})
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}
	defer func() {
		if err := shutdownMetrics(context.Background()); err != nil {
			logger.Warn("shutting down metrics", "err", err)
		}
	}()

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	plugins := plugin.NewManager(cfg.Plugins.Dir, logger)
	if err := plugins.Discover(); err != nil {
		return fmt.Errorf("discover plugins: %w", err)
	}

	pipelineCfg, err := cfg.Pipeline()
	if err != nil {
		return err
	}

	det, err := newDetector(cfg.Detector, allowMock, logger)
	if err != nil {
		return err
	}

	application, err := app.New(app.Config{
		Store:     st,
		Plugins:   plugins,
		Executor:  plugin.NewExecutor(cfg.Plugins.Timeout),
		Pipeline:  pipelineCfg,
		Camera:    capture.NewCamera(cfg.Camera),
		Detector:  det,
		Activity:  cfg.Activity,
		Smoothing: cfg.Smoothing,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	hub := server.NewEventHub(logger)
	hub.Attach(application.Driver())

	srv := server.New(server.Config{
		StaticDir:  cfg.Server.StaticDir,
		Store:      st,
		Classifier: application.Driver().Classifier(),
		Plugins:    plugins,
		Recognizer: application,
		Events:     hub,
		Metrics:    promhttp.Handler(),
		Logger:     logger,
	})

	if err := application.SetEnabled(true); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return application.Run(gctx)
	})
	g.Go(func() error {
		return srv.Serve(gctx, cfg.Server.Addr)
	})

	if !cfg.Tray.Enabled {
		return g.Wait()
	}

	t := tray.New(application.IsEnabled())
	t.OnToggle(func(enabled bool) {
		if err := application.SetEnabled(enabled); err != nil {
			logger.Error("switching recognition", "enabled", enabled, "err", err)
			t.SetEnabled(application.IsEnabled())
		}
	})
	t.OnOpen(func() {
		if err := openBrowser(dashboardURL(cfg.Server.Addr)); err != nil {
			logger.Warn("opening dashboard", "err", err)
		}
	})
	t.OnQuit(cancel)
	application.Driver().OnLetter(t.SetLastLetter)
	application.Driver().OnHandPresence(t.SetHandPresent)

	// The tray owns the main goroutine until quit or shutdown.
	go func() {
		<-gctx.Done()
		t.Quit()
	}()
	t.Run()
	cancel()

	return g.Wait()
}

// eval runs the stored samples through the configured rule table.
func eval(cfg *config.Config, out io.Writer) error {
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	pipelineCfg, err := cfg.Pipeline()
	if err != nil {
		return err
	}
	classifier := pipeline.New(pipelineCfg).Classifier()

	samples, err := st.Samples().List("")
	if err != nil {
		return fmt.Errorf("list samples: %w", err)
	}
	if len(samples) == 0 {
		return errors.New("no samples recorded")
	}

	report := gesture.Evaluate(classifier, api.ToEvalSamples(samples))

	fmt.Fprintf(out, "table %s: %d/%d correct (%.1f%%), %d invalid\n",
		report.TableVersion, report.Correct, report.Total-report.Invalid, report.Accuracy()*100, report.Invalid)
	if len(report.Mismatches) == 0 {
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SAMPLE\tEXPECTED\tGOT")
	for _, m := range report.Mismatches {
		fmt.Fprintf(w, "%s\t%s\t%s\n", m.SampleID, m.Expected, m.Got)
	}
	return w.Flush()
}

func dashboardURL(addr string) string {
	if strings.HasPrefix(addr, ":") {
		addr = "127.0.0.1" + addr
	}
	return "http://" + addr + "/"
}

func openBrowser(url string) error {
	name := "xdg-open"
	if runtime.GOOS == "darwin" {
		name = "open"
	}
	cmd := exec.Command(name, url)
	if err := cmd.Start(); err != nil {
		return err
	}
	go cmd.Wait()
	return nil
}
