package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"weekcal/internal/api"
	"weekcal/internal/capture"
	"weekcal/internal/config"
	"weekcal/internal/layout"
	appLog "weekcal/internal/log"
	"weekcal/internal/session"
	"weekcal/internal/view"
	"weekcal/internal/web"
)

type flagConfig struct {
	configPath string
	listen     string
	once       bool
	login      bool
	logout     bool
}

func main() {
	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))

	store, err := session.NewStore(conf.TokenPath)
	if err != nil {
		appLog.Error("failed to open session store", err)
		os.Exit(1)
	}

	if flags.logout {
		if err := store.Clear(); err != nil {
			appLog.Error("logout failed", err)
			os.Exit(1)
		}
		fmt.Println("Logged out.")
		return
	}

	if err := conf.Validate(); err != nil {
		appLog.Error("invalid config", err, "config_path", flags.configPath)
		os.Exit(1)
	}

	if flags.login {
		if err := runLogin(conf, store); err != nil {
			appLog.Error("login failed", err)
			os.Exit(1)
		}
		fmt.Println("Logged in; token saved.")
		return
	}

	tok, err := store.Load()
	if err != nil {
		appLog.Error("failed to read session token", err)
		os.Exit(1)
	}
	if !tok.Valid() {
		fmt.Fprintln(os.Stderr, "No session token found. Run `weekcal -login` first.")
		os.Exit(1)
	}

	appLog.Info("weekcal starting",
		"listen", conf.Listen,
		"backend", conf.APIBaseURL,
		"timezone", conf.Location().String(),
		"refresh", conf.RefreshCron,
		"once", flags.once,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	client := api.NewClient(ctx, conf.APIBaseURL, conf.APITimeout(), tok, conf.Location())

	consts := layout.Constants{
		StartHour:      conf.Layout.StartHour,
		HourHeight:     conf.Layout.HourHeight,
		GapPercent:     conf.Layout.GapPercent,
		MinEventHeight: conf.Layout.MinEventHeight,
	}
	ctrl := view.New(client, consts, conf.Location(), view.Options{})
	defer ctrl.Close()

	if err := ctrl.Load(ctx); err != nil {
		if api.IsUnauthorized(err) {
			fmt.Fprintln(os.Stderr, "Session token rejected by the backend. Run `weekcal -login` again.")
			os.Exit(1)
		}
		// Start anyway; the UI shows the failure and retries via refresh.
		appLog.Error("initial week load failed", err)
	}

	srv := web.NewServer(conf, ctrl, client)
	srv.OnAuthExpired(func() {
		if err := store.Clear(); err != nil {
			appLog.Error("failed to clear rejected session token", err)
		}
	})
	httpSrv := &http.Server{
		Addr:              conf.Listen,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+conf.Listen)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	refresh := func() {
		rctx, rcancel := context.WithTimeout(ctx, 2*conf.APITimeout())
		defer rcancel()
		if err := ctrl.Reload(rctx); err != nil && !errors.Is(err, view.ErrSuperseded) {
			appLog.Error("scheduled week refresh failed", err)
			return
		}
		capturePreview(ctx, conf)
	}

	if flags.once {
		refresh()
		shutdownHTTP(httpSrv)
		return
	}

	sched := cron.New()
	if _, err := sched.AddFunc(conf.RefreshCron, refresh); err != nil {
		appLog.Error("invalid refresh cron expression", err, "refresh", conf.RefreshCron)
		os.Exit(1)
	}
	sched.Start()

	// Capture an initial preview once the server is up.
	go capturePreview(ctx, conf)

	select {
	case err := <-serveErr:
		appLog.Error("HTTP server failed", err)
		cancel()
	case <-ctx.Done():
	}

	cronCtx := sched.Stop()
	<-cronCtx.Done()
	shutdownHTTP(httpSrv)
	appLog.Info("weekcal exiting")
}

func shutdownHTTP(srv *http.Server) {
	shCtx, shCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shCancel()
	if err := srv.Shutdown(shCtx); err != nil {
		appLog.Error("HTTP shutdown failed", err)
	}
}

// capturePreview screenshots the local week page when a preview path is
// configured.
func capturePreview(ctx context.Context, conf *config.Config) {
	if conf.PreviewPath == "" {
		return
	}

	opts := capture.Options{
		URL:        localURL(conf.Listen),
		OutputPath: conf.PreviewPath,
	}
	if conf.BasicAuth != nil {
		opts.Username = conf.BasicAuth.Username
		opts.Password = conf.BasicAuth.Password
	}

	if err := capture.WeekPNG(ctx, opts); err != nil {
		appLog.Error("preview capture failed", err, "url", opts.URL)
		return
	}
	appLog.Info("preview captured", "path", conf.PreviewPath)
}

// localURL turns a listen address into a URL reachable from this process.
func localURL(listen string) string {
	if strings.HasPrefix(listen, ":") {
		return "http://127.0.0.1" + listen + "/"
	}
	return "http://" + listen + "/"
}

// runLogin exchanges credentials for a bearer token and persists it.
// Credentials come from WEEKCAL_USERNAME / WEEKCAL_PASSWORD when set,
// otherwise from interactive prompts.
func runLogin(conf *config.Config, store *session.Store) error {
	username := os.Getenv("WEEKCAL_USERNAME")
	password := os.Getenv("WEEKCAL_PASSWORD")

	reader := bufio.NewReader(os.Stdin)
	var err error
	if username == "" {
		if username, err = prompt(reader, "Username: "); err != nil {
			return err
		}
	}
	if password == "" {
		if password, err = prompt(reader, "Password: "); err != nil {
			return err
		}
	}
	if username == "" || password == "" {
		return errors.New("username and password are required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), conf.APITimeout())
	defer cancel()

	tok, err := api.Login(ctx, conf.APIBaseURL, username, password, conf.APITimeout())
	if err != nil {
		return err
	}
	return store.Save(tok)
}

func prompt(r *bufio.Reader, label string) (string, error) {
	fmt.Print(label)
	line, err := r.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/weekcal/config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Load the current week, capture the preview, and exit")
	flag.BoolVar(&cfg.login, "login", false, "Log in to the backend and store the session token")
	flag.BoolVar(&cfg.logout, "logout", false, "Discard the stored session token")

	flag.Parse()

	return cfg
}
