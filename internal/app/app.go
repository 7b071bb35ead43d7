// Package app wires configuration, storage, the Google Photos client, the
// upload pipeline and the REPL into one runnable application, and handles
// graceful shutdown.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/photodrop/internal/account"
	"github.com/dmitrijs2005/photodrop/internal/albums"
	"github.com/dmitrijs2005/photodrop/internal/cache"
	"github.com/dmitrijs2005/photodrop/internal/cli"
	"github.com/dmitrijs2005/photodrop/internal/config"
	"github.com/dmitrijs2005/photodrop/internal/credentials"
	"github.com/dmitrijs2005/photodrop/internal/cryptox"
	"github.com/dmitrijs2005/photodrop/internal/dbx"
	"github.com/dmitrijs2005/photodrop/internal/filex"
	"github.com/dmitrijs2005/photodrop/internal/history"
	"github.com/dmitrijs2005/photodrop/internal/kvstore"
	"github.com/dmitrijs2005/photodrop/internal/logging"
	"github.com/dmitrijs2005/photodrop/internal/metrics"
	"github.com/dmitrijs2005/photodrop/internal/netx"
	"github.com/dmitrijs2005/photodrop/internal/notify"
	"github.com/dmitrijs2005/photodrop/internal/photos"
	"github.com/dmitrijs2005/photodrop/internal/pipeline"
	"github.com/dmitrijs2005/photodrop/internal/profile"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const notifyBuffer = 32

type App struct {
	config     *config.Config
	logger     logging.Logger
	db         *sql.DB
	registry   *prometheus.Registry
	dispatcher *notify.Dispatcher
	pipeline   *pipeline.Pipeline
	repl       *cli.App

	closeOnce sync.Once
	closeErr  error
}

// NewApp opens the database and builds every service. Interactive output,
// including sign-in instructions, goes to out; logs go to logOut.
func NewApp(ctx context.Context, c *config.Config, out, logOut io.Writer) (*App, error) {
	logger := logging.New(c.LogLevel, c.LogFormat, logOut)

	path, err := filex.EnsureParentDir(c.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	db, err := dbx.OpenSQLite(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	local, err := kvstore.NewSQLiteStore(db, kvstore.AreaLocal)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	synced, err := kvstore.NewSQLiteStore(db, kvstore.AreaSync)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	httpClient := &http.Client{Timeout: c.HTTPTimeout}
	api := photos.NewClient(c.APIBaseURL,
		photos.WithHTTPClient(httpClient),
		photos.WithRateLimit(c.RequestsPerSecond, 1),
		photos.WithUserInfoURL(c.UserInfoURL),
		photos.WithLogger(logger),
	)

	oauthOpts := []credentials.OAuthOption{credentials.WithHTTPClient(httpClient)}
	if c.TokenPassphrase != "" {
		tc, err := tokenCipher(ctx, local, c.TokenPassphrase)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		oauthOpts = append(oauthOpts, credentials.WithTokenCipher(tc))
	}
	oauth := credentials.NewOAuthProvider(c.OAuthClientID, c.OAuthClientSecret, local, out, oauthOpts...)
	creds := credentials.NewManager(oauth, credentials.NewTokenInfoClient(c.TokenInfoURL, httpClient), local, logger)

	thumbs := cache.New[string](local, cache.ThumbnailPolicy, cache.WithLogger(logger))
	titles := cache.New[string](local, cache.AlbumTitlePolicy, cache.WithLogger(logger))
	profiles := cache.New[profile.Profile](local, cache.ProfilePolicy, cache.WithLogger(logger))

	ledger := history.NewLedger(local)
	albumService := albums.NewService(api, synced, titles, c.AppAlbumTitle, logger)
	profileService := profile.NewService(api, profiles, logger)
	accountService := account.NewService(creds, oauth, ledger, albumService, local, logger, thumbs, titles, profiles)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.MustNew(registry)

	dispatcher := notify.NewDispatcher(logger, notifyBuffer, notify.OnDrop(m.NotificationDropped))

	p := pipeline.New(pipeline.Deps{
		Credentials: creds,
		Downloader:  netx.NewDownloader(netx.WithTimeout(c.HTTPTimeout), netx.WithMaxBytes(c.MaxDownloadBytes)),
		Photos:      api,
		Albums:      albumService,
		History:     ledger,
		Thumbnails:  thumbs,
		Notifier:    dispatcher,
		Platform:    storeKeepAlive{store: local},
		Metrics:     m,
		Logger:      logger,
	},
		pipeline.WithKeepAliveInterval(c.KeepAliveInterval),
		pipeline.WithObserver(func(t pipeline.Transition) {
			logger.Debug(context.Background(), "job transition", "job", t.JobID, "from", t.From, "to", t.To)
		}),
	)

	repl := cli.NewApp(cli.Deps{
		Uploads:          p,
		History:          ledger,
		Albums:           albumService,
		Profile:          profileService,
		Account:          accountService,
		Credentials:      creds,
		Changes:          local,
		Logger:           logger,
		ProgressFailsafe: c.ProgressFailsafe,
	}, out)

	return &App{
		config:     c,
		logger:     logger,
		db:         db,
		registry:   registry,
		dispatcher: dispatcher,
		pipeline:   p,
		repl:       repl,
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) func() {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	stop := make(chan struct{})
	go func() {
		select {
		case <-sigs:
			cancelFunc()
		case <-stop:
		}
	}()
	return func() {
		signal.Stop(sigs)
		close(stop)
	}
}

// startMetricsServer serves /metrics until ctx is done.
func (app *App) startMetricsServer(ctx context.Context) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(app.registry))
	srv := &http.Server{Addr: app.config.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	app.logger.Info(ctx, "metrics server listening", "addr", app.config.MetricsAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		app.logger.Error(ctx, "metrics server failed", "error", err)
	}
}

// Run blocks until the REPL exits or a termination signal arrives, then
// waits for queued uploads and releases resources.
func (app *App) Run(ctx context.Context, in io.Reader) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	stopSignals := app.initSignalHandler(cancelFunc)
	defer stopSignals()

	app.logger.Info(ctx, "Starting app...")

	var wg sync.WaitGroup
	if app.config.MetricsAddr != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			app.startMetricsServer(ctx)
		}()
	}

	replDone := make(chan struct{})
	go func() {
		defer close(replDone)
		app.repl.Run(ctx, in)
	}()

	select {
	case <-replDone:
	case <-ctx.Done():
	}
	cancelFunc()
	wg.Wait()

	return app.Close()
}

// Close drains the upload queue and closes the database. It is safe to call
// more than once.
func (app *App) Close() error {
	app.closeOnce.Do(func() {
		app.pipeline.Close()
		app.dispatcher.Close()
		if err := app.db.Close(); err != nil {
			app.closeErr = fmt.Errorf("close db: %w", err)
		}
	})
	return app.closeErr
}

// tokenCipher derives the token key from passphrase and a per-database salt,
// creating the salt on first use.
func tokenCipher(ctx context.Context, store kvstore.Store, passphrase string) (*cryptox.Cipher, error) {
	err := store.Update(ctx, kvstore.KeyTokenSalt, func(current []byte) ([]byte, error) {
		if current != nil {
			return nil, kvstore.ErrSkip
		}
		return cryptox.NewSalt(16)
	})
	if err != nil {
		return nil, fmt.Errorf("token salt: %w", err)
	}
	salt, err := store.Get(ctx, kvstore.KeyTokenSalt)
	if err != nil {
		return nil, fmt.Errorf("token salt: %w", err)
	}
	return cryptox.NewCipher(cryptox.DeriveKey([]byte(passphrase), salt))
}

// storeKeepAlive keeps the database connection warm while a job runs.
type storeKeepAlive struct {
	store kvstore.Store
}

func (k storeKeepAlive) KeepAlive(ctx context.Context) error {
	return k.store.Ping(ctx)
}
