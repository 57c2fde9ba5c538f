package core

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/vrsandeep/mango-shelf/internal/checker"
	"github.com/vrsandeep/mango-shelf/internal/config"
	"github.com/vrsandeep/mango-shelf/internal/db"
	"github.com/vrsandeep/mango-shelf/internal/jobs"
	"github.com/vrsandeep/mango-shelf/internal/library"
	"github.com/vrsandeep/mango-shelf/internal/lock"
	"github.com/vrsandeep/mango-shelf/internal/notify"
	"github.com/vrsandeep/mango-shelf/internal/reconcile"
	"github.com/vrsandeep/mango-shelf/internal/store"
	"github.com/vrsandeep/mango-shelf/internal/websocket"
)

// App holds the core components of the application that are shared
// between the server and the CLI.
type App struct {
	config     *config.Config
	db         *sql.DB
	store      *store.Store
	wsHub      *websocket.Hub
	locks      *lock.Manager
	notifier   *notify.Emitter
	reconciler *reconcile.Service
	checker    *checker.Service
	jobManager *jobs.JobManager
	natsSink   *notify.NATSSink
	Version    string
}

// New sets up and returns a new App instance. It handles loading the
// configuration, initializing the database connection, and running migrations.
func New() (*App, error) {
	return NewFromFile("")
}

// NewFromFile is New with an explicit configuration file. An empty path
// looks for config.yml in the working directory.
func NewFromFile(configPath string) (*App, error) {
	cfg, err := config.LoadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	// Initialize the database connection
	database, err := db.InitDB(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	// Run database migrations
	if err := db.RunMigrations(database); err != nil {
		// We can't proceed without a valid database schema.
		// Close the DB connection before failing.
		database.Close()
		return nil, fmt.Errorf("failed to run database migrations: %w", err)
	}

	app, err := NewWithDB(cfg, database)
	if err != nil {
		database.Close()
		return nil, err
	}

	if url := cfg.Notify.NATS.URL; url != "" {
		sink, err := notify.ConnectNATS(url, cfg.Notify.NATS.Subject)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("failed to connect to nats: %w", err)
		}
		app.natsSink = sink
		app.notifier.AddSink(sink)
		log.Printf("Publishing chapter changes to NATS subject '%s'", cfg.Notify.NATS.Subject)
	}

	log.Println("Core application setup complete.")
	return app, nil
}

// NewWithDB wires every component around an already migrated database.
// The websocket hub is started; no external sink is connected.
func NewWithDB(cfg *config.Config, database *sql.DB) (*App, error) {
	locks, err := lock.NewManager(cfg.Locks.Path)
	if err != nil {
		return nil, err
	}

	hub := websocket.NewHub()
	go hub.Run()

	st := store.New(database)
	notifier := notify.NewEmitter(notify.NewHubSink(hub), notify.LogSink{})
	reconciler := reconcile.NewService(st, locks, notifier)

	app := &App{
		config:     cfg,
		db:         database,
		store:      st,
		wsHub:      hub,
		locks:      locks,
		notifier:   notifier,
		reconciler: reconciler,
		checker:    checker.NewService(st, reconciler, time.Duration(cfg.Checker.Timeout)*time.Second),
		Version:    "dev",
	}
	app.jobManager = jobs.NewManager(app)
	jobs.RegisterDefaults(app.jobManager)
	app.jobManager.Register(library.SweepJobID, "Sweep Removed Archives", library.RunSweep)
	return app, nil
}

func (a *App) DB() *sql.DB                    { return a.db }
func (a *App) Config() *config.Config         { return a.config }
func (a *App) WsHub() *websocket.Hub          { return a.wsHub }
func (a *App) JobManager() *jobs.JobManager   { return a.jobManager }
func (a *App) Store() *store.Store            { return a.store }
func (a *App) Checker() *checker.Service      { return a.checker }
func (a *App) Reconciler() *reconcile.Service { return a.reconciler }
func (a *App) Notifier() *notify.Emitter      { return a.notifier }
func (a *App) Locks() *lock.Manager           { return a.locks }

// Close gracefully closes the application's resources, like the DB connection.
func (a *App) Close() {
	if a.natsSink != nil {
		a.natsSink.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
}
