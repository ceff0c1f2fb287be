// Filedrop, October 2026
// License AGPL3

package main

import (
	"context"
	"fmt"
	"html/template"
	"io/ioutil"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi"
	"github.com/gorilla/websocket"
	"github.com/knadh/filedrop/internal/hub"
	"github.com/knadh/filedrop/internal/logger"
	"github.com/knadh/filedrop/store"
	"github.com/knadh/filedrop/store/fs"
	"github.com/knadh/filedrop/store/mem"
	"github.com/knadh/filedrop/store/redis"
	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/stuffbin"
	flag "github.com/spf13/pflag"
	"go.uber.org/zap"
)

var (
	lo = logger.New(logger.Config{})
	ko = koanf.New(".")

	// Version of the build injected at build time.
	buildString = "unknown"
)

// App is the global app context that's passed around.
type App struct {
	hub      *hub.Hub
	cfg      *hub.Config
	tpl      *template.Template
	fs       stuffbin.FileSystem
	store    store.Store
	upgrader websocket.Upgrader
	logger   *zap.SugaredLogger
}

func loadConfig() {
	// Register --help handler.
	f := flag.NewFlagSet("config", flag.ContinueOnError)
	f.Usage = func() {
		fmt.Println(f.FlagUsages())
		os.Exit(0)
	}
	f.StringSlice("config", []string{"config.toml"},
		"Path to one or more TOML config files to load in order")
	f.Bool("new-config", false, "Generate a sample config.toml file")
	f.Bool("version", false, "Show build version")
	f.Parse(os.Args[1:])

	// Display version.
	if ok, _ := f.GetBool("version"); ok {
		fmt.Println(buildString)
		os.Exit(0)
	}

	// Generate new config.
	if ok, _ := f.GetBool("new-config"); ok {
		if err := newConfigFile(initFS()); err != nil {
			lo.Fatal(err)
		}
		lo.Info("config.toml generated. Edit and run the app.")
		os.Exit(0)
	}

	// Read the config files.
	cFiles, _ := f.GetStringSlice("config")
	for _, f := range cFiles {
		lo.Infof("reading config: %s", f)
		if err := ko.Load(file.Provider(f), toml.Parser()); err != nil {
			lo.Errorf("error reading config: %v", err)
		}
	}

	// Merge env flags into config.
	if err := ko.Load(env.Provider("FILEDROP_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(
			strings.TrimPrefix(s, "FILEDROP_")), "__", ".", -1)
	}), nil); err != nil {
		lo.Errorf("error loading env config: %v", err)
	}

	// Merge command line flags into config.
	ko.Load(posflag.Provider(f, ".", ko), nil)
}

// newConfigFile writes the embedded sample config to config.toml.
func newConfigFile(fs stuffbin.FileSystem) error {
	if _, err := os.Stat("config.toml"); !os.IsNotExist(err) {
		return fmt.Errorf("config.toml exists. Remove it to generate a new one")
	}
	b, err := fs.Read("/static/config.sample.toml")
	if err != nil {
		return fmt.Errorf("error reading sample config: %v", err)
	}
	return ioutil.WriteFile("config.toml", b, 0644)
}

// initFS initializes the stuffbin embedded static filesystem.
func initFS() stuffbin.FileSystem {
	// Get self executable path to initialise stuffed FS.
	exe, err := os.Executable()
	if err != nil {
		lo.Fatalf("error getting executable path: %v", err)
	}

	// Read stuffed data from self.
	fs, err := stuffbin.UnStuff(exe)
	if err != nil {
		// Binary is unstuffed or is running in dev mode.
		if err == stuffbin.ErrNoID {
			fs, err = stuffbin.NewLocalFS("./", "./static")
			if err != nil {
				lo.Fatalf("error falling back to local filesystem: %v", err)
			}
		} else {
			lo.Fatalf("error reading stuffed binary: %v", err)
		}
	}
	return fs
}

// initStore initializes the key/value store picked in the config.
func initStore() store.Store {
	switch typ := ko.String("store.type"); typ {
	case "", "mem":
		var cfg mem.Config
		if err := ko.Unmarshal("store.mem", &cfg); err != nil {
			lo.Fatalf("error unmarshalling 'store.mem' config: %v", err)
		}
		s, _ := mem.New(cfg)
		return s

	case "fs":
		var cfg fs.Config
		if err := ko.Unmarshal("store.fs", &cfg); err != nil {
			lo.Fatalf("error unmarshalling 'store.fs' config: %v", err)
		}
		s, err := fs.New(cfg, lo)
		if err != nil {
			lo.Fatalf("error initializing file store: %v", err)
		}
		return s

	case "redis":
		var cfg redis.Config
		if err := ko.Unmarshal("store.redis", &cfg); err != nil {
			lo.Fatalf("error unmarshalling 'store.redis' config: %v", err)
		}
		s, err := redis.New(cfg)
		if err != nil {
			lo.Fatalf("error initializing redis store: %v", err)
		}
		return s

	default:
		lo.Fatalf("unknown store type: %s", typ)
	}
	return nil
}

// initRoutes registers the HTTP routes.
func initRoutes(app *App) http.Handler {
	r := chi.NewRouter()
	r.Get("/", wrap(handleIndex, app, 0))
	r.Get("/ws", wrap(handleWS, app, 0))

	// API.
	r.Get("/api/health", wrap(handleHealth, app, 0))
	r.Get("/api/stats", wrap(handleStats, app, hasAdmin))
	r.Get("/api/users/{uid}/seen", wrap(handleSeen, app, 0))

	r.Get("/static/*", func(w http.ResponseWriter, r *http.Request) {
		app.fs.FileServer().ServeHTTP(w, r)
	})
	return r
}

// Catch OS interrupts and shut the server down. Connections are dropped
// and all presence and room state is lost with the process.
func catchInterrupts(srv *http.Server, closers ...func() error) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-c
		lo.Infof("shutting down: %v", sig)

		ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
		defer cancel()
		srv.Shutdown(ctx)

		for _, fn := range closers {
			if err := fn(); err != nil {
				lo.Errorf("error closing: %v", err)
			}
		}
		lo.Sync()
		os.Exit(0)
	}()
}

func main() {
	// Load configuration from files.
	loadConfig()

	var logCfg logger.Config
	if err := ko.Unmarshal("log", &logCfg); err != nil {
		lo.Fatalf("error unmarshalling 'log' config: %v", err)
	}
	lo = logger.New(logCfg)

	// Initialize global app context.
	app := &App{
		logger: lo,
		fs:     initFS(),
	}
	if err := ko.Unmarshal("app", &app.cfg); err != nil {
		lo.Fatalf("error unmarshalling 'app' config: %v", err)
	}

	if app.cfg.WSTimeout < time.Duration(3)*time.Second {
		lo.Fatal("app.websocket_timeout should be > 3s")
	}
	switch app.cfg.RoomPolicy {
	case "":
		app.cfg.RoomPolicy = hub.PolicyPair
	case hub.PolicyPair, hub.PolicyOpen:
	default:
		lo.Fatalf("app.room_policy should be '%s' or '%s'", hub.PolicyPair, hub.PolicyOpen)
	}

	app.store = initStore()
	app.hub = hub.NewHub(app.cfg, app.store, lo)
	app.upgrader = websocket.Upgrader{
		ReadBufferSize:  64 * 1024,
		WriteBufferSize: 64 * 1024,
		CheckOrigin: func(r *http.Request) bool {
			return originAllowed(app.cfg.AllowedOrigins, r.Header.Get("Origin"))
		},
	}

	// Compile static templates.
	tpl, err := stuffbin.ParseTemplatesGlob(nil, app.fs, "/static/templates/*.html")
	if err != nil {
		lo.Fatalf("error compiling templates: %v", err)
	}
	app.tpl = tpl

	// Start the app.
	srv := &http.Server{
		Addr:    app.cfg.Address,
		Handler: initRoutes(app),
	}

	var closers []func() error
	if c, ok := app.store.(interface{ Close() error }); ok {
		closers = append(closers, c.Close)
	}
	catchInterrupts(srv, closers...)

	ln, err := net.Listen("tcp", app.cfg.Address)
	if err != nil {
		lo.Fatalf("couldn't listen on %s: %v", app.cfg.Address, err)
	}

	if ko.Bool("tor.enabled") {
		pk, err := getOrCreatePK(app.store)
		if err != nil {
			lo.Fatalf("error loading onion key: %v", err)
		}
		ts := &torServer{
			Handler:    srv.Handler,
			PrivateKey: pk,
			ExePath:    ko.String("tor.exe_path"),
			log:        lo,
		}
		lo.Infof("starting onion service http://%s.onion", onionAddr(pk))
		go func() {
			if err := ts.Serve(ln); err != nil {
				lo.Fatalf("couldn't start onion service: %v", err)
			}
		}()
		select {}
	}

	lo.Infof("starting server on %v (room policy: %s)", app.cfg.Address, app.cfg.RoomPolicy)
	if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
		lo.Fatalf("couldn't start server: %v", err)
	}
}
