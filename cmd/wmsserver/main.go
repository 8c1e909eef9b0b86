package main

import (
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

type App struct {
	addr       string
	configPath string
	cacheDir   string
	logger     *slog.Logger
	sources    *Sources
}

func NewApp(addr string) *App {
	return &App{
		sources: NewSources(),
		logger:  slog.Default(),
		addr:    addr,
	}
}

func (app *App) loadSources() error {
	d, err := os.ReadFile(app.configPath)

	if err != nil {
		return err
	}

	var res []*SourceDescription

	if err := yaml.Unmarshal(d, &res); err != nil {
		return err
	}

	app.sources.Clear()

	for _, desc := range res {
		s, err := NewProxySource(desc, app.logger, app.cacheDir)
		if err != nil {
			app.logger.Error("invalid source "+desc.Key, "error", err)
			continue
		}

		app.sources.Add(s)
		app.logger.Info(fmt.Sprintf("loaded source %s (%s)", s.GetKey(), s.GetName()))
	}

	return nil
}

func (app *App) Run() {
	if err := os.MkdirAll(app.cacheDir, 0777); err != nil {
		panic(err)
	}

	if err := app.loadSources(); err != nil {
		panic(err)
	}

	http := NewHttp(app)

	app.logger.Info("listening on " + app.addr)

	go func() {
		if err := http.Listen(app.addr); err != nil {
			panic(err)
		}
	}()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		panic(err)
	}

	defer watcher.Close()

	go app.watch(watcher)

	err = watcher.Add(filepath.Dir(app.configPath))
	if err != nil {
		panic(err)
	}

	app.loop()
}

func (app *App) watch(watcher *fsnotify.Watcher) {
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}

			if filepath.Clean(event.Name) != filepath.Clean(app.configPath) {
				continue
			}

			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			app.logger.Info("config changed: " + event.Name)

			if err := app.loadSources(); err != nil {
				app.logger.Error("error", slog.Any("error", err))
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			app.logger.Error("error", slog.Any("error", err))
		}
	}
}

func (app *App) loop() {
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)

	<-sigc

	app.sources.Clear()
}

func getLocalAddr() []string {
	var res []string

	addresses, _ := net.InterfaceAddrs()

	for _, a := range addresses {
		if ipnet, ok := a.(*net.IPNet); ok && !ipnet.IP.IsLoopback() {
			if ipnet.IP.To4() != nil && !strings.HasPrefix(ipnet.IP.String(), "169.254.") {
				res = append(res, ipnet.IP.String())
			}
		}
	}

	return res
}

func main() {
	var config = flag.String("config", "sources.yml", "source config file")
	var cacheDir = flag.String("cache", "./data", "cache path")
	var addr = flag.String("addr", ":8888", "listen address")
	var debug = flag.Bool("debug", false, "")

	flag.Parse()

	var h slog.Handler
	if *debug {
		h = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	} else {
		h = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	}

	slog.SetDefault(slog.New(h))

	app := NewApp(*addr)
	app.configPath = *config
	app.cacheDir = *cacheDir
	app.logger = slog.Default()
	app.Run()
}
