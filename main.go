package main

import (
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/CodedInternet/gorecoater/onboard"
	"github.com/CodedInternet/gorecoater/onboard/store"
	"github.com/caarlos0/env"
	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

type EnvConfig struct {
	ConfigFile string `env:"CONFIG_FILE" envDefault:"./recoater.yaml"`
	DBFile     string `env:"DB_FILE" envDefault:"./tmp/positions.db"`
	Offline    bool   `env:"OFFLINE" envDefault:"false"`
	LogLevel   string `env:"LOG_LEVEL" envDefault:"info"`
	Listen     string `env:"LISTEN" envDefault:"0.0.0.0:8080"`
	DevShell   bool   `env:"DEV_SHELL" envDefault:"false"`
}

func loadEnv(log *logrus.Logger) (cfg EnvConfig, err error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("unable to load .env file")
	}
	err = env.Parse(&cfg)
	return
}

func newLogger(level string) *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	switch strings.ToLower(level) {
	case "off", "none":
		log.SetOutput(io.Discard)
		return log
	}

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)
	log.SetOutput(os.Stdout)
	return log
}

func openStore(dbFile string) (*store.PositionStore, error) {
	dir := filepath.Dir(dbFile)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err = os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
	}
	return store.Open(dbFile)
}

func main() {
	log := newLogger("info")
	cfg, err := loadEnv(log)
	if err != nil {
		log.WithError(err).Fatal("unable to parse environment")
	}
	log = newLogger(cfg.LogLevel)

	positions, err := openStore(cfg.DBFile)
	if err != nil {
		log.WithError(err).Fatal("unable to open position store")
	}
	defer positions.Close()

	config, err := onboard.LoadConfig(cfg.ConfigFile)
	if err != nil {
		log.WithError(err).Fatal("unable to load hardware config")
	}

	if cfg.Offline {
		log.Warn("running offline, no hardware will be touched")
	}
	recoater, err := onboard.NewRecoater(config, positions, cfg.Offline, log.WithField("component", "recoater"))
	if err != nil {
		log.WithError(err).Fatal("unable to initialize recoater")
	}
	defer recoater.Close()

	if cfg.DevShell {
		shell := newShell(recoater)
		go shell.Start()
	}

	r := chi.NewRouter()

	// A good base middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.RedirectSlashes)
	r.Use(middleware.Recoverer) // make sure this is last

	api := &API{Device: recoater, log: log.WithField("component", "api")}
	api.Routes(r)

	log.WithField("listen", cfg.Listen).Info("serving API")
	if err := http.ListenAndServe(cfg.Listen, r); err != nil {
		log.WithError(err).Fatal("server stopped")
	}
}
