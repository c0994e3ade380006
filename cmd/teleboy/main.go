package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/caarlos0/env/v11"
	yaml "github.com/goccy/go-yaml"
	"github.com/jehaby/teleboy"
	sqldb "github.com/jehaby/teleboy/internal/db"
)

type config struct {
	teleboy.Config
	LogLevel   slog.Level `env:"LOG_LEVEL" envDefault:"info"`
	JournalDSN string     `env:"TELEBOY_JOURNAL_DSN"`
	ConfigPath string     `env:"TELEBOY_CONFIG"`
}

// fileConfig is the optional YAML file. Chat ids should be quoted.
type fileConfig struct {
	Chats   []string `yaml:"chats"`
	TopicID string   `yaml:"topic-id"`
}

type app struct {
	cfg     config
	file    fileConfig
	db      *sql.DB
	queries *sqldb.Queries
	out     io.Writer
	in      io.Reader
}

func main() {
	cfg := config{}
	if err := env.Parse(&cfg); err != nil {
		slog.Error("error parsing config", "err", err)
		os.Exit(1)
	}
	initLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{cfg: cfg, out: os.Stdout, in: os.Stdin}
	err := newRootCmd(a).ExecuteContext(ctx)
	a.close()
	if err != nil {
		os.Exit(1)
	}
}

func initLogger(level slog.Level) {
	levelVar := new(slog.LevelVar)
	levelVar.Set(level)

	var handler slog.Handler
	if strings.ToLower(os.Getenv("LOG_FORMAT")) == "json" {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: levelVar})
	} else {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: levelVar})
	}
	slog.SetDefault(slog.New(handler))
}

// setup loads the YAML file and opens the journal; it runs before every command.
func (a *app) setup(path string) error {
	fc, err := loadFileConfig(path)
	if err != nil {
		return err
	}
	a.file = fc
	if a.cfg.TopicID == "" {
		a.cfg.TopicID = fc.TopicID
	}
	if a.cfg.JournalDSN != "" {
		db, q, err := openJournal(a.cfg.JournalDSN)
		if err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
		a.db, a.queries = db, q
	}
	return nil
}

func (a *app) close() {
	if a.db != nil {
		_ = a.db.Close()
		a.db, a.queries = nil, nil
	}
}

func (a *app) client() (*teleboy.Client, error) {
	opts := []teleboy.Option{teleboy.WithLogger(slog.Default())}
	if a.queries != nil {
		opts = append(opts, teleboy.WithRecorder(journalRecorder(a.queries)))
	}
	return teleboy.New(a.cfg.Config, opts...)
}

// loadFileConfig reads path, or the first of teleboy.yaml/teleboy.yml that
// exists. A missing default file is not an error.
func loadFileConfig(path string) (fileConfig, error) {
	var fc fileConfig
	candidates := []string{"teleboy.yaml", "teleboy.yml"}
	if path != "" {
		candidates = []string{path}
	}
	for _, p := range candidates {
		b, err := os.ReadFile(p)
		if err != nil {
			if os.IsNotExist(err) && path == "" {
				continue
			}
			return fc, fmt.Errorf("read config %s: %w", p, err)
		}
		if err := yaml.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("parse config %s: %w", p, err)
		}
		slog.Debug("loaded config file", "path", p, "chats", len(fc.Chats))
		return fc, nil
	}
	return fc, nil
}
