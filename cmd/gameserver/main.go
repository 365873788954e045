package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"gamecore/internal/adminapi"
	"gamecore/internal/auth"
	"gamecore/internal/config"
	"gamecore/internal/log"
	"gamecore/internal/metricsapi"
	"gamecore/internal/metricsapi/store"
	"gamecore/internal/worker"
)

func main() {
	configPath := flag.String("config", "", "path to TOML config")
	listenAddr := flag.String("listen", "", "override listen address")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if *listenAddr != "" {
		cfg.ListenAddr = *listenAddr
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":22023"
	}

	logger, err := log.New(log.FileConfig{
		Path:       cfg.Logging.Path,
		Format:     cfg.Logging.Format,
		Level:      cfg.Logging.Level,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}

	var authAPI auth.API
	if cfg.Auth.BaseURL != "" {
		authAPI = auth.NewClient(cfg.Auth, logger)
	}

	var sink metricsapi.Sink = metricsapi.Nop{}
	switch {
	case cfg.Metrics.UseMySQLSink && cfg.Metrics.MySQLDSN != "":
		st, err := store.Open(cfg.Metrics.MySQLDSN)
		if err != nil {
			logger.Errorf("metrics store: %v", err)
			os.Exit(1)
		}
		defer st.Close()
		sink = metricsapi.NewStoreSink(st, logger)
	case cfg.Metrics.BaseURL != "":
		sink = metricsapi.NewClient(cfg.Metrics, logger)
	}

	w := worker.New(cfg, logger, authAPI, sink)
	if err := w.Listen(); err != nil {
		logger.Errorf("listen: %v", err)
		os.Exit(1)
	}

	if cfg.AdminAddr != "" {
		admin := adminapi.New(w, logger)
		go func() {
			logger.Infof("admin surface on %s", cfg.AdminAddr)
			if err := http.ListenAndServe(cfg.AdminAddr, admin.Handler()); err != nil {
				logger.Errorf("admin surface: %v", err)
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := w.Serve(ctx); err != nil && err != context.Canceled {
		logger.Errorf("serve: %v", err)
	}
	w.Close()
	logger.Infof("shut down")
}

func loadConfig(path string) (*config.WorkerConfig, error) {
	if path == "" {
		return config.Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return config.Load(data)
}
