package main

import (
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"mapmaker/internal/bot"
	"mapmaker/internal/config"
	"mapmaker/internal/logger"
	"mapmaker/internal/mapmaker"
	"mapmaker/internal/version"
)

func main() {
	_ = godotenv.Load()

	configPath := flag.String("config", "", "Configuration file (default: "+config.DefaultPath()+")")
	metricsAddr := flag.String("metrics-addr", "", "Serve prometheus metrics on this address, e.g. :9100")
	logLevel := flag.String("log-level", "", "debug, info, warn or error")
	logFormat := flag.String("log-format", "", "text or json")
	flag.Parse()

	log := logger.Setup(*logLevel, *logFormat)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	if cfg.Discord.Token == "" {
		log.Error("DISCORD_TOKEN is required")
		os.Exit(1)
	}

	settings, err := config.NewSettingsManager(cfg.Discord.SettingsPath)
	if err != nil {
		log.Error("failed to load guild settings", "path", cfg.Discord.SettingsPath, "error", err)
		os.Exit(1)
	}

	renderer := mapmaker.New(cfg)
	defer renderer.Close()

	if *metricsAddr != "" {
		go serveMetrics(*metricsAddr)
	}

	dg, err := discordgo.New("Bot " + cfg.Discord.Token)
	if err != nil {
		log.Error("failed to create session", "error", err)
		os.Exit(1)
	}

	h := bot.NewHandler(renderer, cfg, settings)
	dg.AddHandler(h.OnReady)
	dg.AddHandler(h.OnInteractionCreate)

	if err := dg.Open(); err != nil {
		log.Error("failed to open connection", "error", err)
		os.Exit(1)
	}
	defer dg.Close()

	log.Info("mapbot started", "version", version.Version, "date", time.Now().Format("2006-01-02"), "styles", len(cfg.Styles()))

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	log.Info("shutting down")
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	logger.L().Info("serving metrics", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.L().Error("metrics server stopped", "error", err)
	}
}
