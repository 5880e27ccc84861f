package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"imaged/internal/config"
	"imaged/internal/dicom"
	"imaged/internal/httpapi"
	"imaged/internal/imageio"
	"imaged/internal/registration"
	"imaged/internal/registry"
)

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func main() {
	// Flags with environment variable defaults
	addr := flag.String("addr", envOr("IMAGED_ADDR", ":8080"), "HTTP listen address, e.g. :8080")
	configFile := flag.String("config", envOr("IMAGED_CONFIG", ""), "Optional config file (.yaml/.json/.toml)")
	formatsFile := flag.String("formats", envOr("IMAGED_FORMATS", ""), "Optional format catalog file (YAML); built-in catalog when empty")
	hintTTL := flag.Int("hint-ttl-minutes", 0, "Format hint lifetime in minutes (0=process lifetime)")
	regCap := flag.Int("reg-iteration-cap", 0, "Registration iteration cap (0=default)")
	regBatch := flag.Int("reg-notify-batch", 0, "Registration iterations per progress notification (0=default)")
	logLevel := flag.String("log-level", envOr("IMAGED_LOG_LEVEL", "info"), "Log level: debug, info, warn, error")
	flag.Parse()

	log := zerolog.New(os.Stderr).With().Timestamp().Logger()

	if *configFile != "" {
		cfg, err := config.Load(*configFile)
		if err != nil {
			log.Fatal().Err(err).Str("config", *configFile).Msg("failed to load config")
		}
		if cfg.Addr != "" {
			*addr = cfg.Addr
		}
		if cfg.FormatsFile != "" {
			*formatsFile = cfg.FormatsFile
		}
		if cfg.HintTTLMinutes != 0 {
			*hintTTL = cfg.HintTTLMinutes
		}
		if cfg.RegIterationCap != 0 {
			*regCap = cfg.RegIterationCap
		}
		if cfg.RegNotifyBatch != 0 {
			*regBatch = cfg.RegNotifyBatch
		}
		if cfg.LogLevel != "" {
			*logLevel = cfg.LogLevel
		}
	}

	if lvl, err := zerolog.ParseLevel(*logLevel); err == nil {
		log = log.Level(lvl)
	}

	catalog, err := registry.Load(*formatsFile)
	if err != nil {
		log.Fatal().Err(err).Str("formats", *formatsFile).Msg("failed to load format catalog")
	}

	enum := dicom.NewFSEnumerator()
	srv := httpapi.NewServer(httpapi.Options{
		Catalog:      catalog,
		IO:           imageio.NewStubIO(catalog),
		Enumerator:   enum,
		Materializer: enum,
		HintTTL:      time.Duration(*hintTTL) * time.Minute,
		Registration: registration.Config{IterationCap: *regCap, NotifyBatch: *regBatch},
		Log:          log,
	})
	httpapi.SetLogger(log)

	httpSrv := &http.Server{Addr: *addr, Handler: httpapi.NewMux(srv)}

	go func() {
		log.Info().Str("addr", *addr).Int("formats", catalog.Len()).Msg("imaged listening")
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Graceful shutdown (Ctrl+C / SIGTERM)
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown error")
	}
}
