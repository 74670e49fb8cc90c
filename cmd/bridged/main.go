package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"embedconnect/bridge/internal/analytics"
	"embedconnect/bridge/internal/api"
	"embedconnect/bridge/internal/bridge"
	"embedconnect/bridge/internal/config"
	"embedconnect/bridge/internal/connect"
	healthcheck "embedconnect/bridge/internal/health"
	"embedconnect/bridge/internal/secret"
	"embedconnect/bridge/internal/store"
	"embedconnect/bridge/internal/surface"
)

var grpcHealthAddr = flag.String("grpc-health", ":9091", "addr for the grpc health service (empty disables)")

func main() {
	flag.Parse()
	// Load .env file if present (ignored if missing)
	_ = godotenv.Load()

	cfg := config.Load()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel()}))
	slog.SetDefault(logger)

	fetcher, closeFetcher := newFetcher(cfg)
	defer closeFetcher()

	cs := connect.NewStore(connect.Configuration{
		PublicKey:   cfg.Connect.PublicKey,
		FetchSecret: fetcher,
		Locale:      cfg.Connect.Locale,
		Overrides:   overrides(cfg),
	})
	if len(cfg.Connect.FontCSS) > 0 {
		fontClient := &http.Client{Timeout: 5 * time.Second}
		cs.InitAssets(context.Background(), connect.StylesheetLoader(fontClient, cfg.Connect.FontCSS, logger))
	}
	host, err := bridge.NewHost(cs)
	if err != nil {
		logger.Error("create host", "err", err)
		os.Exit(1)
	}
	if path := cfg.Connect.AppearanceFile; path != "" {
		stop, err := connect.WatchFile(path, cs, logger)
		if err != nil {
			logger.Error("watch appearance file", "path", path, "err", err)
			os.Exit(1)
		}
		defer stop()
	}

	var sender analytics.Sender = analytics.Discard{}
	if cfg.Analytics.Enabled {
		sender = analytics.NewClient(analytics.SystemInfo{
			Platform:   cfg.Bridge.Platform,
			SDKVersion: cfg.Bridge.SDKVersion,
			OSVersion:  cfg.Bridge.OSVersion,
			DeviceType: cfg.App.DeviceType,
			AppName:    cfg.App.Name,
			AppVersion: cfg.App.Version,
		}, analytics.WithEndpoint(cfg.Analytics.Endpoint), analytics.WithLogger(logger))
	}

	st := store.New()
	reg := surface.NewRegistry()
	launcher := surface.NewLauncher(reg, surface.WithBacklog(cfg.Surface.Backlog), surface.WithLogger(logger))
	wss := surface.NewServer(cfg, st, reg, logger)

	h := api.NewHandlers(cfg, st, host, launcher, sender, healthcheck.NewChecker(cfg, nil), logger)
	mux := http.NewServeMux()
	mux.Handle("/", api.NewRouter(h))
	mux.HandleFunc("/ws/surface", wss.HandleSurfaceWS)

	addr := ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           logMiddleware(logger, mux),
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcSrv, healthSrv := startGRPCHealth(logger, *grpcHealthAddr)

	// Graceful shutdown on SIGINT/SIGTERM
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigc
		logger.Info("shutdown signal received; stopping server")
		if healthSrv != nil {
			healthSrv.Shutdown()
		}
		// Close sessions before draining HTTP so surfaces see a clean close
		if err := host.Close(); err != nil {
			logger.Warn("close sessions", "err", err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
		if grpcSrv != nil {
			grpcSrv.GracefulStop()
		}
	}()

	logger.Info("server starting", "addr", addr, "origin", cfg.Bridge.Origin)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server error", "err", err)
		os.Exit(1)
	}
}

// newFetcher prefers the gRPC backend over the HTTP one. Without either,
// secret requests from surfaces fail and are reported.
func newFetcher(cfg config.Config) (connect.SecretFetcher, func()) {
	account := secret.Account{PublicKey: cfg.Connect.PublicKey, MerchantID: cfg.Connect.MerchantID}
	timeout := time.Duration(cfg.Secret.TimeoutMs) * time.Millisecond
	switch {
	case cfg.Secret.GRPCAddr != "":
		f := secret.NewGRPCFetcher(cfg.Secret.GRPCAddr, account,
			secret.WithMethod(cfg.Secret.GRPCMethod),
			secret.WithTimeout(timeout),
		)
		return f, func() { _ = f.Close() }
	case cfg.Secret.HTTPURL != "":
		return secret.NewHTTPFetcher(cfg.Secret.HTTPURL, account, &http.Client{Timeout: timeout}), func() {}
	}
	slog.Warn("no client secret backend configured")
	return nil, func() {}
}

func overrides(cfg config.Config) connect.Overrides {
	o := connect.Overrides{
		MerchantID:    cfg.Connect.MerchantID,
		PlatformID:    cfg.Connect.PlatformID,
		APIKey:        cfg.Connect.APIKey,
		ApplicationID: cfg.Connect.ApplicationID,
	}
	if v, err := strconv.ParseBool(cfg.Connect.LiveMode); err == nil {
		o.LiveMode = &v
	}
	return o
}

func startGRPCHealth(logger *slog.Logger, addr string) (*grpc.Server, *health.Server) {
	if addr == "" {
		return nil, nil
	}
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		logger.Warn("grpc health listener", "addr", addr, "err", err)
		return nil, nil
	}
	s := grpc.NewServer()
	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(s, hs)
	go func() {
		logger.Info("grpc health listening", "addr", addr)
		if err := s.Serve(lis); err != nil {
			logger.Warn("grpc health server", "err", err)
		}
	}()
	return s, hs
}

func logMiddleware(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logger.Debug("http request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}
