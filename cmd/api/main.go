package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/net/netutil"

	"shared-tasks-backend/internal/config"
	"shared-tasks-backend/internal/db"
	"shared-tasks-backend/internal/server"
	"shared-tasks-backend/internal/store"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed load config: ", err)
	}

	logger := log.New(os.Stderr, "", log.LstdFlags)

	st, err := openStore(cfg)
	if err != nil {
		log.Fatal("failed to open store: ", err)
	}
	defer st.Close()

	handler, err := server.NewHandler(server.Options{
		Store:         st,
		JWTSecret:     []byte(cfg.JWTSecret),
		TokenTTL:      cfg.TokenTTL,
		BcryptCost:    cfg.BcryptCost,
		AllowedOrigin: cfg.FrontendURL,
		Logger:        logger,

		RateLimit:      cfg.RateLimit,
		LoginRateLimit: cfg.LoginRateLimit,
		RateWindow:     cfg.RateWindow,
	})
	if err != nil {
		log.Fatal(err)
	}

	ln, err := net.Listen("tcp", cfg.Addr())
	if err != nil {
		log.Fatal(err)
	}
	if cfg.MaxConns > 0 {
		ln = netutil.LimitListener(ln, cfg.MaxConns)
	}

	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          logger,
	}

	go func() {
		log.Printf("API server is running on %s (store=%s)", cfg.Addr(), cfg.Store)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("[WARN] shutdown: %v", err)
	}
}

func openStore(cfg *config.Config) (store.Store, error) {
	if cfg.Store == config.StoreMemory {
		log.Println("using in-memory store, data is lost on exit")
		return store.NewMemory(), nil
	}

	database, err := db.Connect(cfg.ConnString())
	if err != nil {
		return nil, err
	}
	log.Println("Connected to PostgreSQL")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := db.Migrate(ctx, database); err != nil {
		database.Close()
		return nil, err
	}
	return store.NewPostgres(database), nil
}
