package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/rs/zerolog"

	"github.com/fixdesk/fixdesk/backend"
	"github.com/fixdesk/fixdesk/internal/cachestore"
	"github.com/fixdesk/fixdesk/internal/config"
	"github.com/fixdesk/fixdesk/server"
)

func main() {
	for {
		if err := run(); err != nil {
			log.Fatalf("Error running server: %s\n", err)
			time.Sleep(1 * time.Second)
		} else {
			break
		}
	}
	log.Printf("Server stopped\n")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered from panic: %v\n", r)
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	c, err := config.New()
	if err != nil {
		return fmt.Errorf("config.New %w", err)
	}
	displayAppname(c.GetAppName())

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	backendClient, err := backend.New(c.GetBackendURL(), c.GetBackendKey())
	if err != nil {
		return fmt.Errorf("backend.New %w", err)
	}

	prober, err := backend.NewHealthProber(c.GetHealthEndpoint())
	if err != nil {
		return fmt.Errorf("backend.NewHealthProber %w", err)
	}

	hints, err := newHintStore(c, logger)
	if err != nil {
		return fmt.Errorf("newHintStore %w", err)
	}

	srv, err := server.New(c, server.Backends{
		Auth:    backendClient.Auth(),
		Data:    backendClient.Data(),
		Prober:  prober,
		Storage: backendClient.Storage(),
	}, hints, server.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("server.New %w", err)
	}
	defer srv.Close()

	httpServer := &http.Server{Addr: c.GetPort(), Handler: srv}
	go listenAndServe(httpServer)
	waitForStopSignal()
	returnError = shutdown(httpServer)
	return returnError
}

// newHintStore picks Redis when configured so token hints and redirect
// markers survive a restart, falling back to in-process memory.
func newHintStore(c config.Config, logger zerolog.Logger) (cachestore.Store, error) {
	redisURL := c.GetRedisURL()
	if redisURL == "" {
		logger.Info().Msg("no REDIS_URL set, using in-memory hint store")
		return cachestore.NewMemory(), nil
	}
	store, err := cachestore.NewRedis(redisURL)
	if err != nil {
		return nil, fmt.Errorf("cachestore.NewRedis %w", err)
	}
	logger.Info().Msg("using Redis hint store")
	return store, nil
}

func listenAndServe(server *http.Server) error {
	log.Printf("Server listening on %s\n", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
