package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/fingreat/agent"
	"github.com/jrsteele09/fingreat/authcallback"
	"github.com/jrsteele09/fingreat/backend"
	"github.com/jrsteele09/fingreat/company"
	"github.com/jrsteele09/fingreat/internal/config"
	"github.com/jrsteele09/fingreat/internal/logging"
	"github.com/jrsteele09/fingreat/kvstore"
	"github.com/jrsteele09/fingreat/market"
	"github.com/jrsteele09/fingreat/server"
	"github.com/jrsteele09/fingreat/session"
	"github.com/jrsteele09/fingreat/upstox"
	"github.com/jrsteele09/fingreat/window"
	"github.com/rs/zerolog/log"
)

func main() {
	for {
		if err := run(); err != nil {
			log.Fatal().Err(err).Msg("Error running server")
			time.Sleep(1 * time.Second)
		} else {
			break
		}
	}
	log.Info().Msg("Server stopped")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Msgf("Recovered from panic: %v", r)
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	c := config.New()
	if err := logging.Setup(c.GetEnv(), c.GetLogLevel(), c.GetLogFile()); err != nil {
		return fmt.Errorf("logging.Setup: %w", err)
	}
	displayAppname(c.GetAppName())

	store, closeStore := openStore(c.GetDataFolder())
	defer closeStore()

	upstoxClient := upstox.NewClient(c.GetUpstoxBaseURL(), c.GetUpstoxClientID(), c.GetUpstoxClientSecret(), c.GetUpstoxRedirectURI(), nil)
	backendClient := backend.NewClient(c.GetAPIURL(), c.GetAPITimeout())

	bus := window.NewBus()
	hub := server.NewHub(bus, c.GetAllowedOrigins())

	var opener window.PopupOpener = hub
	if c.GetOpenerMode() == config.OpenerSystem {
		opener = window.SystemBrowser{}
	}

	flow := session.NewFlow(upstoxClient, store, backendClient)
	controller := session.NewController(flow, store, backendClient, opener, bus, session.Options{
		Origin:       c.GetOrigin(),
		DialogURL:    upstoxClient.AuthorizationDialogURL(),
		PollInterval: c.GetConnectPollInterval(),
		Timeout:      c.GetConnectTimeout(),
		Features:     window.DefaultFeatures,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Restore the stored session before serving.
	if err := controller.Init(ctx, window.NewStaticLocation(c.GetBaseURL())); err != nil {
		log.Err(err).Msg("Failed to restore session")
	}

	poller := market.NewPoller(backendClient, c.GetQuoteInterval())
	poller.Start(ctx)

	selection := company.NewSelection()
	agentService := agent.NewService(backendClient, controller, selection, agent.NewInMemoryRepo())

	srv := server.New(c, server.Deps{
		Controller: controller,
		Callback:   authcallback.NewHandler(flow, c.GetPopupCloseDelay()),
		Bus:        bus,
		Hub:        hub,
		Poller:     poller,
		Company:    selection,
		Agent:      agentService,
	})
	srv.Start(ctx)

	httpServer := &http.Server{Addr: c.GetPort(), Handler: srv}
	errs := make(chan error, 1)
	go func() { errs <- listenAndServe(httpServer) }()

	select {
	case err := <-errs:
		returnError = err
	case <-waitForStopSignal():
		returnError = shutdown(httpServer)
	}

	cancel()
	poller.Stop()
	controller.Close()
	hub.Close()
	flow.Wait()
	return returnError
}

// openStore opens the SQLite store in dataFolder, falling back to memory.
func openStore(dataFolder string) (kvstore.Store, func()) {
	sqliteStore, err := kvstore.NewSQLiteStore(filepath.Join(dataFolder, "fingreat.db"))
	if err != nil {
		log.Warn().Err(err).Msg("SQLite store unavailable, sessions will not survive a restart")
		return kvstore.NewInMemoryStore(), func() {}
	}
	return sqliteStore, func() {
		if err := sqliteStore.Close(); err != nil {
			log.Err(err).Msg("Failed to close store")
		}
	}
}

func listenAndServe(server *http.Server) error {
	log.Info().Msgf("Server listening on %s", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() <-chan os.Signal {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	return stop
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
