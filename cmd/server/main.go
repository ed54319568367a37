package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/mama165/sdk-go/logs"
	"golang.org/x/sync/errgroup"

	"github.com/Tyrowin/linechat/internal/chat"
	"github.com/Tyrowin/linechat/internal/server"
)

// Exit codes reported to the service manager.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Server terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run wires the components and blocks until a signal arrives or a listener
// fails, so deferred cleanup always executes before exit.
func run() (int, error) {
	envFile := flag.String("env-file", ".env", "optional dotenv file loaded before the environment")
	flag.Parse()

	cfg, err := server.LoadConfig(*envFile)
	if err != nil {
		return exitConfig, err
	}
	log := logs.GetLoggerFromString(cfg.LogLevel)

	hub := chat.NewHub(log)
	handler := chat.NewHandler(hub, log)
	tcpServer := server.NewTCPServer(handler, log)

	tcpListener, err := net.Listen("tcp", cfg.TCPAddr)
	if err != nil {
		return exitRuntime, fmt.Errorf("failed to listen on %s: %w", cfg.TCPAddr, err)
	}

	var (
		gateway    *server.Gateway
		httpServer *http.Server
		httpLn     net.Listener
	)
	if cfg.HTTPAddr != "" {
		httpLn, err = net.Listen("tcp", cfg.HTTPAddr)
		if err != nil {
			_ = tcpListener.Close()
			return exitRuntime, fmt.Errorf("failed to listen on %s: %w", cfg.HTTPAddr, err)
		}
		gateway = server.NewGateway(handler, cfg.Origins(), cfg.MaxMessageSize, log)
		httpServer = server.CreateServer(cfg.HTTPAddr, server.SetupRoutes(gateway, hub, log))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := tcpServer.Serve(tcpListener); !errors.Is(err, server.ErrServerClosed) {
			return err
		}
		return nil
	})

	if httpServer != nil {
		g.Go(func() error {
			return server.StartServer(httpServer, httpLn, log)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		shutdown(cfg, log, hub, tcpServer, gateway, httpServer)
		return nil
	})

	if err := g.Wait(); err != nil {
		return exitRuntime, err
	}
	return exitOK, nil
}

// shutdown closes the front doors first so every connection runs its normal
// teardown, then releases the remaining delivery workers.
func shutdown(
	cfg *server.Config,
	log *slog.Logger,
	hub *chat.Hub,
	tcpServer *server.TCPServer,
	gateway *server.Gateway,
	httpServer *http.Server,
) {
	log.Info("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
	defer cancel()

	if httpServer != nil {
		_ = server.ShutdownServer(httpServer, cfg.ShutdownTimeout(), log)
		if err := gateway.Shutdown(ctx); err != nil {
			log.Warn("WebSocket gateway shutdown incomplete", "error", err)
		}
	}

	if err := tcpServer.Shutdown(ctx); err != nil {
		log.Warn("TCP server shutdown incomplete", "error", err)
	}

	hub.Close()
	if err := hub.Wait(ctx); err != nil {
		log.Warn("Delivery workers still running at exit", "error", err)
	}
	log.Info("Shutdown complete")
}
