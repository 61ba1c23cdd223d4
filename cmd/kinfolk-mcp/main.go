// Command kinfolk-mcp serves the genealogy tool catalog to MCP clients over
// stdio, or over Streamable HTTP when -http is set.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/suPer8Hu/kinfolk/internal/app"
	"github.com/suPer8Hu/kinfolk/internal/config"
	"github.com/suPer8Hu/kinfolk/internal/logger"
	"github.com/suPer8Hu/kinfolk/internal/tools"
)

const version = "0.1.0"

func main() {
	httpAddr := flag.String("http", "", "serve Streamable HTTP on this address instead of stdio")
	flag.Parse()

	// stdout carries the protocol
	log := logger.NewWithWriter("kinfolk-mcp", os.Stderr)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("init app")
	}
	defer a.Close()

	s := server.NewMCPServer("kinfolk", version, server.WithToolCapabilities(true))
	tools.RegisterTools(s, a.Tools, a.Dispatcher)

	if *httpAddr == "" {
		log.Info().Strs("tools", a.Tools.Names()).Msg("serving mcp over stdio")
		if err := server.ServeStdio(s); err != nil {
			log.Error().Err(err).Msg("stdio server")
		}
		return
	}

	streamSrv := server.NewStreamableHTTPServer(s, server.WithEndpointPath("/mcp"))
	srv := &http.Server{Addr: *httpAddr, Handler: streamSrv, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		log.Info().Str("addr", *httpAddr).Msg("serving mcp over http")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("listen")
		}
	}()
	<-ctx.Done()
	sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(sctx)
}
