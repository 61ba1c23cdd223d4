package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/kinfolk/internal/app"
	"github.com/suPer8Hu/kinfolk/internal/config"
	"github.com/suPer8Hu/kinfolk/internal/httpapi"
	"github.com/suPer8Hu/kinfolk/internal/httpapi/handlers"
	"github.com/suPer8Hu/kinfolk/internal/logger"
	"github.com/suPer8Hu/kinfolk/internal/store/rabbitmq"
)

func main() {
	log := logger.New("kinfolk-api")

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

	h := &handlers.Handler{
		Graph:      a.Graph,
		Chat:       a.Orchestrator(nil),
		Jobs:       a.ChatRepo,
		Tools:      a.Tools,
		Dispatcher: a.Dispatcher,
		AI:         a.Backend,
		Profiles:   cfg.ProfileNames(),
		Log:        log,
	}

	if cfg.RabbitURL != "" {
		dctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		pub, err := rabbitmq.NewPublisher(dctx, cfg.RabbitURL, cfg.RabbitQueue, log)
		cancel()
		if err != nil {
			log.Warn().Err(err).Msg("rabbitmq unavailable, async chat disabled")
		} else {
			defer pub.Close()
			h.Publisher = pub
		}
	}

	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.NewRouter(h),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Strs("profiles", cfg.ProfileNames()).Msg("api listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("listen")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		log.Error().Err(err).Msg("shutdown")
	}
}
