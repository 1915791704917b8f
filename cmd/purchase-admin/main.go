package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mzakharov/bookstore-admin/internal/bookstore"
	"github.com/mzakharov/bookstore-admin/internal/config"
	"github.com/mzakharov/bookstore-admin/internal/dialog"
	"github.com/mzakharov/bookstore-admin/internal/handler"
	"github.com/mzakharov/bookstore-admin/internal/purchase"
	"github.com/mzakharov/bookstore-admin/internal/transport"
)

func main() {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	log.Logger = log.With().Str("service", "purchase-admin").Logger()

	log.Info().Msg("Purchase admin starting...")

	cfg, err := config.Load(".env")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	client, err := bookstore.New(cfg.Bookstore.BaseURL, cfg.Bookstore.Token, cfg.Bookstore.Timeout)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build bookstore client")
	}

	presenter := dialog.NewLogPresenter()
	dialogs := dialog.NewSequencer(presenter, cfg.Dialog.CloseWait)
	presenter.Bind(dialogs)

	store := purchase.NewStore(client)
	draft := purchase.NewDraft()
	lifecycle := purchase.NewLifecycle(client, client, store, draft, dialogs)
	promotion := purchase.NewPromotion(client, store, dialogs)

	lifecycle.OnChange(func(ctx context.Context, change purchase.Change) {
		log.Debug().Str("kind", string(change.Kind)).Int64("order_id", change.OrderID).Msg("order data changed, collaborators stale")
	})
	promotion.OnComplete("catalog", func(ctx context.Context) error {
		_, err := client.ListBooks(ctx)
		return err
	})

	h := handler.NewPurchaseHandler(store, draft, lifecycle, promotion, client)

	srv := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      transport.NewRouter(h),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.App.Port).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	log.Info().Msg("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Shutdown failed")
	}
	log.Info().Msg("Server stopped")
}
