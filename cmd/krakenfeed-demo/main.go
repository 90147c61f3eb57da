// Command krakenfeed-demo connects to Kraken's public WebSocket feed,
// subscribes to a book and trade channel, and logs what it receives. It
// exists to exercise the client package end-to-end, the way the original
// kraken-sdk example binary did.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"krakenfeed/client"
	"krakenfeed/config"
	"krakenfeed/logger"
	"krakenfeed/metrics"
	"krakenfeed/models"
)

func main() {
	log := logger.GetLogger()

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("error loading .env file")
	}

	configPath := flag.String("config", "", "path to configuration file (optional, defaults are used otherwise)")
	symbol := flag.String("symbol", "XBT/USD", "trading pair to subscribe to")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.WithError(err).Error("failed to load configuration")
		os.Exit(1)
	}

	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		log.WithError(err).Error("failed to configure logger")
		os.Exit(1)
	}

	log.WithFields(logger.Fields{
		"service": cfg.Client.Name,
		"version": cfg.Client.Version,
	}).Info("starting krakenfeed-demo")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Metrics.CloudWatch.Enabled {
		if err := metrics.InitCloudWatch(ctx, cfg.Metrics.CloudWatch.Region, cfg.Metrics.CloudWatch.Namespace); err != nil {
			log.WithError(err).Warn("CloudWatch metrics requested but unavailable, continuing with log-only metrics")
		} else {
			defer metrics.Disable()
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("shutdown signal received")
		cancel()
	}()

	c := client.New(cfg)
	if err := c.Connect(ctx); err != nil {
		log.WithError(err).Error("failed to start client")
		os.Exit(1)
	}

	events, stopEvents := c.Events()
	defer stopEvents()

	subCtx, subCancel := context.WithTimeout(ctx, cfg.Timeouts.Connect)
	defer subCancel()
	if err := c.Subscribe(subCtx, models.ChannelTrade, models.Symbol(*symbol)); err != nil {
		log.WithError(err).Error("failed to subscribe to trade channel")
	}
	if err := c.Subscribe(subCtx, models.ChannelBook, models.Symbol(*symbol), client.WithDepth(10)); err != nil {
		log.WithError(err).Error("failed to subscribe to book channel")
	}

	for {
		select {
		case <-ctx.Done():
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			_ = c.Shutdown(shutdownCtx)
			shutdownCancel()
			log.Info("krakenfeed-demo stopped")
			return

		case evt, ok := <-events:
			if !ok {
				return
			}
			logEvent(log, evt)
		}
	}
}

func logEvent(log *logger.Log, evt models.Event) {
	switch evt.Kind {
	case models.EventSystemStatus:
		log.WithFields(logger.Fields{"status": evt.SystemStatus.Status}).Info("system status")
	case models.EventTrade:
		log.WithFields(logger.Fields{
			"symbol": string(evt.Trade.Symbol),
			"count":  len(evt.Trade.Trades),
		}).Info("trade")
	case models.EventBookSnapshot, models.EventBookUpdate:
		fields := logger.Fields{
			"symbol":       string(evt.Book.Symbol),
			"synchronized": evt.Book.Synchronized,
		}
		if len(evt.Book.Asks) > 0 {
			fields["best_ask"] = evt.Book.Asks[0].Price
		}
		if len(evt.Book.Bids) > 0 {
			fields["best_bid"] = evt.Book.Bids[0].Price
		}
		log.WithFields(fields).Info("book")
	case models.EventSubscriptionStatus:
		log.WithFields(logger.Fields{
			"channel": evt.SubscriptionStatus.ChannelName,
			"kind":    evt.SubscriptionStatus.Kind,
		}).Info("subscription status")
	case models.EventError:
		log.WithFields(logger.Fields{"kind": evt.Error.Kind.String()}).Warn(evt.Error.Message)
	}
}
