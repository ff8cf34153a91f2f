package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	wbclient "github.com/JWambaugh/webull/client"
	"github.com/JWambaugh/webull/config"
	"github.com/JWambaugh/webull/pkg/logger"
	"github.com/JWambaugh/webull/stream"
)

func main() {
	var (
		configPath = flag.String("config", "config.yaml", "path to the yaml config file")
		symbol     = flag.String("symbol", "AAPL", "ticker symbol to watch")
		orders     = flag.Bool("orders", false, "also watch order pushes for the account")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if err := logger.Init(logger.Config{
		Level:      cfg.Log.Level,
		OutputFile: cfg.Log.OutputFile,
		MaxSize:    cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAgeDays,
		Compress:   cfg.Log.Compress,
	}); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if err := run(cfg, *symbol, *orders); err != nil {
		logger.Errorf("wb-stream failed: %v", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, symbol string, watchOrders bool) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	opts := wbclient.Options{
		RegionID:     cfg.Account.RegionID,
		DeviceID:     cfg.Device.ID,
		DeviceIDFile: cfg.Device.File,
		DeviceName:   cfg.Device.Name,
	}
	cli, err := wbclient.NewPaper(opts)
	if err != nil {
		return err
	}

	loginCtx, loginCancel := context.WithTimeout(ctx, 30*time.Second)
	defer loginCancel()
	if _, err := cli.Login(loginCtx, wbclient.Credentials{
		Username: cfg.Account.Username,
		Password: cfg.Account.Password,
	}); err != nil {
		return err
	}
	defer cli.Logout(context.Background())

	tickerID, err := cli.ResolveTickerID(loginCtx, symbol)
	if err != nil {
		return err
	}

	sess := cli.Session()
	sc := stream.NewClient(stream.Config{
		URL:           cfg.Stream.URL,
		AccessToken:   sess.AccessToken,
		DeviceID:      sess.DeviceID,
		Reconnect:     cfg.Stream.Reconnect,
		MaxReconnect:  cfg.Stream.MaxReconnect,
		PingInterval:  time.Duration(cfg.Stream.PingIntervalMS) * time.Millisecond,
		QueueSize:     cfg.Stream.QueueSize,
		OnStateChange: func(s stream.State) { logger.Infof("stream state: %s", s) },
	})
	defer sc.Disconnect()

	sc.OnTicker(stream.TopicTickerQuote, func(topic stream.Topic, payload json.RawMessage) {
		logger.WithField("tickerId", topic.TickerID).Infof("quote: %s", string(payload))
	})
	sc.OnTicker(stream.TopicTickerTrade, func(topic stream.Topic, payload json.RawMessage) {
		logger.WithField("tickerId", topic.TickerID).Infof("trade: %s", string(payload))
	})
	if watchOrders {
		sc.OnOrders(func(topic stream.Topic, payload json.RawMessage) {
			logger.WithField("account", topic.AccountID).Infof("order push: %s", string(payload))
		})
	}

	// Registering before Connect is fine; the handshake flushes them.
	if err := sc.SubscribeTicker(tickerID); err != nil {
		return err
	}
	if watchOrders {
		if err := sc.SubscribeOrders(cli.AccountID()); err != nil {
			return err
		}
	}

	if err := sc.Connect(ctx); err != nil {
		return err
	}
	logger.Infof("watching %s (ticker %d), ctrl-c to stop", symbol, tickerID)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	return nil
}
