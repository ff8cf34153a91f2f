package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	wbclient "github.com/JWambaugh/webull/client"
	"github.com/JWambaugh/webull/config"
	"github.com/JWambaugh/webull/pkg/logger"
	"github.com/JWambaugh/webull/types"
)

func main() {
	var (
		configPath = flag.String("config", "config.yaml", "path to the yaml config file")
		symbol     = flag.String("symbol", "AAPL", "ticker symbol to trade")
		side       = flag.String("side", "BUY", "order side: BUY or SELL")
		qty        = flag.Float64("qty", 1, "order quantity")
		limit      = flag.Float64("limit", 0, "limit price, 0 for a market order")
		cancel     = flag.Bool("cancel", false, "cancel the order right after placing it")
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

	ctx, cancelCtx := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancelCtx()

	if err := run(ctx, cfg, *symbol, *side, *qty, *limit, *cancel); err != nil {
		logger.Errorf("wb-order failed: %v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, symbol, side string, qty, limit float64, cancelAfter bool) error {
	opts := wbclient.Options{
		RegionID:     cfg.Account.RegionID,
		DeviceID:     cfg.Device.ID,
		DeviceIDFile: cfg.Device.File,
		DeviceName:   cfg.Device.Name,
	}

	var (
		cli *wbclient.Client
		err error
	)
	if cfg.Account.Paper {
		cli, err = wbclient.NewPaper(opts)
	} else {
		cli, err = wbclient.NewLive(opts)
	}
	if err != nil {
		return err
	}

	creds := wbclient.Credentials{Username: cfg.Account.Username, Password: cfg.Account.Password}
	_, err = cli.Login(ctx, creds)
	if errors.Is(err, types.ErrMfaRequired) {
		creds.MFACode, err = promptMFA(ctx, cli, creds)
		if err != nil {
			return err
		}
		_, err = cli.Login(ctx, creds)
	}
	if err != nil {
		return err
	}
	defer cli.Logout(context.Background())

	if !cfg.Account.Paper {
		if cfg.Account.TradePIN == "" {
			return fmt.Errorf("live trading requires WEBULL_TRADE_PIN")
		}
		if err := cli.ElevateTradeToken(ctx, cfg.Account.TradePIN); err != nil {
			return err
		}
	}

	order := wbclient.NewOrder().Symbol(symbol).Quantity(qty)
	if strings.EqualFold(side, "SELL") {
		order = order.Sell()
	} else {
		order = order.Buy()
	}
	if limit > 0 {
		order = order.Limit(limit)
	}

	orderID, err := cli.PlaceOrder(ctx, order)
	if err != nil {
		return err
	}
	fmt.Printf("placed order %s\n", orderID)

	if cancelAfter {
		if err := cli.CancelOrder(ctx, orderID); err != nil {
			return err
		}
		fmt.Printf("cancelled order %s\n", orderID)
	}
	return nil
}

func promptMFA(ctx context.Context, cli *wbclient.Client, creds wbclient.Credentials) (string, error) {
	if err := cli.RequestMFA(ctx, creds.Username); err != nil {
		return "", err
	}
	fmt.Print("verification code sent, enter it: ")
	reader := bufio.NewReader(os.Stdin)
	code, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	code = strings.TrimSpace(code)
	if err := cli.CheckMFA(ctx, creds.Username, code); err != nil {
		return "", err
	}
	return code, nil
}
