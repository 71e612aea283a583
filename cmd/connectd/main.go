package main

import (
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"connectkit/internal/accounts"
	"connectkit/internal/api"
	"connectkit/internal/client"
	"connectkit/internal/cloudsync"
	"connectkit/internal/config"
	"connectkit/internal/device"
	"connectkit/internal/keyring"
	"connectkit/internal/provider"
	"connectkit/internal/session"
	"connectkit/internal/signflow"
	"connectkit/internal/storage"
)

// usdcContract is the mainnet USDC token watched during balance hydration.
var usdcContract = common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")

func newLogger() (*zap.Logger, error) {
	zapCfg := zap.NewProductionConfig()
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return zapCfg.Build()
}

func main() {
	if err := config.Init(); err != nil {
		panic(err)
	}

	log, err := newLogger()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	store, err := storage.NewFileStore(config.GetStorageDir())
	if err != nil {
		log.Fatal("failed to open local storage", zap.Error(err))
	}

	sessionStore := session.NewStore()

	bridge := device.NewBridge(config.GetBridgeURL(), log)
	devices := device.NewManager(bridge, sessionStore, log)

	syncClient := client.NewSyncClient(config.GetSyncBaseURL(), log)
	chainClient := client.NewChainClient(config.GetChainRPCURL(), log)
	ratesClient := client.NewRatesClient(config.GetRatesBaseURL(), log)

	keys := keyring.New(store, syncClient, log)

	list := accounts.NewList()
	syncer := cloudsync.New(syncClient, chainClient, ratesClient, list, config.GetSyncVersion(), log)
	syncer.WatchToken("USDC", usdcContract)

	flow := signflow.New(bridge, chainClient, sessionStore, log)

	widgetProvider := provider.New(sessionStore, devices, keys, syncer, list, flow, log)
	defer widgetProvider.Close()

	announcement := provider.NewAnnouncement(widgetProvider, config.GetWalletName(), "", config.GetWalletRDNS())
	log.Info("provider announced",
		zap.String("uuid", announcement.Info.UUID),
		zap.String("rdns", announcement.Info.RDNS))

	router := api.SetupRouter(widgetProvider, log)

	log.Info("connectd listening", zap.String("port", config.GetPort()))
	if err := http.ListenAndServe(":"+config.GetPort(), router); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}
