package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mcp/src/brokers"
	"mcp/src/brokers/alpaca"
	"mcp/src/brokers/ninjatrader"
	"mcp/src/brokers/tradehybrid"
	"mcp/src/bus"
	"mcp/src/config"
	"mcp/src/interfaces"
	"mcp/src/logger"
	"mcp/src/marketdata"
	"mcp/src/marketdata/cmegroup"
	"mcp/src/marketdata/tradingview"
	"mcp/src/models"
	"mcp/src/network"
	"mcp/src/processors"
	"mcp/src/server"
	"mcp/src/storage"
)

// -----------------------------------------------------------------------------

func main() {

	// Parse command line flags
	configPath := flag.String("config", "../../config/default.yaml", "path to config file")
	flag.Parse()

	// Load config from YAML file
	cfg, err := config.NewConfig(*configPath)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	// Setup logger
	appLogger := logger.NewLogger(cfg.LogLevel, cfg.Name)

	// 1. Journal
	journal, err := storage.NewJournal(cfg.MConfig, appLogger)
	if err != nil {
		appLogger.Critical("Failed to init journal: %v", err)
	}
	if err := journal.Initialize(); err != nil {
		appLogger.Critical("Failed to migrate journal: %v", err)
	}

	// 2. Message bus
	msgBus := bus.NewMessageBus(&cfg.Bus, appLogger)

	// 3. Brokers (env-driven registration)
	brokerSvc := brokers.NewService(appLogger)
	registerBrokers(cfg, brokerSvc, appLogger)

	// 4. Market-data providers
	marketDataMgr := marketdata.NewManager(appLogger)
	registerProviders(cfg, marketDataMgr, appLogger)

	// 5. Server
	var srv interfaces.IDataExchanger = server.NewAPIServer(cfg.MConfig, appLogger, msgBus, brokerSvc, marketDataMgr)

	// 6. Processors
	signalStore := processors.NewSignalStore()
	signalProc := processors.NewSignalProcessor(signalStore, msgBus, journal, appLogger)
	notifProc := processors.NewNotificationProcessor(srv, appLogger)
	tradeProc := processors.NewTradeExecutionProcessor(brokerSvc, msgBus, journal, appLogger)

	msgBus.RegisterProcessor(models.MessageNewSignal, signalProc.Process)
	msgBus.RegisterProcessor(models.MessageSignalUpdate, signalProc.Process)
	msgBus.RegisterProcessor(models.MessageNotification, notifProc.Process)
	msgBus.RegisterProcessor(models.MessageTradeExecution, tradeProc.Process)

	// 7. Start
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := msgBus.Start(ctx); err != nil {
		appLogger.Critical("Failed to start message bus: %v", err)
	}

	go func() {
		if err := srv.Start(); err != nil {
			appLogger.Error("Server failed: %v", err)
		}
	}()

	// 8. Journal retention loop
	go func() {
		ticker := time.NewTicker(6 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := journal.CleanupOldData(); err != nil {
					appLogger.Warning("Journal cleanup failed: %v", err)
				}
			}
		}
	}()

	appLogger.Info("%s running on %s:%d", cfg.Name, cfg.Host, cfg.Port)

	// 9. Wait for shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down...")
	cancel()

	if err := srv.Stop(); err != nil {
		appLogger.Warning("Server shutdown error: %v", err)
	}
	if err := msgBus.Stop(); err != nil {
		appLogger.Warning("Bus shutdown error: %v", err)
	}
	marketDataMgr.DisconnectAll()
	brokerSvc.DisconnectAll()
	if err := journal.Close(); err != nil {
		appLogger.Warning("Journal close error: %v", err)
	}
}

// -----------------------------------------------------------------------------

// registerBrokers wires one adapter per credential set found in the
// environment. A missing set skips the adapter.
func registerBrokers(cfg *config.Config, svc *brokers.Service, log *logger.Logger) {
	for _, creds := range cfg.BrokerCredentials() {
		var conn interfaces.IBrokerConnection

		switch creds.ID {
		case "alpaca":
			netMgr := network.NewAsyncNetworkManager(&cfg.Network, log, 200)
			conn = alpaca.NewAlpacaBroker(creds.BaseURL, creds, netMgr)
		case "tradehybrid":
			netMgr := network.NewAsyncNetworkManager(&cfg.Network, log, 120)
			conn = tradehybrid.NewTradeHybridBroker(creds.BaseURL, creds, netMgr)
		case "ninjatrader":
			netMgr := network.NewAsyncNetworkManager(&cfg.Network, log, 0)
			conn = ninjatrader.NewNinjaTraderBroker(creds.BaseURL, creds, netMgr)
		default:
			continue
		}

		if err := svc.RegisterBroker(conn); err != nil {
			log.Warning("Skipping broker %s: %v", creds.ID, err)
		}
	}

	if len(svc.GetAllBrokers()) == 0 {
		log.Warning("No broker credentials found, trade execution is disabled")
	}
}

// -----------------------------------------------------------------------------

// registerProviders wires market-data adapters. TradingView registers
// whenever a base URL is configured because its read endpoints work without
// a token; CME needs OAuth credentials.
func registerProviders(cfg *config.Config, mgr *marketdata.Manager, log *logger.Logger) {
	providerCreds := make(map[string]models.MProviderCredentials)
	for _, creds := range cfg.ProviderCredentials() {
		providerCreds[creds.ID] = creds
	}

	if cfg.MarketData.TradingViewBaseURL != "" {
		netMgr := network.NewAsyncNetworkManager(&cfg.Network, log, 120)
		p := tradingview.NewTradingViewProvider(cfg.MarketData.TradingViewBaseURL, providerCreds["tradingview"], netMgr)
		if err := mgr.RegisterProvider(p); err != nil {
			log.Warning("Skipping provider tradingview: %v", err)
		}
	}

	if creds, ok := providerCreds["cmegroup"]; ok && cfg.MarketData.CMEGroupBaseURL != "" {
		netMgr := network.NewAsyncNetworkManager(&cfg.Network, log, 60)
		p := cmegroup.NewCMEGroupProvider(cfg.MarketData.CMEGroupBaseURL, creds, netMgr)
		if err := mgr.RegisterProvider(p); err != nil {
			log.Warning("Skipping provider cmegroup: %v", err)
		}
	}

	if len(mgr.GetAllProviders()) == 0 {
		log.Warning("No market-data providers configured")
	}
}
