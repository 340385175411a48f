// Package main is the entry point for the OKX trading engine: it loads
// configuration, opens the local databases, wires the market-data,
// strategy, risk, execution and monitoring layers together via the
// event bus, and runs until told to stop.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aristath/sentinel-okx/internal/config"
	"github.com/aristath/sentinel-okx/internal/connector/okx"
	"github.com/aristath/sentinel-okx/internal/coordinator"
	"github.com/aristath/sentinel-okx/internal/domain"
	"github.com/aristath/sentinel-okx/internal/events"
	"github.com/aristath/sentinel-okx/internal/execution"
	"github.com/aristath/sentinel-okx/internal/logging"
	"github.com/aristath/sentinel-okx/internal/marketdata"
	"github.com/aristath/sentinel-okx/internal/monitoring"
	"github.com/aristath/sentinel-okx/internal/persistence"
	"github.com/aristath/sentinel-okx/internal/risk"
	"github.com/rs/zerolog"
)

func main() {
	devMode := flag.Bool("dev", false, "human-readable logs; the OKX credential check in config.Load still applies unless DEV_MODE is set")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fallback := logging.New(logging.Config{Level: "info", Pretty: true})
		fallback.Fatal().Err(err).Msg("failed to load configuration")
	}
	if *devMode {
		cfg.DevMode = true
	}

	log := logging.New(logging.Config{Level: cfg.LogLevel, Pretty: cfg.DevMode})
	log.Info().Msg("starting engine")

	ledgerDB, err := persistence.Open(persistence.Config{Path: cfg.DataDir + "/ledger.db", Profile: persistence.ProfileLedger, Name: "ledger"})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open ledger database")
	}
	defer ledgerDB.Close()

	historyDB, err := persistence.Open(persistence.Config{Path: cfg.DataDir + "/history.db", Profile: persistence.ProfileStandard, Name: "history"})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open history database")
	}
	defer historyDB.Close()

	orderStore, err := persistence.NewOrderStore(ledgerDB)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize order store")
	}
	barStore, err := persistence.NewBarStore(historyDB)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize bar store")
	}

	rootCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	coldStore, err := persistence.NewColdStore(rootCtx, cfg.S3.Bucket, cfg.S3.Region, cfg.S3.Prefix)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize cold storage")
	}
	if coldStore.Enabled() {
		log.Info().Str("bucket", cfg.S3.Bucket).Msg("cold storage archival enabled")
	}

	bus := events.NewBus(log)

	creds := okx.Credentials{APIKey: cfg.OKX.APIKey, APISecret: cfg.OKX.APISecret, Passphrase: cfg.OKX.Passphrase}
	restClient := okx.NewRESTClient(creds, cfg.OKX.RESTBaseURL, log)

	execManager := execution.NewManager(restClient, bus, cfg.Monitoring.AckTimeout, log)

	validator := risk.NewValidator(riskLimitsFromConfig(cfg))
	varEngine := risk.NewEngine(cfg.Risk.VaRConfidence)

	coord := coordinator.New(bus, validator, execManager, log)

	metrics := monitoring.NewRegistry()
	alerts := monitoring.NewAlertEvaluator(bus, log)
	registerBuiltinAlerts(alerts, metrics)
	go alerts.Run(10 * time.Second)
	defer alerts.Stop()

	aggregator := marketdata.NewAggregator(func(bar marketdata.Bar) {
		metrics.Counter("bars_closed").Inc(1)
		if err := barStore.Insert(rootCtx, bar); err != nil {
			log.Error().Err(err).Msg("failed to persist bar")
		}
		coord.OnBar(bar)
	})

	qc := marketdata.NewQualityControl(marketdata.DefaultQCConfig())
	lastPrice := marketdata.NewLastPriceCache(5 * time.Minute)

	publicStream := okx.NewStreamClient(cfg.OKX.WSPublicURL, okx.Credentials{}, bus, log)
	publicStream.OnMessage(func(channel string, data json.RawMessage) {
		metrics.Counter("ticks_received").Inc(1)
		handleTickerMessage(data, qc, aggregator, lastPrice, bus, log)
	})

	if err := publicStream.Start(rootCtx, []okx.Channel{{Name: "tickers", InstID: "BTC-USDT-SWAP"}}); err != nil {
		log.Error().Err(err).Msg("failed to start public market data stream")
	}
	defer publicStream.Stop()

	if err := coord.StartPeriodicTasks("@every 30s", func() {
		reconcileOpenOrders(rootCtx, execManager, orderStore, log)
	}); err != nil {
		log.Fatal().Err(err).Msg("failed to schedule reconciliation")
	}
	defer coord.Stop()

	log.Info().Float64("confidence", cfg.Risk.VaRConfidence).Msg("portfolio VaR engine ready")
	_ = varEngine // constructed here; nothing in this binary calls it

	log.Info().Msg("engine started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutdown signal received, stopping")
}

// riskLimitsFromConfig maps the loaded configuration onto the domain's
// risk limit bounds.
func riskLimitsFromConfig(cfg *config.Config) domain.RiskLimits {
	return domain.RiskLimits{
		MaxOrderNotional:    cfg.Risk.MaxOrderNotional,
		MaxPositionNotional: cfg.Risk.MaxPositionNotional,
		MaxLeverage:         cfg.Risk.MaxLeverage,
		MaxDailyLossLimit:   cfg.Risk.MaxDailyLossLimit,
		MaxOrdersPerMinute:  120,
	}
}

// registerBuiltinAlerts wires the monitoring counters collected during
// startup to a small set of always-on operational alerts.
func registerBuiltinAlerts(eval *monitoring.AlertEvaluator, metrics *monitoring.Registry) {
	eval.Register(
		domain.AlertRule{Name: "no_ticks_received", Severity: domain.AlertWarning, PersistFor: int64(2 * time.Minute), CooldownFor: int64(5 * time.Minute)},
		func() bool { return metrics.Counter("ticks_received").Value() == 0 },
	)
}

// okxTickerMessage is the subset of OKX's "tickers" channel payload this
// engine consumes.
type okxTickerMessage struct {
	InstID string `json:"instId"`
	Last   string `json:"last"`
	Vol24h string `json:"vol24h"`
	Ts     string `json:"ts"`
}

func handleTickerMessage(data json.RawMessage, qc *marketdata.QualityControl, aggregator *marketdata.Aggregator, lastPrice *marketdata.LastPriceCache, bus *events.Bus, log zerolog.Logger) {
	var msgs []okxTickerMessage
	if err := json.Unmarshal(data, &msgs); err != nil {
		log.Warn().Err(err).Msg("failed to decode ticker message")
		return
	}

	for _, m := range msgs {
		symbol, err := domain.NewSymbol(m.InstID)
		if err != nil {
			continue
		}
		price, err := domain.NewPrice(m.Last)
		if err != nil {
			continue
		}
		volume, err := domain.NewQuantity(m.Vol24h)
		if err != nil {
			volume = domain.ZeroQuantity
		}

		now := time.Now()
		tick := marketdata.Tick{Symbol: symbol, Price: price, Volume: volume, Time: domain.Now()}
		if reason, ok := qc.Check(tick, now); !ok {
			log.Debug().Str("symbol", symbol.String()).Str("reason", string(reason)).Msg("tick rejected by quality control")
			continue
		}

		lastPrice.Set(symbol, price, now)
		aggregator.Ingest(tick)
		bus.Publish(&events.MarketDataReceivedData{Symbol: symbol, Price: price, Volume: volume})
	}
}

// reconcileOpenOrders fetches the exchange-side state of every
// non-terminal order so that a missed fill notification cannot leave the
// engine with a stale view of its own book, and persists the result to
// the order ledger.
func reconcileOpenOrders(ctx context.Context, mgr *execution.Manager, store *persistence.OrderStore, log zerolog.Logger) {
	open := mgr.OpenOrders()
	for _, order := range open {
		if err := mgr.Reconcile(ctx, order.ClientOrderID); err != nil {
			log.Warn().Err(err).Str("client_order_id", order.ClientOrderID).Msg("order reconciliation failed")
			continue
		}
		if updated, ok := mgr.Get(order.ClientOrderID); ok {
			if err := store.Upsert(ctx, updated); err != nil {
				log.Error().Err(err).Str("client_order_id", order.ClientOrderID).Msg("failed to persist reconciled order")
			}
		}
	}
}
