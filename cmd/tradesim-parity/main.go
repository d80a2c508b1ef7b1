// Run the same backtest through both engines and report metric parity.
// Exits non-zero when any metric disagrees beyond the configured tolerances.
//
// Usage:
//
//	go run cmd/tradesim-parity/main.go -strategy buyhold -symbols AAPL -start 2024-01-01 -end 2024-06-30
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/shopspring/decimal"

	"tradesim/internal/backtest"
	"tradesim/internal/config"
	"tradesim/internal/domain"
	"tradesim/internal/store"
	"tradesim/internal/strategy"
	"tradesim/internal/strategy/builtins"
	"tradesim/internal/util"
)

func main() {
	cfgPath := "config/tradesim.yaml"
	if p := os.Getenv("TRADESIM_CONFIG"); p != "" {
		cfgPath = p
	}

	var (
		strategyName = flag.String("strategy", "buyhold", "strategy name")
		symbols      = flag.String("symbols", "", "comma-separated symbols (required)")
		start        = flag.String("start", "", "start date, YYYY-MM-DD (required)")
		end          = flag.String("end", "", "end date, YYYY-MM-DD (required)")
		cash         = flag.String("cash", "100000", "initial cash")
		seed         = flag.Int64("seed", 1, "simulation seed")
		params       = flag.String("params", "", "strategy parameters, k=v comma-separated")
	)
	flag.Parse()

	if *symbols == "" || *start == "" || *end == "" {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.NewLogger(cfg.Logging.Level)
	util.SetDefault(logger)

	req, err := buildRequest(*strategyName, *symbols, *start, *end, *cash, *seed, *params)
	if err != nil {
		log.Fatalf("invalid request: %v", err)
	}

	bars, err := newBarStore(cfg)
	if err != nil {
		log.Fatalf("failed to open bar store: %v", err)
	}

	// A risk-constrained run is not comparable: the vector engine has no
	// order pipeline to reject against.
	event := backtest.NewEventEngine(bars, newStrategies(), backtest.EventEngineConfig{
		Simulator: cfg.Simulation,
	}, nil, logger)
	vector := backtest.NewVectorEngine(bars, newStrategies(), backtest.VectorEngineConfig{
		SlippageBps:        cfg.Simulation.SlippageBps,
		CommissionPerShare: cfg.Simulation.CommissionPerShare.InexactFloat64(),
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	resA, err := event.Run(ctx, req)
	if err != nil {
		log.Fatalf("event engine failed: %v", err)
	}
	resB, err := vector.Run(ctx, req)
	if err != nil {
		log.Fatalf("vector engine failed: %v", err)
	}

	report := backtest.Compare(resA, resB, cfg.Parity)
	fmt.Print(report)
	if !report.Pass {
		os.Exit(1)
	}
}

func buildRequest(strategyName, symbols, start, end, cash string, seed int64, params string) (domain.RunRequest, error) {
	startTS, err := time.Parse("2006-01-02", start)
	if err != nil {
		return domain.RunRequest{}, fmt.Errorf("parsing start date: %w", err)
	}
	endTS, err := time.Parse("2006-01-02", end)
	if err != nil {
		return domain.RunRequest{}, fmt.Errorf("parsing end date: %w", err)
	}
	initialCash, err := decimal.NewFromString(cash)
	if err != nil {
		return domain.RunRequest{}, fmt.Errorf("parsing cash: %w", err)
	}

	req := domain.RunRequest{
		StrategyName: strategyName,
		Symbols:      strings.Split(symbols, ","),
		Start:        startTS,
		End:          endTS.Add(24*time.Hour - time.Nanosecond),
		InitialCash:  initialCash,
		Seed:         seed,
	}
	if params != "" {
		req.Parameters = make(map[string]string)
		for _, kv := range strings.Split(params, ",") {
			k, v, ok := strings.Cut(kv, "=")
			if !ok {
				return domain.RunRequest{}, fmt.Errorf("malformed parameter %q (want k=v)", kv)
			}
			req.Parameters[k] = v
		}
	}
	return req, req.Validate()
}

func newBarStore(cfg *config.Config) (store.BarStore, error) {
	switch cfg.Storage.Backend {
	case "sqlite":
		return store.NewSQLiteStore(cfg.Storage.SQLitePath)
	default:
		return store.NewParquetStore(cfg.Storage.DataDir), nil
	}
}

func newStrategies() *strategy.Registry {
	reg := strategy.NewRegistry()
	reg.Register("buyhold", func(map[string]string) (strategy.Strategy, error) {
		return builtins.NewBuyHold(), nil
	})
	reg.Register("sma-cross", builtins.NewSMACrossFromParams)
	return reg
}
