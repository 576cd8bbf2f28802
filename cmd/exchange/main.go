// Command exchange runs the SPX simulated securities exchange: it loads
// the product universe, launches one trader process per argument, and
// matches their orders until every trader has disconnected.
//
// Usage:
//
//	exchange <product file> <trader binary> [<trader binary> ...]
package main

import (
	"fmt"
	"log"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"spx/params"
	"spx/pkg/api"
	"spx/pkg/engine"
	"spx/pkg/product"
	"spx/pkg/storage"
	"spx/pkg/transport"
	"spx/pkg/util"
)

func main() {
	if len(os.Args) < 3 {
		fmt.Fprintf(os.Stderr, "usage: %s <product file> <trader binary> [...]\n", os.Args[0])
		os.Exit(1)
	}

	cfg := params.LoadFromEnv("")

	level := zapcore.InfoLevel
	if cfg.Debug {
		level = zapcore.DebugLevel
	}
	var logger *zap.Logger
	var err error
	if cfg.LogFile != "" {
		logger, err = util.NewLoggerWithFile(cfg.LogFile, level)
	} else {
		logger, err = util.NewLogger(level)
	}
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()
	sugar.Infow("starting")

	products, err := product.Load(os.Args[1])
	if err != nil {
		sugar.Fatalw("load_products_failed", "err", err)
	}
	sugar.Infow("trading", "count", products.Count(), "products", products.Names())

	var journal *storage.Journal
	if cfg.JournalPath != "" {
		journal, err = storage.Open(cfg.JournalPath)
		if err != nil {
			sugar.Fatalw("open_journal_failed", "err", err)
		}
		defer journal.Close()
		sugar.Infow("journal_open", "path", cfg.JournalPath)
	}

	engCfg := engine.Config{
		Products:  products,
		Logger:    sugar,
		SendQueue: cfg.SendQueue,
	}
	if journal != nil {
		engCfg.Journal = journal
	}

	eng, err := engine.New(engCfg)
	if err != nil {
		sugar.Fatalw("engine_init_failed", "err", err)
	}

	if cfg.APIAddr != "" {
		server := api.NewServer(eng, journal, sugar)
		eng.SetFeed(server.Hub())
		go func() {
			if err := server.Start(cfg.APIAddr); err != nil {
				sugar.Errorw("api_server_failed", "err", err)
			}
		}()
	}

	procs := make([]*transport.Process, 0, len(os.Args)-2)
	for i, bin := range os.Args[2:] {
		proc, err := transport.Launch(i, bin, sugar)
		if err != nil {
			sugar.Fatalw("launch_trader_failed", "trader", i, "err", err)
		}
		procs = append(procs, proc)

		t := eng.AddTrader(proc.In, proc.Out, proc.Kill)
		go func(p *transport.Process, id int) {
			_ = p.Wait()
			eng.NotifyExit(id)
		}(proc, t.ID)
	}

	fees := eng.Run()

	for _, p := range procs {
		p.Cleanup()
	}
	sugar.Infow("trading_complete", "fees_collected", fees)
}
