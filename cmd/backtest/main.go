// Command backtest replays persisted signals over stored price history
// and reports how each allocation mode would have performed.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/alphamachine/engine/internal/backtest"
	"github.com/alphamachine/engine/internal/config"
	"github.com/alphamachine/engine/internal/store"
)

func main() {
	command := flag.String("command", "run", "Command to run: run or compare")
	configPath := flag.String("config", "", "Config directory (defaults to ./ and ./config)")
	start := flag.String("start", "", "Window start, YYYY-MM-DD")
	end := flag.String("end", "", "Window end, YYYY-MM-DD")
	mode := flag.String("mode", backtest.ModeBalanced, "Allocation mode: CORE_FOCUS, BALANCED or DIVERSIFIED")
	capital := flag.Float64("capital", 0, "Starting capital (defaults from config)")
	holdDays := flag.Int("hold", 0, "Hold period in trading days (defaults from config)")
	tickers := flag.String("tickers", "", "Comma-separated tickers to restrict the run to")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	config.InitLogger(cfg.App.LogLevel, cfg.App.LogFormat)

	req, err := buildRequest(*start, *end, *mode, *capital, *holdDays, *tickers)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	st, err := store.New(ctx, cfg.Database.GetDSN(), config.NewLogger("store"))
	if err != nil {
		log.Error().Err(err).Msg("Store connection failed")
		os.Exit(1)
	}
	defer st.Close()

	engine := backtest.NewEngine(st, st, cfg.Deadlines.Backtest,
		cfg.Backtest.StartingCapital, cfg.Backtest.HoldPeriodDays,
		config.NewLogger("backtest"))

	switch *command {
	case "run":
		report, err := engine.Run(ctx, req)
		exitOn(err)
		printJSON(report)
	case "compare":
		reports, err := engine.CompareModes(ctx, req)
		exitOn(err)
		printJSON(reports)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", *command)
		fmt.Fprintf(os.Stderr, "Usage: backtest -command=[run|compare] -start=YYYY-MM-DD -end=YYYY-MM-DD\n")
		os.Exit(1)
	}
}

func buildRequest(start, end, mode string, capital float64, holdDays int, tickers string) (backtest.Request, error) {
	var req backtest.Request
	var err error
	if req.Start, err = parseDate(start, "start"); err != nil {
		return req, err
	}
	if req.End, err = parseDate(end, "end"); err != nil {
		return req, err
	}
	req.Mode = mode
	req.StartingCapital = capital
	req.HoldPeriodDays = holdDays
	if tickers != "" {
		for _, t := range strings.Split(tickers, ",") {
			req.Tickers = append(req.Tickers, strings.ToUpper(strings.TrimSpace(t)))
		}
	}
	return req, nil
}

func parseDate(value, name string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("missing required flag -%s (YYYY-MM-DD)", name)
	}
	d, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid -%s date %q: expected YYYY-MM-DD", name, value)
	}
	return d, nil
}

func printJSON(v interface{}) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to encode output: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(out))
}

func exitOn(err error) {
	if err != nil {
		log.Error().Err(err).Msg("Backtest failed")
		os.Exit(1)
	}
}
