// Command harvest runs a single harvest and prints the result as JSON.
//
//	harvest --brand Peugeot --model 208 --year 2024 --db-path ./carfast.db
//
// Server options such as --db-path, --sources-file or --rate-limit-calls are
// accepted as well. Interrupting the command stops the harvest and prints
// what was collected so far.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jessevdk/go-flags"

	"github.com/BRA7534/CARFAST/app/cfg"
	"github.com/BRA7534/CARFAST/app/harvest"
	"github.com/BRA7534/CARFAST/app/service"
)

type options struct {
	Brand   string `long:"brand" description:"Vehicle brand, e.g. Peugeot" required:"true"`
	Model   string `long:"model" description:"Vehicle model, e.g. 208" required:"true"`
	Year    int    `long:"year" description:"Model year attached to the collected reviews" required:"true"`
	ModelID int64  `long:"model-id" description:"Catalog id of the model (looked up by brand and model when omitted)"`
}

func main() {
	os.Exit(run())
}

func run() int {
	var opts options

	parser := flags.NewParser(&opts, flags.Default|flags.IgnoreUnknown)
	rest, err := parser.Parse()
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			return 0
		}
		return 2
	}

	appConfig, err := cfg.Parse(rest)
	if err != nil {
		return 2
	}
	if appConfig == nil {
		return 0
	}

	level := slog.LevelInfo
	if appConfig.Debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := service.Open(ctx, appConfig)
	if err != nil {
		slog.Error("Failed to start", "error", err)
		return 1
	}
	defer svc.Close()

	result, err := svc.Harvester.Harvest(ctx, harvest.Request{
		Brand:   opts.Brand,
		Model:   opts.Model,
		Year:    opts.Year,
		ModelID: opts.ModelID,
	})
	if err != nil {
		slog.Error("Harvest failed", "error", err)
		return exitCode(err)
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(result); err != nil {
		fmt.Fprintf(os.Stderr, "failed to write result: %v\n", err)
		return 1
	}

	if result.Cancelled {
		return 130
	}
	return 0
}

func exitCode(err error) int {
	switch {
	case errors.Is(err, harvest.ErrInvalidArgument):
		return 2
	case errors.Is(err, harvest.ErrUnauthorized):
		return 3
	case errors.Is(err, harvest.ErrReferentialIntegrity):
		return 4
	default:
		return 1
	}
}
