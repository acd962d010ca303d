package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/goliatone/go-reveal/adapters/gologger"
	"github.com/goliatone/go-reveal/client"
	"github.com/goliatone/go-reveal/core"
	"github.com/goliatone/go-reveal/display"
)

type options struct {
	gateway      string
	instrumentID string
	recordID     string
	recordAlias  string
	aliases      string
	timeout      time.Duration
	logLevel     string
}

func main() {
	opts := options{}
	flag.StringVar(&opts.gateway, "gateway", "http://localhost:8080", "reveal gateway base URL")
	flag.StringVar(&opts.instrumentID, "instrument-id", "", "instrument identifier")
	flag.StringVar(&opts.recordID, "record-id", "", "vault record identifier")
	flag.StringVar(&opts.recordAlias, "record-alias", "", "vault record alias")
	flag.StringVar(&opts.aliases, "aliases", "", "comma separated alias list")
	flag.DurationVar(&opts.timeout, "timeout", 30*time.Second, "gateway request timeout")
	flag.StringVar(&opts.logLevel, "log-level", "warn", "trace, debug, info, warn or error")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, opts, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "revealctl: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options, stdout io.Writer, stderr io.Writer) error {
	logger := gologger.NewSlogLogger(gologger.NewJSONHandler(stderr, gologger.ParseLevel(opts.logLevel)))

	gatewayClient, err := client.NewHTTPGatewayClient(opts.gateway,
		client.WithLogger(logger),
		client.WithTimeout(opts.timeout),
	)
	if err != nil {
		return err
	}

	controller, err := display.NewController(gatewayClient, display.NewConsoleLibrary(stdout),
		display.WithLogger(logger),
		display.WithStateListener(func(from, to display.State) {
			fmt.Fprintf(stdout, "state %s -> %s\n", from, to)
		}),
	)
	if err != nil {
		return err
	}
	defer controller.Dispose()

	set := core.IdentifierSet{
		InstrumentID: opts.instrumentID,
		RecordID:     opts.recordID,
		RecordAlias:  opts.recordAlias,
		Aliases:      core.SplitAliases(opts.aliases),
	}
	return controller.Initialize(ctx, set)
}
