package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/chainsafe/ledger-ingest/pkg/app"
	"github.com/chainsafe/ledger-ingest/pkg/app/ingester"
	"github.com/chainsafe/ledger-ingest/pkg/config"
)

var (
	configPath = flag.String("config", "config.yaml", "Path to configuration file")
	jobNames   = flag.String("job", "", "Comma separated job names to run (default: all)")
	latest     = flag.Bool("latest", false, "Fetch one page from the start without touching checkpoints")
	serve      = flag.Bool("serve", false, "Run jobs on an interval and expose the ops API")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	var runner app.Runner = ingester.NewServer(cfg, ingester.Options{
		Jobs:   splitJobs(*jobNames),
		Latest: *latest,
		Serve:  *serve,
	})
	if err := runner.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Ingester failed: %v\n", err)
		os.Exit(1)
	}
}

func splitJobs(s string) []string {
	var out []string
	for _, name := range strings.Split(s, ",") {
		if name = strings.TrimSpace(name); name != "" {
			out = append(out, name)
		}
	}
	return out
}
