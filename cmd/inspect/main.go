// Command inspect fetches one Sui transaction block and prints its status
// and the records the ingester would store for its events.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/chainsafe/ledger-ingest/pkg/app/errors"
	"github.com/chainsafe/ledger-ingest/pkg/config"
	"github.com/chainsafe/ledger-ingest/pkg/ingest"
	"github.com/chainsafe/ledger-ingest/pkg/sui"
)

var (
	configPath = flag.String("config", "", "Optional configuration file, used for logging settings")
	network    = flag.String("network", "mainnet", "Sui network (mainnet, testnet, devnet)")
	rpcURL     = flag.String("rpc-url", "", "Fullnode RPC URL (overrides -network)")
	digest     = flag.String("digest", "", "Transaction digest to inspect")
	timeout    = flag.Duration("timeout", 30*time.Second, "Request timeout")
)

func main() {
	flag.Parse()

	if *digest == "" {
		fmt.Fprintln(os.Stderr, "-digest is required")
		flag.Usage()
		os.Exit(2)
	}

	logger, err := newLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(logger); err != nil {
		if apperrors.Is(err, apperrors.KindNotFound) {
			fmt.Fprintln(os.Stderr, notFoundHint(*digest, *network, *rpcURL))
		}
		logger.Error("Inspect failed", zap.Error(err))
		os.Exit(1)
	}
}

func newLogger() (*zap.Logger, error) {
	if *configPath == "" {
		return config.NewLogger(config.LoggingConfig{Level: "info", Format: "console", OutputPath: "stderr"})
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		return nil, err
	}
	return config.NewLogger(cfg.Logging)
}

func run(logger *zap.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	url := *rpcURL
	if url == "" {
		url = sui.FullnodeURL(*network)
	}
	client, err := sui.Dial(ctx, url, sui.WithLogger(logger))
	if err != nil {
		return err
	}
	defer client.Close()

	tx, err := client.GetTransactionBlock(ctx, *digest)
	if err != nil {
		return err
	}

	status := "unknown"
	if tx.Effects != nil {
		status = tx.Effects.Status.Status
	}
	logger.Info("Transaction block",
		zap.String("digest", tx.Digest),
		zap.String("status", status),
		zap.Bool("succeeded", tx.Succeeded()),
		zap.Int("events", len(tx.Events)))

	out := json.NewEncoder(os.Stdout)
	out.SetIndent("", "  ")
	if len(tx.Events) == 0 {
		if tx.Succeeded() {
			logger.Info("No events were emitted by this transaction")
		} else if tx.Effects != nil && tx.Effects.Status.Error != "" {
			logger.Warn("Transaction failed, no events were emitted", zap.String("error", tx.Effects.Status.Error))
		}
	}
	for i, raw := range tx.Events {
		rec, err := sui.Extract(raw)
		if err != nil {
			logger.Warn("Event not extractable", zap.Int("index", i), zap.Error(err))
			continue
		}
		if err := out.Encode(newRecordView(rec)); err != nil {
			return fmt.Errorf("encode record: %w", err)
		}
	}
	return nil
}

// recordView is the printed form of a record
type recordView struct {
	Kind      ingest.RecordKind `json:"kind"`
	ID        string            `json:"id"`
	Sender    *string           `json:"sender"`
	Amount    *string           `json:"amount"`
	EventType *string           `json:"event_type"`
	Raw       json.RawMessage   `json:"raw"`
}

func newRecordView(rec *ingest.Record) recordView {
	return recordView{
		Kind:      rec.Kind,
		ID:        rec.ID,
		Sender:    rec.Sender,
		Amount:    rec.Amount,
		EventType: rec.EventType,
		Raw:       rec.Raw,
	}
}

func notFoundHint(digest, network, rpcURL string) string {
	where := network + " network"
	if rpcURL != "" {
		where = rpcURL
	}
	return fmt.Sprintf("Transaction digest %q not found on %s.\n"+
		"Check that the digest is correct, that %s is the right network, and that the transaction is finalized.",
		digest, where, where)
}
