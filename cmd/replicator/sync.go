package main

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gocloud.dev/docstore"

	// Blank-imported for their gocloud.dev URL scheme registration, the
	// way the teacher's filestate backend picks a blob driver by URL
	// scheme (fileblob:// vs s3blob:// vs memblob://) rather than
	// branching on a transport enum by hand.
	_ "gocloud.dev/docstore/memdocstore"

	"github.com/catalogsync/replicator/internal/catalog"
	"github.com/catalogsync/replicator/internal/config"
	"github.com/catalogsync/replicator/internal/node"
	"github.com/catalogsync/replicator/internal/node/grpcadapter"
	"github.com/catalogsync/replicator/internal/node/httpadapter"
	"github.com/catalogsync/replicator/internal/observer/logobserver"
	"github.com/catalogsync/replicator/internal/store/docindex"
	"github.com/catalogsync/replicator/internal/store/docledger"
	"github.com/catalogsync/replicator/internal/syncer"
)

func newSyncCommand() *cobra.Command {
	var cfg config.RunConfig
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run a single replication pass for one filter",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Validate(); err != nil {
				return errors.Wrap(err, "invalid configuration")
			}

			ctx := cmd.Context()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			return runSync(ctx, cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&cfg.FilterID, "filter-id", "", "filter identity")
	flags.StringVar(&cfg.FilterName, "filter-name", "", "human-readable filter name")
	flags.StringVar(&cfg.FilterQuery, "filter-query", "", "source-understood query expression")

	flags.StringVar(&cfg.Source.SystemName, "source-name", "", "source system name")
	flags.StringVar(&cfg.Source.Transport, "source-transport", "http", "source transport (http or grpc)")
	flags.StringVar(&cfg.Source.Endpoint, "source-endpoint", "", "source base URL or gRPC target")
	flags.IntVar(&cfg.Source.MaxRetries, "source-max-retries", 3, "source transport retry budget")

	flags.StringVar(&cfg.Destination.SystemName, "destination-name", "", "destination system name")
	flags.StringVar(&cfg.Destination.Transport, "destination-transport", "http", "destination transport (http or grpc)")
	flags.StringVar(&cfg.Destination.Endpoint, "destination-endpoint", "", "destination base URL or gRPC target")
	flags.IntVar(&cfg.Destination.MaxRetries, "destination-max-retries", 3, "destination transport retry budget")

	flags.StringVar(&cfg.Stores.LedgerURL, "ledger-url", "mem://replication-items/id", "docstore URL for the ledger collection")
	flags.StringVar(&cfg.Stores.FilterIndexURL, "filter-index-url", "mem://filter-index/id", "docstore URL for the filter index collection")

	flags.DurationVar(&timeout, "timeout", 0, "abort the run after this long (0 disables)")

	return cmd
}

func runSync(ctx context.Context, cfg config.RunConfig) error {
	filter := &catalog.Filter{ID: cfg.FilterID, Name: cfg.FilterName, Query: cfg.FilterQuery}

	source, err := dialAdapter(cfg.Source)
	if err != nil {
		return errors.Wrap(err, "dialing source")
	}
	destination, err := dialAdapter(cfg.Destination)
	if err != nil {
		return errors.Wrap(err, "dialing destination")
	}

	ledgerColl, err := docstore.OpenCollection(ctx, cfg.Stores.LedgerURL)
	if err != nil {
		return errors.Wrap(err, "opening ledger collection")
	}
	defer ledgerColl.Close()

	filterIndexColl, err := docstore.OpenCollection(ctx, cfg.Stores.FilterIndexURL)
	if err != nil {
		return errors.Wrap(err, "opening filter index collection")
	}
	defer filterIndexColl.Close()

	log := logrus.WithField("filter_id", filter.ID)
	job := syncer.New(
		source,
		destination,
		filter,
		docledger.New(ledgerColl),
		docindex.New(filterIndexColl),
		logobserver.New(log),
	)

	if err := job.Sync(ctx); err != nil {
		return errors.Wrap(err, "sync failed")
	}

	log.WithFields(logrus.Fields{
		"observed":   job.Stats.Observed,
		"created":    job.Stats.Created,
		"updated":    job.Stats.Updated,
		"deleted":    job.Stats.Deleted,
		"succeeded":  job.Stats.Succeeded,
		"failed":     job.Stats.Failed,
		"conn_lost":  job.Stats.ConnectionLost,
	}).Info("replication pass complete")
	return nil
}

func dialAdapter(cfg config.NodeConfig) (node.Adapter, error) {
	log := logrus.WithField("system", cfg.SystemName)
	switch cfg.Transport {
	case "http":
		return httpadapter.New(httpadapter.Config{
			SystemName: cfg.SystemName,
			BaseURL:    cfg.Endpoint,
			MaxRetries: cfg.MaxRetries,
			Log:        log,
		}), nil
	case "grpc":
		return grpcadapter.Dial(grpcadapter.Config{
			SystemName: cfg.SystemName,
			Target:     cfg.Endpoint,
			MaxRetries: uint(cfg.MaxRetries),
			Log:        log,
		})
	default:
		return nil, errors.Errorf("unsupported transport %q", cfg.Transport)
	}
}
