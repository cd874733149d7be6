// Package config defines the shape of a single replication run's
// configuration: which filter, which two nodes, and which stores back the
// ledger and filter index. Loading this from flags/files/environment is
// the outer scheduler's job, not the core's (spec.md §1 Out of scope);
// this package only defines the validated struct, in the style of the
// teacher's workspace.Project.
package config

import "github.com/pkg/errors"

// NodeConfig describes how to reach one catalog endpoint.
type NodeConfig struct {
	SystemName string
	Transport  string // "http" or "grpc"
	Endpoint   string
	MaxRetries int
}

// Validate checks that NodeConfig is well-formed.
func (n NodeConfig) Validate() error {
	if n.SystemName == "" {
		return errors.New("systemName is required")
	}
	if n.Endpoint == "" {
		return errors.New("endpoint is required")
	}
	switch n.Transport {
	case "http", "grpc":
	default:
		return errors.Errorf("unsupported transport %q (want http or grpc)", n.Transport)
	}
	return nil
}

// StoreConfig describes how to open the docstore collections backing the
// ledger and filter index.
type StoreConfig struct {
	// LedgerURL and FilterIndexURL are gocloud.dev/docstore URLs, e.g.
	// "mem://replication-items/id" or "dynamodb://replication-items".
	LedgerURL      string
	FilterIndexURL string
}

// Validate checks that StoreConfig is well-formed.
func (s StoreConfig) Validate() error {
	if s.LedgerURL == "" {
		return errors.New("ledgerURL is required")
	}
	if s.FilterIndexURL == "" {
		return errors.New("filterIndexURL is required")
	}
	return nil
}

// RunConfig is everything one invocation of the replicator CLI needs to
// construct and run a single Syncer.Job.
type RunConfig struct {
	FilterID    string
	FilterName  string
	FilterQuery string

	Source      NodeConfig
	Destination NodeConfig
	Stores      StoreConfig
}

// Validate checks that every required field is present and well-formed.
func (c RunConfig) Validate() error {
	if c.FilterID == "" {
		return errors.New("filterId is required")
	}
	if c.FilterQuery == "" {
		return errors.New("filterQuery is required")
	}
	if err := c.Source.Validate(); err != nil {
		return errors.Wrap(err, "source")
	}
	if err := c.Destination.Validate(); err != nil {
		return errors.Wrap(err, "destination")
	}
	if err := c.Stores.Validate(); err != nil {
		return errors.Wrap(err, "stores")
	}
	return nil
}
