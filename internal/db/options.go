package db

import (
	tmdb "github.com/cosmos/cosmos-db"
)

const (
	// Sub-databases opened under the configured directory.
	idbName = "index"
	bdbName = "blocks"
	cdbName = "coins"

	// DefaultBackend is used when the configuration leaves db_type empty.
	DefaultBackend = tmdb.GoLevelDBBackend

	// maxScriptSize bounds script reads from stored records.
	maxScriptSize = 1 << 20

	// maxNameSize bounds name and value reads from stored records.
	maxNameSize = 1 << 16
)

type options struct {
	pruneDepth int32
	backend    tmdb.BackendType
}

// Option configures a DB.
type Option func(*options)

// WithPruneDepth keeps raw block and undo data only for the last depth blocks.
// Zero disables pruning.
func WithPruneDepth(depth int32) Option {
	return func(o *options) {
		o.pruneDepth = depth
	}
}

// WithBackend overrides the backend named in the configuration.
func WithBackend(backend tmdb.BackendType) Option {
	return func(o *options) {
		o.backend = backend
	}
}

func defaultOptions(dbType string) *options {
	o := &options{backend: DefaultBackend}
	if dbType != "" {
		o.backend = tmdb.BackendType(dbType)
	}
	return o
}
