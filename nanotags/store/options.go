package store

import "log/slog"

// Option configures a DB
type Option func(*DB)

// WithLogger sets the logger used for commit and query logs.
// Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(db *DB) {
		db.logger = logger
	}
}

// FieldOption carries the hints accepted by AddField
type FieldOption func(*fieldOptions)

type fieldOptions struct {
	index bool
	flush bool
}

func newFieldOptions(opts []FieldOption) fieldOptions {
	o := fieldOptions{flush: true}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithIndex marks the new field as indexed
func WithIndex() FieldOption {
	return func(o *fieldOptions) {
		o.index = true
	}
}

// WithoutFlush defers rebuilding the collection's field lookup table until
// it is next needed. Used when adding many fields in a row.
func WithoutFlush() FieldOption {
	return func(o *fieldOptions) {
		o.flush = false
	}
}
