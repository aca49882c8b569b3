// Package storage defines what the pollers hand classified metrics to.
package storage

import (
	"errors"

	"github.com/and161185/elasticsearch-exporter/model"
)

// ErrSkipped is returned by a sink for samples it deliberately drops
// (skipped metric keys, null values). Callers may ignore it.
var ErrSkipped = errors.New("sample skipped")

// Sink consumes classified samples of one subsystem.
// Collect stages a sample of the running cycle; Commit publishes the cycle.
type Sink interface {
	Collect(s model.Sample) error
	Commit()
}
