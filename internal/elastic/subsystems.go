// Package elastic knows the Elasticsearch endpoints polled by the exporter
// and turns their responses into raw metrics.
package elastic

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/and161185/elasticsearch-exporter/internal/poller"
	"github.com/and161185/elasticsearch-exporter/model"
)

// ErrUnknownSubsystem is returned by NewFetcher for names not in the registry.
var ErrUnknownSubsystem = errors.New("unknown subsystem")

// Getter reads one JSON document. *client.Client implements it.
type Getter interface {
	GetJSON(ctx context.Context, path string, out any) error
}

// catQuery asks the _cat API for JSON with raw byte and millisecond units,
// which keeps sizes and durations parseable as integers.
const catQuery = "?format=json&bytes=b&time=ms"

type fetchFunc func(ctx context.Context, g Getter, path string) ([]model.RawMetric, error)

// Subsystem is one polled endpoint.
type Subsystem struct {
	Name  string
	Path  string
	fetch fetchFunc
}

var registry = map[string]Subsystem{}

func register(name, path string, f fetchFunc) {
	registry[name] = Subsystem{Name: name, Path: path, fetch: f}
}

func init() {
	for _, name := range []string{"health", "nodes", "indices", "allocation", "shards"} {
		register("cat/"+name, "/_cat/"+name+catQuery, fetchRows)
	}
	register("cluster/health", "/_cluster/health", fetchDocument)
	register("nodes/stats", "/_nodes/stats", fetchNodesStats)
	register("stats", "/_stats", fetchIndicesStats)
}

// Subsystems returns the registered subsystem names, sorted.
func Subsystems() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the subsystem registered under name.
func Lookup(name string) (Subsystem, bool) {
	s, ok := registry[name]
	return s, ok
}

// NewFetcher binds the named subsystem to g.
func NewFetcher(name string, g Getter) (poller.Fetcher, error) {
	s, ok := Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSubsystem, name)
	}
	return s.Fetcher(g), nil
}

// Fetcher binds the subsystem to g.
func (s Subsystem) Fetcher(g Getter) poller.Fetcher {
	return poller.FetcherFunc(func(ctx context.Context) ([]model.RawMetric, error) {
		return s.fetch(ctx, g, s.Path)
	})
}

// fetchRows reads a JSON array, one row per element (the _cat endpoints).
func fetchRows(ctx context.Context, g Getter, path string) ([]model.RawMetric, error) {
	var records []any
	if err := g.GetJSON(ctx, path, &records); err != nil {
		return nil, err
	}

	var res []model.RawMetric
	for i, rec := range records {
		metrics, err := Flatten(rec, i)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		res = append(res, metrics...)
	}
	return res, nil
}

// fetchDocument reads a single object as one row.
func fetchDocument(ctx context.Context, g Getter, path string) ([]model.RawMetric, error) {
	var doc map[string]any
	if err := g.GetJSON(ctx, path, &doc); err != nil {
		return nil, err
	}
	return Flatten(doc, 0)
}

// fetchNodesStats emits one row per node, labelled by node_id.
func fetchNodesStats(ctx context.Context, g Getter, path string) ([]model.RawMetric, error) {
	var doc struct {
		Nodes map[string]any `json:"nodes"`
	}
	if err := g.GetJSON(ctx, path, &doc); err != nil {
		return nil, err
	}
	return keyedRows(doc.Nodes, "node_id", 0)
}

// fetchIndicesStats emits the cluster-wide "_all" totals as row 0 and one
// row per index after it, labelled by index.
func fetchIndicesStats(ctx context.Context, g Getter, path string) ([]model.RawMetric, error) {
	var doc struct {
		All     map[string]any `json:"_all"`
		Indices map[string]any `json:"indices"`
	}
	if err := g.GetJSON(ctx, path, &doc); err != nil {
		return nil, err
	}

	var res []model.RawMetric
	if doc.All != nil {
		all, err := Flatten(doc.All, 0)
		if err != nil {
			return nil, fmt.Errorf("_all: %w", err)
		}
		res = append(res, model.RawMetric{Key: "index", Value: model.String("_all"), Row: 0})
		res = append(res, all...)
	}

	rows, err := keyedRows(doc.Indices, "index", 1)
	if err != nil {
		return nil, err
	}
	return append(res, rows...), nil
}

// keyedRows flattens a map of id -> object into rows numbered from first,
// in sorted id order, each carrying the id under idKey.
func keyedRows(items map[string]any, idKey string, first int) ([]model.RawMetric, error) {
	ids := make([]string, 0, len(items))
	for id := range items {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var res []model.RawMetric
	for i, id := range ids {
		row := first + i
		metrics, err := Flatten(items[id], row)
		if err != nil {
			return nil, fmt.Errorf("%s %s: %w", idKey, id, err)
		}
		res = append(res, model.RawMetric{Key: idKey, Value: model.String(id), Row: row})
		res = append(res, metrics...)
	}
	return res, nil
}
