package classifier

// rule is the classification applied to a key once the value-shape checks are done.
type rule uint8

const (
	ruleNone rule = iota
	ruleBytes
	ruleTime
	ruleSwitch
	ruleData
	ruleGauge
	ruleGaugeF
	ruleLabel
)

var ruleNames = [...]string{
	ruleNone:   "none",
	ruleBytes:  "bytes",
	ruleTime:   "time",
	ruleSwitch: "switch",
	ruleData:   "data",
	ruleGauge:  "gauge",
	ruleGaugeF: "gauge_f",
	ruleLabel:  "label",
}

func (r rule) String() string { return ruleNames[r] }

var (
	bytesKeys = []string{"size", "memory", "store", "bytes"}

	timeKeys = []string{"epoch", "timestamp", "date", "time", "millis", "alive"}

	// timed_out, is_write_index_committed, ...
	switchKeys = []string{"out", "value", "committed", "searchable", "compound", "throttled"}

	// data carries either a numeric node count (_cat/health) or a path (_cat/shards path.data).
	dataKeys = []string{"data"}

	gaugeKeys = []string{
		"primaries", "min", "max", "successful", "nodes", "fetch", "order",
		"largest", "rejected", "completed", "queue", "active", "core", "tasks",
		"relo", "unassign", "init", "files", "ops", "recovered", "generation",
		"contexts", "listeners", "pri", "rep", "docs", "count", "pid",
		"compilations", "deleted", "shards", "indices", "checkpoint", "avail",
		"used", "cpu", "triggered", "evictions", "failed", "total", "current",
	}

	gaugeFKeys = []string{"avg", "1m", "5m", "15m", "number", "percent"}

	labelKeys = []string{
		"cluster", "repository", "snapshot", "stage", "uuid", "component", "master",
		"role", "uptime", "alias", "filter", "search", "flavor", "string",
		"address", "health", "build", "node", "state", "patterns", "of", "segment",
		"host", "ip", "prirep", "id", "status", "at", "for", "details", "reason",
		"port", "attr", "field", "shard", "index", "name", "type", "version",
		"jdk", "description",
	}
)

// rules maps every known key to its rule. Built once; read-only afterwards.
var rules = buildRules()

func buildRules() map[string]rule {
	groups := []struct {
		r    rule
		keys []string
	}{
		{ruleBytes, bytesKeys},
		{ruleTime, timeKeys},
		{ruleSwitch, switchKeys},
		{ruleData, dataKeys},
		{ruleGauge, gaugeKeys},
		{ruleGaugeF, gaugeFKeys},
		{ruleLabel, labelKeys},
	}

	m := make(map[string]rule, 128)
	for _, g := range groups {
		for _, k := range g.keys {
			if prev, ok := m[k]; ok {
				panic("classifier: key " + k + " bound to both " + prev.String() + " and " + g.r.String())
			}
			m[k] = g.r
		}
	}
	return m
}

// Rules returns a copy of the key vocabulary as key -> rule name.
func Rules() map[string]string {
	res := make(map[string]string, len(rules))
	for k, r := range rules {
		res[k] = r.String()
	}
	return res
}
