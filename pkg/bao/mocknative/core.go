package mocknative

import (
	"strings"

	"gopkg.in/yaml.v3"
)

var coreEntries = map[string]entry{
	"bao_setLogLevel":       {"s", setLogLevel},
	"bao_core_setHttpLog":   {"s", setHttpLog},
	"bao_core_getRecentLog": {"i", getRecentLog},
	"bao_test":              {"", func(*Native, argv) reply { return none() }},
	"bao_snapshot":          {"", snapshot},
	"bao_echo":              {"d", func(_ *Native, a argv) reply { return rawBytes(a.d(0)) }},
}

var logLevels = []string{"trace", "debug", "info", "warn", "warning", "error", "fatal", "panic"}

func setLogLevel(n *Native, a argv) reply {
	level := strings.ToLower(a.s(0))
	for _, l := range logLevels {
		if l == level {
			n.logLevel = level
			return none()
		}
	}
	return fail(errorf(ConfigError, nil, "invalid log level %q", a.s(0)))
}

func setHttpLog(n *Native, a argv) reply {
	n.httpLog = a.s(0)
	return none()
}

func getRecentLog(n *Native, a argv) reply {
	count := a.i(0)
	if count < 0 {
		return fail(errorf(GenericError, nil, "negative count %d", count))
	}
	lines := n.recent
	if count < len(lines) {
		lines = lines[len(lines)-count:]
	}
	return value(append([]string{}, lines...))
}

type snapshotDoc struct {
	LogLevel    string         `yaml:"logLevel"`
	HTTPLog     string         `yaml:"httpLog,omitempty"`
	Allocations int            `yaml:"allocations"`
	Handles     map[string]int `yaml:"handles"`
	Calls       map[string]int `yaml:"calls"`
	Vaults      []string       `yaml:"vaults,omitempty"`
}

func snapshot(n *Native, _ argv) reply {
	doc := snapshotDoc{
		LogLevel:    n.logLevel,
		HTTPLog:     n.httpLog,
		Allocations: len(n.allocs),
		Handles:     map[string]int{},
		Calls:       map[string]int{},
	}
	for _, s := range n.handles {
		doc.Handles[s.kind]++
	}
	for k, v := range n.calls {
		doc.Calls[k] = v
	}
	for k := range n.vaults {
		doc.Vaults = append(doc.Vaults, k)
	}
	out, err := yaml.Marshal(doc)
	if err != nil {
		return fail(errorf(EncodeError, err, "cannot encode snapshot"))
	}
	return value(string(out))
}
