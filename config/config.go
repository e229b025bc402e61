// Package config defines the surrounding collaborator's options (spec §6):
// build-vs-resume, input source, parallelism, shard count and storage
// backend selection, and the per-shard filename/host suffixing rules
// ported from original_source/dp-oram/src/main.cpp's `filename` and
// `redishost` helpers. YAML loading follows the pack's idiom of
// gopkg.in/yaml.v3 over a plain struct.
package config

import (
	"fmt"
	"os"

	"github.com/dp-oram/dp-oram/dplog"
	"gopkg.in/yaml.v3"
)

// Backend selects an ORAM storage implementation.
type Backend string

const (
	InMemory   Backend = "InMemory"
	FileSystem Backend = "FileSystem"
	Redis      Backend = "Redis"
	Aerospike  Backend = "Aerospike"
)

// Options holds every option the spec's external-interface section names.
type Options struct {
	GenerateIndices bool           `yaml:"generateIndices"`
	ReadInputs      bool           `yaml:"readInputs"`
	Parallel        bool           `yaml:"parallel"`
	OramStorage     Backend        `yaml:"oramStorage"`
	OramsNumber     uint64         `yaml:"oramsNumber"`
	UseOrams        bool           `yaml:"useOrams"`
	Verbosity       dplog.Level    `yaml:"verbosity"`
	RedisHost       string         `yaml:"redisHost"`
	AerospikeHost   string         `yaml:"aerospikeHost"`
	FilesDir        string         `yaml:"filesDir"`
}

// Validate checks the option combinations spec §6/§5 constrain, and
// downgrades Parallel to false with a logged warning when it is
// incompatible with the chosen backend (spec §5: "the FileSystem backend
// is not safe under parallel shards").
func (o *Options) Validate() error {
	if o.OramsNumber == 0 || o.OramsNumber > 96 {
		return fmt.Errorf("config: oramsNumber must be in [1, 96], got %d", o.OramsNumber)
	}
	switch o.OramStorage {
	case InMemory, FileSystem, Redis, Aerospike:
	default:
		return fmt.Errorf("config: unknown oramStorage %q", o.OramStorage)
	}
	if o.Parallel && o.OramStorage == FileSystem {
		dplog.Warn("parallel downgraded to false: FileSystem backend is not safe under parallel shards")
		o.Parallel = false
	}
	if o.FilesDir == "" {
		o.FilesDir = "."
	}
	return nil
}

// Load reads and validates Options from a YAML file at path.
func Load(path string) (Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Options{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	var o Options
	if err := yaml.Unmarshal(data, &o); err != nil {
		return Options{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := o.Validate(); err != nil {
		return Options{}, err
	}
	return o, nil
}

// Filename returns the per-shard path for a persisted-state file, mirroring
// original_source/dp-oram/src/main.cpp's `filename` helper: shard -1 means
// the single global file (e.g. the B+-tree), any other value appends
// "-<shard>" before the .bin extension.
func (o Options) Filename(base string, shard int) string {
	if shard > -1 {
		return fmt.Sprintf("%s/%s-%d.bin", o.FilesDir, base, shard)
	}
	return fmt.Sprintf("%s/%s.bin", o.FilesDir, base)
}

// RedisHost returns the per-shard Redis address, mirroring
// original_source/dp-oram/src/main.cpp's `redishost` helper: shard -1
// addresses the host directly, any other value appends "/<shard>" so each
// shard gets its own key prefix namespace.
func RedisHost(host string, shard int) string {
	if shard > -1 {
		return fmt.Sprintf("%s/%d", host, shard)
	}
	return host
}
