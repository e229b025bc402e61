package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		wantErr bool
	}{
		{"valid", Options{OramsNumber: 4, OramStorage: InMemory}, false},
		{"zero shards", Options{OramsNumber: 0, OramStorage: InMemory}, true},
		{"too many shards", Options{OramsNumber: 97, OramStorage: InMemory}, true},
		{"unknown backend", Options{OramsNumber: 1, OramStorage: "Carrier Pigeon"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := tt.opts
			err := opts.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateDowngradesParallelOnFileSystem(t *testing.T) {
	opts := Options{OramsNumber: 2, OramStorage: FileSystem, Parallel: true}
	if err := opts.Validate(); err != nil {
		t.Fatalf("Validate() err = %v", err)
	}
	if opts.Parallel {
		t.Fatalf("Validate() left Parallel=true with FileSystem backend")
	}
}

func TestFilenamePerShardVsGlobal(t *testing.T) {
	opts := Options{FilesDir: "/data"}
	if got, want := opts.Filename("oram-storage", 2), "/data/oram-storage-2.bin"; got != want {
		t.Fatalf("Filename(shard=2) = %q, want %q", got, want)
	}
	if got, want := opts.Filename("tree", -1), "/data/tree.bin"; got != want {
		t.Fatalf("Filename(shard=-1) = %q, want %q", got, want)
	}
}

func TestRedisHostPerShardVsGlobal(t *testing.T) {
	if got, want := RedisHost("localhost:6379", 3), "localhost:6379/3"; got != want {
		t.Fatalf("RedisHost(shard=3) = %q, want %q", got, want)
	}
	if got, want := RedisHost("localhost:6379", -1), "localhost:6379"; got != want {
		t.Fatalf("RedisHost(shard=-1) = %q, want %q", got, want)
	}
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	contents := []byte(`
generateIndices: true
readInputs: false
parallel: true
oramStorage: InMemory
oramsNumber: 4
useOrams: true
verbosity: INFO
`)
	if err := os.WriteFile(path, contents, 0o600); err != nil {
		t.Fatalf("WriteFile() err = %v", err)
	}

	opts, err := Load(path)
	if err != nil {
		t.Fatalf("Load() err = %v", err)
	}
	if opts.OramsNumber != 4 || opts.OramStorage != InMemory || !opts.UseOrams {
		t.Fatalf("Load() = %+v, unexpected values", opts)
	}
}
