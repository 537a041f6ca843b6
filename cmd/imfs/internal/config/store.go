package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/haivivi/imfs/pkg/blob"
)

// storeFile is the YAML file describing a context's backend.
const storeFile = "store.yaml"

// Blob backends accepted in StoreConfig.Blobs.
const (
	BlobsKV    = "kv"
	BlobsLocal = "local"
	BlobsS3    = "s3"
)

// StoreConfig describes where a context keeps its stores.
//
// With an empty DataDir everything lives in memory and is gone when the
// command exits, which is only useful for "imfs shell".
type StoreConfig struct {
	// DataDir is the Badger directory holding the indexes.
	DataDir string `json:"data_dir,omitempty" yaml:"data_dir,omitempty"`

	// Blobs is kv (default), local or s3.
	Blobs string `json:"blobs,omitempty" yaml:"blobs,omitempty"`

	// BlobDir is the root directory for local blobs.
	BlobDir string `json:"blob_dir,omitempty" yaml:"blob_dir,omitempty"`

	S3 S3Config `json:"s3,omitempty" yaml:"s3,omitempty"`

	// Compression is none, lz4 or zstd.
	Compression string `json:"compression,omitempty" yaml:"compression,omitempty"`

	// Seed lists directories every new store starts with.
	Seed []string `json:"seed,omitempty" yaml:"seed,omitempty"`
}

// S3Config locates the bucket for s3 blobs. Credentials come from the
// AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY and AWS_SESSION_TOKEN variables.
type S3Config struct {
	Bucket   string `json:"bucket,omitempty" yaml:"bucket,omitempty"`
	Prefix   string `json:"prefix,omitempty" yaml:"prefix,omitempty"`
	Region   string `json:"region,omitempty" yaml:"region,omitempty"`
	Endpoint string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
}

// Validate checks that the configuration names a usable backend.
func (sc *StoreConfig) Validate() error {
	switch sc.Blobs {
	case "", BlobsKV:
	case BlobsLocal:
		if sc.BlobDir == "" {
			return fmt.Errorf("blobs %q requires blob_dir", sc.Blobs)
		}
	case BlobsS3:
		if sc.S3.Bucket == "" {
			return fmt.Errorf("blobs %q requires s3.bucket", sc.Blobs)
		}
	default:
		return fmt.Errorf("unknown blobs backend %q (want kv, local or s3)", sc.Blobs)
	}
	if _, err := blob.ParseCompression(sc.Compression); err != nil {
		return err
	}
	return nil
}

// Codec returns the blob codec for the configured compression.
func (sc *StoreConfig) Codec() (blob.Codec, error) {
	c, err := blob.ParseCompression(sc.Compression)
	if err != nil {
		return blob.Codec{}, err
	}
	return blob.Codec{Compression: c}, nil
}

// Keys returns the names accepted by Get and Set.
func Keys() []string {
	keys := make([]string, 0, len(stringFields)+1)
	for k := range stringFields {
		keys = append(keys, k)
	}
	keys = append(keys, "seed")
	slices.Sort(keys)
	return keys
}

var stringFields = map[string]func(*StoreConfig) *string{
	"data_dir":    func(sc *StoreConfig) *string { return &sc.DataDir },
	"blobs":       func(sc *StoreConfig) *string { return &sc.Blobs },
	"blob_dir":    func(sc *StoreConfig) *string { return &sc.BlobDir },
	"compression": func(sc *StoreConfig) *string { return &sc.Compression },
	"s3.bucket":   func(sc *StoreConfig) *string { return &sc.S3.Bucket },
	"s3.prefix":   func(sc *StoreConfig) *string { return &sc.S3.Prefix },
	"s3.region":   func(sc *StoreConfig) *string { return &sc.S3.Region },
	"s3.endpoint": func(sc *StoreConfig) *string { return &sc.S3.Endpoint },
}

// Get returns the value of key. Seed directories are joined with commas.
func (sc *StoreConfig) Get(key string) (string, error) {
	if key == "seed" {
		return strings.Join(sc.Seed, ","), nil
	}
	f, ok := stringFields[key]
	if !ok {
		return "", fmt.Errorf("unknown key %q", key)
	}
	return *f(sc), nil
}

// Set assigns key. For "seed" the value is a comma-separated list.
func (sc *StoreConfig) Set(key, value string) error {
	if key == "seed" {
		sc.Seed = nil
		for _, d := range strings.Split(value, ",") {
			if d = strings.TrimSpace(d); d != "" {
				sc.Seed = append(sc.Seed, d)
			}
		}
		return nil
	}
	f, ok := stringFields[key]
	if !ok {
		return fmt.Errorf("unknown key %q", key)
	}
	*f(sc) = value
	return nil
}

// LoadStore reads the store configuration from a context directory. A
// missing file yields the zero configuration.
func LoadStore(contextDir string) (*StoreConfig, error) {
	path := filepath.Join(contextDir, storeFile)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &StoreConfig{}, nil
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var sc StoreConfig
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &sc, nil
}

// SaveStore writes the store configuration to a context directory.
func SaveStore(contextDir string, sc *StoreConfig) error {
	if err := os.MkdirAll(contextDir, 0755); err != nil {
		return fmt.Errorf("create context dir: %w", err)
	}

	path := filepath.Join(contextDir, storeFile)
	data, err := yaml.Marshal(sc)
	if err != nil {
		return fmt.Errorf("marshal store config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
