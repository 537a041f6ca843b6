package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/haivivi/imfs/cmd/imfs/internal/config"
	"github.com/haivivi/imfs/pkg/imfs"
	"github.com/haivivi/imfs/pkg/index"
	"github.com/haivivi/imfs/pkg/kv"
	"github.com/haivivi/imfs/pkg/vpath"
)

// backend is an opened context: one kv.Store plus the registry on top.
type backend struct {
	context  string
	registry *imfs.Registry
	store    kv.Store
}

// openBackend builds the registry described by the selected context. With
// no context configured everything lives in memory.
func openBackend() (*backend, error) {
	cfg, err := GetConfig()
	if err != nil {
		return nil, err
	}
	name, dir, err := cfg.ResolveContext(contextName)
	if err != nil {
		return nil, err
	}
	sc := &config.StoreConfig{}
	if dir != "" {
		if sc, err = config.LoadStore(dir); err != nil {
			return nil, err
		}
	} else {
		slog.Debug("no context configured, using an in-memory store")
	}
	if err := sc.Validate(); err != nil {
		return nil, fmt.Errorf("context %q: %w", name, err)
	}
	codec, err := sc.Codec()
	if err != nil {
		return nil, err
	}

	var store kv.Store
	if sc.DataDir != "" {
		store, err = kv.NewBadger(kv.BadgerOptions{Options: index.KeyOptions, Dir: sc.DataDir})
		if err != nil {
			return nil, err
		}
	} else {
		store = kv.NewMemory(index.KeyOptions)
	}

	var blobs imfs.BlobFactory
	switch sc.Blobs {
	case config.BlobsLocal:
		blobs = imfs.LocalBlobs(sc.BlobDir, codec)
	case config.BlobsS3:
		blobs = imfs.S3Blobs(newS3Client(sc.S3), sc.S3.Bucket, sc.S3.Prefix, codec)
	default:
		blobs = imfs.KVBlobs(store, codec)
	}

	slog.Debug("backend opened", "context", name, "data_dir", sc.DataDir, "blobs", sc.Blobs, "compression", codec.Compression)
	return &backend{
		context: name,
		store:   store,
		registry: imfs.NewRegistry(imfs.RegistryOptions{
			Backend: imfs.KVBackend(store, blobs),
			Seed:    sc.Seed,
		}),
	}, nil
}

func (b *backend) Close() error {
	b.registry.Close()
	return b.store.Close()
}

// session opens the store selected with -s.
func (b *backend) session(ctx context.Context) (*imfs.Session, error) {
	return b.registry.Open(ctx, storeID)
}

// withSession runs fn against the selected store and closes the backend
// afterwards.
func withSession(ctx context.Context, fn func(*imfs.Session) error) error {
	b, err := openBackend()
	if err != nil {
		return err
	}
	defer b.Close()
	s, err := b.session(ctx)
	if err != nil {
		return err
	}
	return fn(s)
}

// resolvePath turns a command line path into a materialized path. imfs://
// URIs must name the session's store.
func resolvePath(s *imfs.Session, arg string) (string, error) {
	if strings.HasPrefix(arg, vpath.Scheme+"://") {
		store, p, err := vpath.ParseURI(arg)
		if err != nil {
			return "", err
		}
		if store != s.ID() {
			return "", fmt.Errorf("%s names store %q, but the current store is %q (use -s)", arg, store, s.ID())
		}
		return p, nil
	}
	return vpath.Clean(arg), nil
}

// newS3Client builds a client from the context's S3 settings. Credentials
// are read from the environment on each request.
func newS3Client(c config.S3Config) *s3.Client {
	opts := s3.Options{
		Region: c.Region,
		Credentials: aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
			return aws.Credentials{
				AccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
				SecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
				SessionToken:    os.Getenv("AWS_SESSION_TOKEN"),
				Source:          "environment",
			}, nil
		}),
	}
	if c.Endpoint != "" {
		opts.BaseEndpoint = aws.String(c.Endpoint)
		opts.UsePathStyle = true
	}
	if opts.Region == "" {
		opts.Region = "us-east-1"
	}
	return s3.New(opts)
}
