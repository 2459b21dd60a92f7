package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/lonnen/jansky/iox"
	"github.com/lonnen/jansky/rule"
)

// S3Config holds configuration for the S3 storage backend.
type S3Config struct {
	// Bucket is the S3 bucket name (required).
	Bucket string
	// Prefix is the key prefix within the bucket (optional).
	Prefix string
	// Region is the AWS region (optional, uses default chain if empty).
	Region string
	// Endpoint is a custom S3 endpoint URL for S3-compatible providers
	// (e.g. MinIO, Cloudflare R2). Empty uses the default AWS endpoint.
	Endpoint string
	// UsePathStyle forces path-style addressing (bucket in path, not
	// subdomain). Required by most S3-compatible providers.
	UsePathStyle bool
}

// Validate checks that required S3 configuration is present.
func (c *S3Config) Validate() error {
	if c.Bucket == "" {
		return errors.New("S3 bucket is required")
	}
	return nil
}

// s3API is the subset of the S3 client the store uses. Tests substitute
// a stub.
type s3API interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Store is a CrashStore backed by S3-compatible object storage.
//
// Key layout (shapes dictated by existing consumers):
//
//	{prefix}/v1/raw_crash/{crash_id}        raw crash JSON
//	{prefix}/v1/dump_names/{crash_id}       JSON list of dump names
//	{prefix}/v1/{dump_name}/{crash_id}      raw minidump bytes
//	{prefix}/v1/processed_crash/{crash_id}  processed crash JSON
type S3Store struct {
	client s3API
	config S3Config
	// tempDir receives downloaded dump files; empty means the system
	// temp directory.
	tempDir string
}

// NewS3Store creates an S3-backed store using the AWS SDK default
// credential chain (env vars, shared config, IAM role).
func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var opts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}

	awsConfig, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		endpoint := cfg.Endpoint
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = &endpoint
		})
	}
	if cfg.UsePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	return &S3Store{
		client: s3.NewFromConfig(awsConfig, s3Opts...),
		config: cfg,
	}, nil
}

// newS3StoreWithClient wires a preconstructed client. Test seam.
func newS3StoreWithClient(client s3API, cfg S3Config, tempDir string) *S3Store {
	return &S3Store{client: client, config: cfg, tempDir: tempDir}
}

// ParseS3Path parses a path in format "bucket/prefix" or "bucket".
func ParseS3Path(path string) (bucket, prefix string) {
	parts := strings.SplitN(path, "/", 2)
	bucket = parts[0]
	if len(parts) > 1 {
		prefix = parts[1]
	}
	return bucket, prefix
}

func (s *S3Store) key(parts ...string) string {
	key := "v1/" + strings.Join(parts, "/")
	if s.config.Prefix != "" {
		key = strings.TrimSuffix(s.config.Prefix, "/") + "/" + key
	}
	return key
}

func (s *S3Store) getObject(ctx context.Context, key string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &s.config.Bucket,
		Key:    &key,
	})
	if err != nil {
		var noSuchKey *s3types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	defer iox.DiscardClose(out.Body)
	return io.ReadAll(out.Body)
}

func (s *S3Store) putObject(ctx context.Context, key string, body []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: &s.config.Bucket,
		Key:    &key,
		Body:   bytes.NewReader(body),
	})
	return err
}

// GetRawCrash fetches and decodes the raw crash mapping.
func (s *S3Store) GetRawCrash(ctx context.Context, crashID string) (map[string]any, error) {
	body, err := s.getObject(ctx, s.key("raw_crash", crashID))
	if err != nil {
		return nil, wrapError(err, "get_raw_crash", crashID)
	}
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, wrapError(err, "get_raw_crash", crashID)
	}
	return raw, nil
}

// GetDumps downloads every named dump to a temporary file. The paths
// carry the TEMPORARY marker so crash teardown deletes them. On partial
// failure, already-written files are removed before returning.
func (s *S3Store) GetDumps(ctx context.Context, crashID string) (rule.Dumps, error) {
	body, err := s.getObject(ctx, s.key("dump_names", crashID))
	if err != nil {
		return nil, wrapError(err, "get_dumps", crashID)
	}
	var names []string
	if err := json.Unmarshal(body, &names); err != nil {
		return nil, wrapError(err, "get_dumps", crashID)
	}

	dumps := make(rule.Dumps, len(names))
	cleanup := func() {
		for _, path := range dumps {
			_, _ = iox.RemoveIfTemporary(path)
		}
	}
	for _, name := range names {
		data, err := s.getObject(ctx, s.key(name, crashID))
		if err != nil {
			cleanup()
			return nil, wrapError(err, "get_dumps", crashID)
		}
		f, err := os.CreateTemp(s.tempDir, fmt.Sprintf("%s.%s.%s.*.dmp", crashID, name, iox.TemporaryMarker))
		if err != nil {
			cleanup()
			return nil, wrapError(err, "get_dumps", crashID)
		}
		if _, err := f.Write(data); err != nil {
			_ = f.Close()
			dumps[name] = f.Name()
			cleanup()
			return nil, wrapError(err, "get_dumps", crashID)
		}
		if err := f.Close(); err != nil {
			dumps[name] = f.Name()
			cleanup()
			return nil, wrapError(err, "get_dumps", crashID)
		}
		dumps[name] = f.Name()
	}
	return dumps, nil
}

// GetProcessed fetches and decodes a previously processed crash.
func (s *S3Store) GetProcessed(ctx context.Context, crashID string) (map[string]any, error) {
	body, err := s.getObject(ctx, s.key("processed_crash", crashID))
	if err != nil {
		return nil, wrapError(err, "get_processed", crashID)
	}
	var processed map[string]any
	if err := json.Unmarshal(body, &processed); err != nil {
		return nil, wrapError(err, "get_processed", crashID)
	}
	return processed, nil
}

// Save persists the raw and processed crash mappings as JSON.
func (s *S3Store) Save(ctx context.Context, crashID string, raw, processed map[string]any) error {
	rawBody, err := json.Marshal(raw)
	if err != nil {
		return wrapError(err, "save", crashID)
	}
	processedBody, err := json.Marshal(processed)
	if err != nil {
		return wrapError(err, "save", crashID)
	}

	if err := s.putObject(ctx, s.key("raw_crash", crashID), rawBody); err != nil {
		return wrapError(err, "save", crashID)
	}
	if err := s.putObject(ctx, s.key("processed_crash", crashID), processedBody); err != nil {
		return wrapError(err, "save", crashID)
	}
	return nil
}

// Close releases client resources.
func (s *S3Store) Close() error { return nil }

// Verify S3Store implements CrashStore.
var _ CrashStore = (*S3Store)(nil)
