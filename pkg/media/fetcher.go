package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"

	"github.com/z-wentao/docscribe/pkg/models"
)

// ErrUnsupportedBlob is returned when no fetcher can materialise a blob.
var ErrUnsupportedBlob = errors.New("unsupported media location")

// Fetcher makes the bytes of a blob available as a local file.
type Fetcher interface {
	Fetch(ctx context.Context, blob models.Blob) (models.Blob, error)
}

// LocalFetcher serves blobs that already live on disk.
type LocalFetcher struct{}

func (LocalFetcher) Fetch(_ context.Context, blob models.Blob) (models.Blob, error) {
	if !blob.IsLocal() {
		return models.Blob{}, ErrUnsupportedBlob
	}
	info, err := os.Stat(blob.Path)
	if err != nil {
		return models.Blob{}, fmt.Errorf("media %s: %w", blob.Path, err)
	}
	blob.Length = info.Size()
	return blob, nil
}

// ObjectGetter is the part of *s3.Client used by S3Fetcher.
type ObjectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Fetcher downloads blobs stored in a bucket to a temporary file.
type S3Fetcher struct {
	client  ObjectGetter
	tempDir string
}

func NewS3Fetcher(client ObjectGetter, tempDir string) *S3Fetcher {
	return &S3Fetcher{client: client, tempDir: tempDir}
}

func (f *S3Fetcher) Fetch(ctx context.Context, blob models.Blob) (models.Blob, error) {
	if !blob.IsRemote() {
		return models.Blob{}, ErrUnsupportedBlob
	}

	obj, err := f.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(blob.Bucket),
		Key:    aws.String(blob.Key),
	})
	if err != nil {
		return models.Blob{}, fmt.Errorf("get s3://%s/%s: %w", blob.Bucket, blob.Key, err)
	}
	defer obj.Body.Close()

	out, err := os.CreateTemp(f.tempDir, "media-*"+filepath.Ext(blob.Key))
	if err != nil {
		return models.Blob{}, fmt.Errorf("create temp file: %w", err)
	}
	n, err := io.Copy(out, obj.Body)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(out.Name())
		return models.Blob{}, fmt.Errorf("download s3://%s/%s: %w", blob.Bucket, blob.Key, err)
	}

	local := blob
	local.Path = out.Name()
	local.Length = n
	local.Temporary = true
	if local.MimeType == "" && obj.ContentType != nil {
		local.MimeType = *obj.ContentType
	}
	return local, nil
}

// Router picks the fetcher matching the blob location.
type Router struct {
	Local  Fetcher
	Remote Fetcher
}

func (r Router) Fetch(ctx context.Context, blob models.Blob) (models.Blob, error) {
	switch {
	case blob.IsLocal() && r.Local != nil:
		return r.Local.Fetch(ctx, blob)
	case blob.IsRemote() && r.Remote != nil:
		return r.Remote.Fetch(ctx, blob)
	default:
		return models.Blob{}, fmt.Errorf("%w: %+v", ErrUnsupportedBlob, blob)
	}
}

// S3Options configures an S3-compatible endpoint.
type S3Options struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
}

// NewS3Client builds a path-style client for S3 or a compatible store.
func NewS3Client(ctx context.Context, opts S3Options) (*s3.Client, error) {
	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(opts.Region)}
	if opts.AccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, ""),
		))
	}
	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = true
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
	}), nil
}

// Cleanup removes every temporary blob. Failures are logged.
func Cleanup(log zerolog.Logger, blobs ...models.Blob) {
	for _, b := range blobs {
		if !b.Temporary || b.Path == "" {
			continue
		}
		if err := os.Remove(b.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Warn().Err(err).Str("path", b.Path).Msg("remove temp file")
		}
	}
}
