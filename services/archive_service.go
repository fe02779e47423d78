package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/NomadCrew/nomad-crew-ocr/config"
	"github.com/NomadCrew/nomad-crew-ocr/logger"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"
)

var archiveExtPattern = regexp.MustCompile(`^\.[a-z0-9]{1,5}$`)

// DocumentArchive keeps a copy of every processed upload.
type DocumentArchive interface {
	Store(ctx context.Context, hash, filename string, data []byte) error
	Ping(ctx context.Context) error
}

// objectAPI is the subset of *s3.Client the archive uses.
type objectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// R2Archive stores original uploads in Cloudflare R2 (or any S3-compatible
// store) under their content hash.
type R2Archive struct {
	client objectAPI
	bucket string
	log    *zap.SugaredLogger
}

// NewR2Archive builds an archive client. An explicit endpoint switches to
// path-style addressing for MinIO and similar stores. Without static keys the
// default AWS credential chain is used.
func NewR2Archive(ctx context.Context, cfg config.ArchiveConfig) (*R2Archive, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("archive bucket is required")
	}

	endpoint := cfg.Endpoint
	pathStyle := endpoint != ""
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.AccountID)
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion("auto")}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load archive credentials: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = pathStyle
	})

	return newR2Archive(client, cfg.Bucket), nil
}

func newR2Archive(client objectAPI, bucket string) *R2Archive {
	return &R2Archive{
		client: client,
		bucket: bucket,
		log:    logger.GetLogger().Named("archive"),
	}
}

// archiveKey fans objects out by the first hash byte:
// documents/ab/abcdef....pdf
func archiveKey(hash, filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if !archiveExtPattern.MatchString(ext) {
		ext = ""
	}
	prefix := hash
	if len(prefix) > 2 {
		prefix = prefix[:2]
	}
	return fmt.Sprintf("documents/%s/%s%s", prefix, hash, ext)
}

// validateKey rejects storage keys containing path traversal segments.
func validateKey(key string) error {
	for _, segment := range strings.Split(key, "/") {
		if segment == ".." || segment == "" {
			return fmt.Errorf("invalid storage key %q", key)
		}
	}
	return nil
}

// Store uploads data unless an object with the same hash already exists.
func (a *R2Archive) Store(ctx context.Context, hash, filename string, data []byte) error {
	if hash == "" {
		return fmt.Errorf("archive: empty content hash")
	}
	key := archiveKey(hash, filename)
	if err := validateKey(key); err != nil {
		return err
	}

	exists, err := a.exists(ctx, key)
	if err != nil {
		return err
	}
	if exists {
		a.log.Debugw("Document already archived", "key", key)
		return nil
	}

	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(a.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(mimetype.Detect(data).String()),
		Metadata:      map[string]string{"original-filename": filepath.Base(filename)},
	})
	if err != nil {
		return fmt.Errorf("r2 put object failed: %w", err)
	}
	a.log.Debugw("Document archived", "key", key, "bytes", len(data))
	return nil
}

func (a *R2Archive) exists(ctx context.Context, key string) (bool, error) {
	_, err := a.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}
	var notFound *s3types.NotFound
	var noSuchKey *s3types.NoSuchKey
	if errors.As(err, &notFound) || errors.As(err, &noSuchKey) {
		return false, nil
	}
	return false, fmt.Errorf("r2 head object failed: %w", err)
}

// Ping checks that the bucket is reachable with the configured credentials.
func (a *R2Archive) Ping(ctx context.Context) error {
	_, err := a.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(a.bucket)})
	if err != nil {
		return fmt.Errorf("r2 head bucket failed: %w", err)
	}
	return nil
}
