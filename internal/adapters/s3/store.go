// Package s3 implements the object store contract on AWS S3 or any
// S3-compatible endpoint (MinIO, localstack).
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/pridiuksson/ninegrid/internal/app/ports"
)

// Config carries connection settings for the store.
type Config struct {
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
	// PublicBaseURL is the externally reachable root under which uploaded
	// objects are served, e.g. the bucket website endpoint or a CDN origin.
	PublicBaseURL string
}

// Store is the S3-backed ports.ObjectStore implementation.
type Store struct {
	client        *awss3.Client
	publicBaseURL string
}

var _ ports.ObjectStore = (*Store)(nil)

// New builds a store from the ambient AWS config plus explicit overrides.
func New(ctx context.Context, cfg Config) (*Store, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{}
	if cfg.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := awss3.NewFromConfig(awsCfg, func(o *awss3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return &Store{
		client:        client,
		publicBaseURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
	}, nil
}

// ListBuckets returns the names of all buckets visible to the credentials.
func (s *Store) ListBuckets(ctx context.Context) ([]string, error) {
	out, err := s.client.ListBuckets(ctx, &awss3.ListBucketsInput{})
	if err != nil {
		return nil, fmt.Errorf("list buckets: %w", err)
	}
	names := make([]string, 0, len(out.Buckets))
	for _, bucket := range out.Buckets {
		names = append(names, aws.ToString(bucket.Name))
	}
	return names, nil
}

// CreateBucket creates the bucket, optionally with public read access.
func (s *Store) CreateBucket(ctx context.Context, name string, public bool) error {
	input := &awss3.CreateBucketInput{Bucket: aws.String(name)}
	if public {
		input.ACL = types.BucketCannedACLPublicRead
	}
	if _, err := s.client.CreateBucket(ctx, input); err != nil {
		return fmt.Errorf("create bucket %s: %w", name, err)
	}
	return nil
}

// List returns every object in the bucket. The listing is unbounded;
// pagination is drained internally.
func (s *Store) List(ctx context.Context, bucket string) ([]ports.RemoteObject, error) {
	paginator := awss3.NewListObjectsV2Paginator(s.client, &awss3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
	})

	var objects []ports.RemoteObject
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list objects in %s: %w", bucket, err)
		}
		for _, obj := range page.Contents {
			objects = append(objects, ports.RemoteObject{Name: aws.ToString(obj.Key)})
		}
	}
	return objects, nil
}

// Upload writes object bytes under the given name.
func (s *Store) Upload(ctx context.Context, bucket, name string, data []byte, opts ports.UploadOptions) error {
	if !opts.Upsert {
		_, err := s.client.HeadObject(ctx, &awss3.HeadObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(name),
		})
		if err == nil {
			return fmt.Errorf("object %s already exists in %s", name, bucket)
		}
		var notFound *types.NotFound
		if !errors.As(err, &notFound) {
			return fmt.Errorf("head object %s: %w", name, err)
		}
	}

	input := &awss3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(name),
		Body:   bytes.NewReader(data),
	}
	if opts.ContentType != "" {
		input.ContentType = aws.String(opts.ContentType)
	}
	if opts.CacheControl != "" {
		input.CacheControl = aws.String("max-age=" + opts.CacheControl)
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("put object %s: %w", name, err)
	}
	return nil
}

// Remove deletes the named objects from the bucket.
func (s *Store) Remove(ctx context.Context, bucket string, names []string) error {
	if len(names) == 0 {
		return nil
	}
	identifiers := make([]types.ObjectIdentifier, 0, len(names))
	for _, name := range names {
		identifiers = append(identifiers, types.ObjectIdentifier{Key: aws.String(name)})
	}
	out, err := s.client.DeleteObjects(ctx, &awss3.DeleteObjectsInput{
		Bucket: aws.String(bucket),
		Delete: &types.Delete{Objects: identifiers, Quiet: aws.Bool(true)},
	})
	if err != nil {
		return fmt.Errorf("delete objects in %s: %w", bucket, err)
	}
	if len(out.Errors) > 0 {
		first := out.Errors[0]
		return fmt.Errorf("delete %s: %s", aws.ToString(first.Key), aws.ToString(first.Message))
	}
	return nil
}

// PublicURL resolves the externally reachable URL of an object. It is a pure
// derivation and requires a configured public base URL.
func (s *Store) PublicURL(bucket, name string) (string, error) {
	if s.publicBaseURL == "" {
		return "", fmt.Errorf("no public base url configured for bucket %s", bucket)
	}
	joined, err := url.JoinPath(s.publicBaseURL, bucket, name)
	if err != nil {
		return "", fmt.Errorf("build public url for %s: %w", name, err)
	}
	return joined, nil
}
