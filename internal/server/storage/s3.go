package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"github.com/babelscrib/babelscrib/internal/common"
)

// S3Options carries the connection settings for an S3-compatible backend.
type S3Options struct {
	RootUser     string
	RootPassword string
	Region       string
	BaseEndpoint string
}

// S3Store implements BlobStore over an S3-compatible endpoint (MinIO, AWS).
// Buckets play the role of containers.
type S3Store struct {
	client   *s3.Client
	endpoint string
}

// NewS3Store builds an S3Store from the given options. Missing endpoint or
// credentials mean the store cannot operate and yield ErrorStorageUnavailable.
func NewS3Store(ctx context.Context, opts S3Options) (*S3Store, error) {
	if opts.BaseEndpoint == "" || opts.RootUser == "" || opts.RootPassword == "" {
		return nil, fmt.Errorf("incomplete S3 settings: %w", common.ErrorStorageUnavailable)
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(opts.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			opts.RootUser,
			opts.RootPassword,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("aws config error: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(opts.BaseEndpoint)
		o.UsePathStyle = true
	})

	return &S3Store{client: client, endpoint: strings.TrimRight(opts.BaseEndpoint, "/")}, nil
}

func (s *S3Store) ContainerURI(container string) string {
	return s.endpoint + "/" + container
}

func (s *S3Store) CreateContainer(ctx context.Context, container string) error {
	_, err := s.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: &container})
	if err != nil {
		if hasErrorCode(err, "BucketAlreadyOwnedByYou", "BucketAlreadyExists") {
			return nil
		}
		return fmt.Errorf("create container %s: %w", container, err)
	}
	return nil
}

// DeleteContainer empties the bucket first; S3 refuses to remove a non-empty
// one. A missing bucket counts as already deleted.
func (s *S3Store) DeleteContainer(ctx context.Context, container string) error {
	blobs, err := s.ListBlobs(ctx, container, "")
	if err != nil {
		if errors.Is(err, ErrContainerNotFound) {
			return nil
		}
		return err
	}

	for _, b := range blobs {
		if err := s.DeleteBlob(ctx, container, b.Name); err != nil {
			return err
		}
	}

	_, err = s.client.DeleteBucket(ctx, &s3.DeleteBucketInput{Bucket: &container})
	if err != nil && !hasErrorCode(err, "NoSuchBucket") {
		return fmt.Errorf("delete container %s: %w", container, err)
	}
	return nil
}

// ErrContainerNotFound reports a list against a container that does not
// exist. Callers treat it as "nothing to do" where appropriate.
var ErrContainerNotFound = errors.New("container not found")

func (s *S3Store) ListBlobs(ctx context.Context, container, prefix string) ([]BlobInfo, error) {
	var result []BlobInfo

	input := &s3.ListObjectsV2Input{Bucket: &container}
	if prefix != "" {
		input.Prefix = &prefix
	}

	paginator := s3.NewListObjectsV2Paginator(s.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			if hasErrorCode(err, "NoSuchBucket") {
				return nil, ErrContainerNotFound
			}
			return nil, fmt.Errorf("list blobs in %s: %w", container, err)
		}
		for _, obj := range page.Contents {
			info := BlobInfo{Name: aws.ToString(obj.Key), Size: aws.ToInt64(obj.Size)}
			if obj.LastModified != nil {
				info.LastModified = *obj.LastModified
			}
			result = append(result, info)
		}
	}

	return result, nil
}

func (s *S3Store) Get(ctx context.Context, container, name string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: &container, Key: &name})
	if err != nil {
		if hasErrorCode(err, "NoSuchKey", "NoSuchBucket", "NotFound") {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("get blob %s/%s: %w", container, name, err)
	}
	return out.Body, nil
}

func (s *S3Store) Upload(ctx context.Context, container, name string, body io.Reader, overwrite bool) error {
	if !overwrite {
		exists, err := s.Exists(ctx, container, name)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("blob %s/%s already exists", container, name)
		}
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: &container,
		Key:    &name,
		Body:   body,
	})
	if err != nil {
		return fmt.Errorf("upload blob %s/%s: %w", container, name, err)
	}
	return nil
}

func (s *S3Store) Copy(ctx context.Context, srcContainer, srcName, dstContainer, dstName string) error {
	source := srcContainer + "/" + srcName
	_, err := s.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     &dstContainer,
		Key:        &dstName,
		CopySource: &source,
	})
	if err != nil {
		return fmt.Errorf("copy %s to %s/%s: %w", source, dstContainer, dstName, err)
	}
	return nil
}

func (s *S3Store) DeleteBlob(ctx context.Context, container, name string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: &container, Key: &name})
	if err != nil {
		if hasErrorCode(err, "NoSuchKey", "NoSuchBucket", "NotFound") {
			return nil
		}
		return fmt.Errorf("delete blob %s/%s: %w", container, name, err)
	}
	return nil
}

func (s *S3Store) Exists(ctx context.Context, container, name string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: &container, Key: &name})
	if err != nil {
		if hasErrorCode(err, "NotFound", "NoSuchKey", "NoSuchBucket") {
			return false, nil
		}
		return false, fmt.Errorf("head blob %s/%s: %w", container, name, err)
	}
	return true, nil
}

func hasErrorCode(err error, codes ...string) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	for _, c := range codes {
		if apiErr.ErrorCode() == c {
			return true
		}
	}
	return false
}
