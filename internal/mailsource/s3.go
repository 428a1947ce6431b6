package mailsource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3API is the part of the S3 client the source needs.
type S3API interface {
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Source reads raw messages an inbound mail pipeline stored under a bucket prefix.
type S3Source struct {
	client S3API
	bucket string
	prefix string
}

func NewS3(client S3API, bucket, prefix string) *S3Source {
	return &S3Source{client: client, bucket: bucket, prefix: prefix}
}

// OpenS3 parses s3://bucket/prefix and builds a client from the default AWS
// credential chain.
func OpenS3(ctx context.Context, target string) (*S3Source, error) {
	bucket, prefix, err := parseS3URL(target)
	if err != nil {
		return nil, err
	}
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewS3(s3.NewFromConfig(cfg), bucket, prefix), nil
}

func parseS3URL(target string) (string, string, error) {
	u, err := url.Parse(target)
	if err != nil {
		return "", "", fmt.Errorf("parse s3 url: %w", err)
	}
	if u.Scheme != "s3" || u.Host == "" {
		return "", "", fmt.Errorf("invalid s3 url %q", target)
	}
	return u.Host, strings.TrimPrefix(u.Path, "/"), nil
}

func (s *S3Source) Name() string {
	return "s3://" + s.bucket + "/" + s.prefix
}

func (*S3Source) Kind() string { return KindS3 }

func (s *S3Source) Load(ctx context.Context) ([]Entry, error) {
	keys, err := s.listKeys(ctx)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(keys))
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return entries, err
		}
		msg, err := s.get(ctx, key)
		entries = append(entries, Entry{Message: msg, Err: err})
	}
	return entries, nil
}

func (s *S3Source) listKeys(ctx context.Context) ([]string, error) {
	input := &s3.ListObjectsV2Input{Bucket: aws.String(s.bucket)}
	if s.prefix != "" {
		input.Prefix = aws.String(s.prefix)
	}

	var keys []string
	paginator := s3.NewListObjectsV2Paginator(s.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			var noBucket *types.NoSuchBucket
			if errors.As(err, &noBucket) {
				return nil, notFound("bucket", s.bucket)
			}
			return nil, fmt.Errorf("list objects %s: %w", s.Name(), err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if key == "" || strings.HasSuffix(key, "/") {
				continue
			}
			keys = append(keys, key)
		}
	}
	return keys, nil
}

func (s *S3Source) get(ctx context.Context, key string) (Message, error) {
	name := "s3://" + s.bucket + "/" + key
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return Message{Name: name}, notFound("object", name)
		}
		return Message{Name: name}, fmt.Errorf("get object %s: %w", name, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return Message{Name: name}, fmt.Errorf("read object %s: %w", name, err)
	}
	return Message{Name: name, Raw: data}, nil
}
