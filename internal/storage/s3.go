// Package storage uploads result records to S3.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// PutObjectAPI is the subset of the S3 client used here.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Uploader writes objects under an s3://bucket/prefix location.
type Uploader struct {
	client PutObjectAPI
}

// NewUploader wraps an existing S3 client.
func NewUploader(client PutObjectAPI) *Uploader {
	return &Uploader{client: client}
}

// NewS3Uploader builds an Uploader from the default AWS credential chain.
// An empty region defers to the environment and shared config.
func NewS3Uploader(ctx context.Context, region string) (*Uploader, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return NewUploader(s3.NewFromConfig(cfg)), nil
}

// ParseURI splits s3://bucket/prefix into its bucket and key prefix.
func ParseURI(uri string) (bucket, prefix string, err error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", "", fmt.Errorf("parse S3 URI %q: %w", uri, err)
	}
	if u.Scheme != "s3" || u.Host == "" {
		return "", "", fmt.Errorf("S3 URI %q must look like s3://bucket/prefix", uri)
	}
	return u.Host, strings.Trim(u.Path, "/"), nil
}

// Upload stores body as <prefix>/<name> under uri and returns the object's
// s3:// location.
func (u *Uploader) Upload(ctx context.Context, uri, name string, body []byte) (string, error) {
	bucket, prefix, err := ParseURI(uri)
	if err != nil {
		return "", err
	}
	key := name
	if prefix != "" {
		key = path.Join(prefix, name)
	}
	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("upload s3://%s/%s: %w", bucket, key, err)
	}
	return fmt.Sprintf("s3://%s/%s", bucket, key), nil
}
