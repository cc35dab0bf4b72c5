package health

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

type headBucketAPI interface {
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// S3BucketProbe checks a bucket over the S3 XML API. Cloud Storage accepts
// this with HMAC keys, so no gcloud binary is needed on the monitor host.
type S3BucketProbe struct {
	api    headBucketAPI
	bucket string
}

// NewS3BucketProbe builds a path-style client for endpoint using static HMAC credentials.
func NewS3BucketProbe(ctx context.Context, endpoint, accessKey, secretKey, bucket string) (*S3BucketProbe, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")),
		awsconfig.WithRegion("auto"),
	)
	if err != nil {
		return nil, fmt.Errorf("load storage client config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true
	})
	return &S3BucketProbe{api: client, bucket: bucket}, nil
}

// Name implements Probe.
func (p *S3BucketProbe) Name() string { return TargetStorage }

// Check implements Probe.
func (p *S3BucketProbe) Check(ctx context.Context) error {
	_, err := p.api.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(p.bucket)})
	if err == nil {
		return nil
	}
	if isBucketNotFound(err) {
		return fmt.Errorf("bucket %s not found", p.bucket)
	}
	return fmt.Errorf("head bucket %s: %w", p.bucket, err)
}

func isBucketNotFound(err error) bool {
	var nsb *types.NoSuchBucket
	if errors.As(err, &nsb) {
		return true
	}
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		return code == "NotFound" || code == "NoSuchBucket"
	}
	return false
}
