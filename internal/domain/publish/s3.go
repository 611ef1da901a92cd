package publish

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"ai-images-server-go/internal/domain/image"
	"ai-images-server-go/internal/platform/config"
	"ai-images-server-go/internal/platform/errors"
)

const defaultCacheControl = "public, max-age=31536000"

// S3 publishes to an S3-compatible bucket such as Cloudflare R2.
type S3 struct {
	client       *s3.Client
	bucket       string
	baseURL      string
	cacheControl string
	keys         *KeyGenerator
}

type S3Options struct {
	Config        config.S3Storage
	Namespace     string
	PublicBaseURL string
	CacheControl  string
}

func NewS3(opts S3Options) (*S3, error) {
	c := opts.Config
	if c.Endpoint == "" || c.Bucket == "" || c.AccessKeyID == "" || c.SecretAccessKey == "" {
		return nil, errors.New(errors.KindConfig, "publish.s3", "bucket binding is incomplete: endpoint, bucket and credentials are required")
	}
	region := c.Region
	if region == "" {
		region = "auto"
	}
	cacheControl := opts.CacheControl
	if cacheControl == "" {
		cacheControl = defaultCacheControl
	}

	client := s3.New(s3.Options{
		Region:                     region,
		Credentials:                credentials.NewStaticCredentialsProvider(c.AccessKeyID, c.SecretAccessKey, ""),
		BaseEndpoint:               aws.String(c.Endpoint),
		UsePathStyle:               c.UsePathStyle,
		RetryMaxAttempts:           c.MaxAttempts,
		RequestChecksumCalculation: aws.RequestChecksumCalculationWhenRequired,
		ResponseChecksumValidation: aws.ResponseChecksumValidationWhenRequired,
	})

	return &S3{
		client:       client,
		bucket:       c.Bucket,
		baseURL:      opts.PublicBaseURL,
		cacheControl: cacheControl,
		keys:         NewKeyGenerator(opts.Namespace),
	}, nil
}

func (*S3) Name() string { return "s3" }

func (p *S3) Publish(ctx context.Context, data []byte, fileName, mimeType string) (image.PublishResult, error) {
	key, at := p.keys.Next(fileName)

	_, err := p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(p.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(mimeType),
		CacheControl:  aws.String(p.cacheControl),
	})
	if err != nil {
		return image.PublishResult{}, errors.Wrap(errors.KindStorage, "publish.s3",
			fmt.Sprintf("storage unavailable: put %s/%s", p.bucket, key), err)
	}

	return image.PublishResult{
		URL:        JoinURL(p.baseURL, key),
		Key:        key,
		UploadedAt: timestamp(at),
	}, nil
}

func (p *S3) Delete(ctx context.Context, key string) error {
	_, err := p.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return errors.Wrap(errors.KindStorage, "publish.s3", fmt.Sprintf("delete %s/%s", p.bucket, key), err)
	}
	return nil
}
