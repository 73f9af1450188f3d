package upload

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Provider stores images in an S3 bucket.
type S3Provider struct {
	client  *s3.Client
	bucket  string
	maxSize int64
}

// NewS3Provider creates a new AWS S3 storage provider
func NewS3Provider(accessKeyID, secretAccessKey, region, bucket string, maxSize int64) (*S3Provider, error) {
	ctx := context.Background()

	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			accessKeyID,
			secretAccessKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &S3Provider{
		client:  s3.NewFromConfig(cfg),
		bucket:  bucket,
		maxSize: maxSize,
	}, nil
}

func (p *S3Provider) GetProviderName() string {
	return "s3"
}

func (p *S3Provider) Store(folder string, r io.Reader) (*StoredFile, error) {
	data, detected, err := readValidated(r, p.maxSize)
	if err != nil {
		return nil, err
	}

	name := opaqueName(detected)
	key := folder + "/" + name

	_, err = p.client.PutObject(context.Background(), &s3.PutObjectInput{
		Bucket:      aws.String(p.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(detected),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload to S3: %w", err)
	}

	return &StoredFile{
		Name: name,
		MIME: detected,
		Size: int64(len(data)),
	}, nil
}

func (p *S3Provider) Open(folder, name string) (io.ReadCloser, string, error) {
	out, err := p.client.GetObject(context.Background(), &s3.GetObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(folder + "/" + name),
	})
	if err != nil {
		return nil, "", err
	}

	mimeType := ""
	if out.ContentType != nil {
		mimeType = *out.ContentType
	}
	return out.Body, mimeType, nil
}

func (p *S3Provider) Delete(folder, name string) error {
	_, err := p.client.DeleteObject(context.Background(), &s3.DeleteObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(folder + "/" + name),
	})
	return err
}

func (p *S3Provider) PurgeOlderThan(folder string, cutoff time.Time) (int, error) {
	ctx := context.Background()
	purged := 0

	paginator := s3.NewListObjectsV2Paginator(p.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(p.bucket),
		Prefix: aws.String(folder + "/"),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return purged, err
		}
		for _, obj := range page.Contents {
			if obj.LastModified == nil || !obj.LastModified.Before(cutoff) {
				continue
			}
			_, err := p.client.DeleteObject(ctx, &s3.DeleteObjectInput{
				Bucket: aws.String(p.bucket),
				Key:    obj.Key,
			})
			if err == nil {
				purged++
			}
		}
	}
	return purged, nil
}
