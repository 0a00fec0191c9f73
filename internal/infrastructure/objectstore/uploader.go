// Package objectstore mirrors wiki-hosted team logos into an
// S3-compatible bucket so downstream consumers never hotlink the wiki.
package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/avdeenkov/tourneysync/internal/platform/logging"
)

const maxLogoBytes = 4 << 20

type UploaderConfig struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	PublicURL string
	UserAgent string
	HTTP      *http.Client
	Logger    *logging.Logger
}

type Uploader struct {
	client    *s3.Client
	bucket    string
	publicURL string
	userAgent string
	http      *http.Client
	logger    *logging.Logger
}

func NewUploader(ctx context.Context, cfg UploaderConfig) (*Uploader, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" || cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("object store requires endpoint, bucket and credentials")
	}

	region := cfg.Region
	if region == "" {
		region = "auto"
	}

	sdkCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("load object store sdk config: %w", err)
	}

	client := s3.NewFromConfig(sdkCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.Endpoint)
		o.UsePathStyle = true
	})

	httpClient := cfg.HTTP
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNop()
	}

	return &Uploader{
		client:    client,
		bucket:    cfg.Bucket,
		publicURL: strings.TrimRight(cfg.PublicURL, "/"),
		userAgent: cfg.UserAgent,
		http:      httpClient,
		logger:    logger,
	}, nil
}

// UploadFromURL downloads sourceURL and writes it to the bucket under
// objectKey. Returns the public URL of the stored object.
func (u *Uploader) UploadFromURL(ctx context.Context, sourceURL, objectKey string) (string, error) {
	objectKey = strings.TrimPrefix(strings.TrimSpace(objectKey), "/")
	if sourceURL == "" || objectKey == "" {
		return "", fmt.Errorf("upload requires a source url and object key")
	}

	body, contentType, err := u.download(ctx, sourceURL)
	if err != nil {
		return "", err
	}

	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(objectKey),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("put object key=%s: %w", objectKey, err)
	}

	u.logger.DebugContext(ctx, "uploaded logo",
		"key", objectKey,
		"bytes", len(body),
	)

	return u.objectURL(objectKey), nil
}

func (u *Uploader) download(ctx context.Context, sourceURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("build logo request: %w", err)
	}
	if u.userAgent != "" {
		req.Header.Set("User-Agent", u.userAgent)
	}

	resp, err := u.http.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("fetch logo %s: %w", sourceURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("fetch logo %s: status %d", sourceURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxLogoBytes))
	if err != nil {
		return nil, "", fmt.Errorf("read logo body: %w", err)
	}
	if len(body) == 0 {
		return nil, "", fmt.Errorf("fetch logo %s: empty body", sourceURL)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(body)
	}
	return body, contentType, nil
}

func (u *Uploader) objectURL(objectKey string) string {
	if u.publicURL == "" {
		return fmt.Sprintf("%s/%s", u.bucket, objectKey)
	}
	return u.publicURL + "/" + objectKey
}
