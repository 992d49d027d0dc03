// Package storage gives loom's File and Get tasks a remote-artifact
// backend beyond local paths and worker-local copies: s3://bucket/key
// sources and destinations via aws-sdk-go-v2, and plain http(s):// URLs
// via net/http.
//
// The teacher's own go.mod carries the full aws-sdk-go-v2 surface
// (config, credentials, feature/s3/manager, service/s3) as an indirect
// dependency but has no direct call site to imitate; this package wires
// it up the way the SDK's own v2 documentation does — config.
// LoadDefaultConfig for credential/region resolution, manager.Downloader/
// manager.Uploader for the transfer itself — rather than hand-rolling a
// client around the low-level service/s3 calls.
package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ParseS3URL splits an "s3://bucket/key" URL into its bucket and key.
// ok is false for any string that isn't an s3:// URL.
func ParseS3URL(raw string) (bucket, key string, ok bool) {
	const prefix = "s3://"
	if !strings.HasPrefix(raw, prefix) {
		return "", "", false
	}
	rest := strings.TrimPrefix(raw, prefix)
	idx := strings.Index(rest, "/")
	if idx < 0 {
		return rest, "", true
	}
	return rest[:idx], rest[idx+1:], true
}

// IsHTTPURL reports whether raw is an http:// or https:// URL.
func IsHTTPURL(raw string) bool {
	return strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://")
}

// S3 wraps the SDK's managed downloader/uploader, each of which chunk
// large objects into concurrent parts internally.
type S3 struct {
	downloader *manager.Downloader
	uploader   *manager.Uploader
}

// NewS3 builds an S3 client using the SDK's default credential chain
// (environment, shared config, EC2/ECS instance role, in that order).
func NewS3(ctx context.Context) (*S3, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("storage: load aws config: %w", err)
	}
	client := s3.NewFromConfig(cfg)
	return &S3{
		downloader: manager.NewDownloader(client),
		uploader:   manager.NewUploader(client),
	}, nil
}

// Download fetches bucket/key to localPath.
func (c *S3) Download(ctx context.Context, bucket, key, localPath string) error {
	f, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("storage: create %s: %w", localPath, err)
	}
	defer f.Close()

	if _, err := c.downloader.Download(ctx, f, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}); err != nil {
		return fmt.Errorf("storage: download s3://%s/%s: %w", bucket, key, err)
	}
	return nil
}

// Upload sends localPath's contents to bucket/key.
func (c *S3) Upload(ctx context.Context, bucket, key, localPath string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("storage: open %s: %w", localPath, err)
	}
	defer f.Close()

	if _, err := c.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   f,
	}); err != nil {
		return fmt.Errorf("storage: upload s3://%s/%s: %w", bucket, key, err)
	}
	return nil
}

// GetHTTP downloads url to localPath.
func GetHTTP(ctx context.Context, url, localPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("storage: build request for %s: %w", url, err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("storage: fetch %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("storage: fetch %s: status %s", url, resp.Status)
	}

	f, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("storage: create %s: %w", localPath, err)
	}
	defer f.Close()

	if _, err := io.Copy(f, resp.Body); err != nil {
		return fmt.Errorf("storage: write %s: %w", localPath, err)
	}
	return nil
}

// PutHTTP uploads localPath's contents to url via PUT.
func PutHTTP(ctx context.Context, url, localPath string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("storage: open %s: %w", localPath, err)
	}
	defer f.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, f)
	if err != nil {
		return fmt.Errorf("storage: build request for %s: %w", url, err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("storage: put %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("storage: put %s: status %s", url, resp.Status)
	}
	return nil
}

// Transfer inspects src/dst for an s3:// or http(s):// scheme and
// performs the remote transfer, reporting handled=true if it did. A
// false return means neither path is a remote URL, and the caller
// should fall back to its own local/worker copy path.
func Transfer(ctx context.Context, src, dst string) (handled bool, err error) {
	if bucket, key, ok := ParseS3URL(dst); ok {
		c, err := NewS3(ctx)
		if err != nil {
			return true, err
		}
		return true, c.Upload(ctx, bucket, key, src)
	}
	if bucket, key, ok := ParseS3URL(src); ok {
		c, err := NewS3(ctx)
		if err != nil {
			return true, err
		}
		return true, c.Download(ctx, bucket, key, dst)
	}
	if IsHTTPURL(dst) {
		return true, PutHTTP(ctx, dst, src)
	}
	if IsHTTPURL(src) {
		return true, GetHTTP(ctx, src, dst)
	}
	return false, nil
}
