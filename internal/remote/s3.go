package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/sethvargo/go-retry"

	"github.com/fieldops/sitesync/internal/common"
	cc "github.com/fieldops/sitesync/internal/config"
	"github.com/fieldops/sitesync/internal/logging"
	"github.com/fieldops/sitesync/internal/models"
)

// partSize is the byte-range size of the chunked upload protocol. 5 MiB is
// the S3 minimum for a non-final part.
const partSize = 5 * 1024 * 1024

// partAttempts bounds per-part retries inside one upload session. Session
// level retry is driven by the caller's next trigger event instead.
const partAttempts = 3

// S3Store implements Store against an S3-compatible document store
// (AWS S3, MinIO). Site documents live under "{phase}/{siteName} {siteID}/".
type S3Store struct {
	client *s3.Client
	bucket string
	log    logging.Logger
}

func NewS3Store(ctx context.Context, cfg *cc.Config, log logging.Logger) (*S3Store, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.S3AccessKey,
			cfg.S3SecretKey,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3BaseEndpoint)
		}
		o.UsePathStyle = true
	})

	return &S3Store{client: client, bucket: cfg.S3Bucket, log: log}, nil
}

// sitePrefix is the key prefix of one site's documents.
func sitePrefix(site models.Site) string {
	return path.Join(site.Phase, fmt.Sprintf("%s %s", site.Name, site.ID))
}

func (s *S3Store) key(site models.Site, p string) string {
	return path.Join(sitePrefix(site), p)
}

func (s *S3Store) Ping(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrTransientNetwork, err)
	}
	return nil
}

func (s *S3Store) ListFiles(ctx context.Context, site models.Site, folder string) ([]FileInfo, error) {
	prefix := s.key(site, folder)
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	var result []FileInfo
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(s.bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: listing %q: %v", common.ErrTransientNetwork, prefix, err)
		}
		for _, cp := range page.CommonPrefixes {
			name := strings.TrimSuffix(strings.TrimPrefix(aws.ToString(cp.Prefix), prefix), "/")
			result = append(result, FileInfo{Name: name, IsFolder: true})
		}
		for _, obj := range page.Contents {
			name := strings.TrimPrefix(aws.ToString(obj.Key), prefix)
			if name == "" {
				continue
			}
			result = append(result, FileInfo{
				Name:       name,
				SizeBytes:  aws.ToInt64(obj.Size),
				ModifiedAt: aws.ToTime(obj.LastModified),
			})
		}
	}
	return result, nil
}

func (s *S3Store) UploadSmall(ctx context.Context, site models.Site, p string, data []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(site, p)),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return fmt.Errorf("failed to upload %q: %w", p, err)
	}
	return nil
}

// UploadChunked drives the session-based protocol: open a multipart session,
// PUT sequential byte ranges with bounded per-part retries, then close it.
// The session is aborted on failure so the remote holds no partial object.
func (s *S3Store) UploadChunked(ctx context.Context, site models.Site, p string, data []byte, onProgress ProgressFunc) error {
	key := s.key(site, p)
	total := int64(len(data))

	if total <= partSize {
		if err := s.UploadSmall(ctx, site, p, data); err != nil {
			return err
		}
		if onProgress != nil {
			onProgress(total, total)
		}
		return nil
	}

	create, err := s.client.CreateMultipartUpload(ctx, &s3.CreateMultipartUploadInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to open upload session for %q: %w", p, err)
	}
	uploadID := create.UploadId

	abort := func() {
		_, aerr := s.client.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
			Bucket: aws.String(s.bucket), Key: aws.String(key), UploadId: uploadID,
		})
		if aerr != nil {
			s.log.Warn(ctx, "failed to abort upload session", "key", key, "error", aerr)
		}
	}

	var completed []types.CompletedPart
	var sent int64
	for partNum := int32(1); sent < total; partNum++ {
		end := sent + partSize
		if end > total {
			end = total
		}
		chunk := data[sent:end]

		var etag *string
		backoff := retry.WithMaxRetries(partAttempts, retry.NewFibonacci(500*time.Millisecond))
		err := retry.Do(ctx, backoff, func(ctx context.Context) error {
			out, perr := s.client.UploadPart(ctx, &s3.UploadPartInput{
				Bucket:     aws.String(s.bucket),
				Key:        aws.String(key),
				UploadId:   uploadID,
				PartNumber: aws.Int32(partNum),
				Body:       bytes.NewReader(chunk),
			})
			if perr != nil {
				return retry.RetryableError(perr)
			}
			etag = out.ETag
			return nil
		})
		if err != nil {
			abort()
			return fmt.Errorf("%w: part %d of %q: %v", common.ErrTransientNetwork, partNum, p, err)
		}

		completed = append(completed, types.CompletedPart{ETag: etag, PartNumber: aws.Int32(partNum)})
		sent = end
		if onProgress != nil {
			onProgress(sent, total)
		}
	}

	_, err = s.client.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:          aws.String(s.bucket),
		Key:             aws.String(key),
		UploadId:        uploadID,
		MultipartUpload: &types.CompletedMultipartUpload{Parts: completed},
	})
	if err != nil {
		abort()
		return fmt.Errorf("failed to close upload session for %q: %w", p, err)
	}
	return nil
}

func (s *S3Store) DownloadFile(ctx context.Context, site models.Site, p string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(site, p)),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, fmt.Errorf("%w: %q", common.ErrRemoteConflict, p)
		}
		return nil, fmt.Errorf("%w: downloading %q: %v", common.ErrTransientNetwork, p, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %q: %v", common.ErrTransientNetwork, p, err)
	}
	return data, nil
}

func (s *S3Store) DeleteFile(ctx context.Context, site models.Site, p string) error {
	// DeleteObject succeeds for absent keys, which matches the contract.
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(site, p)),
	})
	if err != nil {
		return fmt.Errorf("%w: deleting %q: %v", common.ErrTransientNetwork, p, err)
	}
	return nil
}

func (s *S3Store) ResolveExistingFolderName(ctx context.Context, parentPath, desiredName string) (string, error) {
	prefix := parentPath
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:    aws.String(s.bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
	})
	if err != nil {
		return "", fmt.Errorf("%w: listing %q: %v", common.ErrTransientNetwork, parentPath, err)
	}

	want := foldName(desiredName)
	for _, cp := range out.CommonPrefixes {
		name := strings.TrimSuffix(strings.TrimPrefix(aws.ToString(cp.Prefix), prefix), "/")
		if foldName(name) == want {
			return name, nil
		}
	}
	return desiredName, nil
}

// foldName normalizes a folder name for case/format-insensitive comparison.
func foldName(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
