// media.go - Media store boundary: buffered bytes in, durable public URL out.
//
// The remote host is any S3-compatible service. Object keys embed a
// timestamp and a uuid, so uploading identical bytes twice yields two
// distinct URLs. No retry, no dedup; failures surface to the caller, which
// maps them to an upstream error response.
package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MediaStore uploads a buffered file into a folder and returns its public URL.
type MediaStore interface {
	Upload(ctx context.Context, f uploadedFile, folder string) (string, error)
}

var errMediaUnavailable = errors.New("media host not configured")

// uploadFile guards against a missing media host so upload routes return a
// clean error instead of panicking on a nil store.
func (s *Server) uploadFile(ctx context.Context, f uploadedFile, folder string) (string, error) {
	if s.media == nil {
		return "", errMediaUnavailable
	}
	return s.media.Upload(ctx, f, folder)
}

// Upload folders, mirroring the deployed Cloudinary layout.
const (
	folderBlogImages  = "blog-uploads/images"
	folderBlogVideos  = "blog-uploads/videos"
	folderLandingPage = "landing-page"
)

// blogFolderFor picks the blog upload folder from the file's MIME type.
func blogFolderFor(f uploadedFile) string {
	if f.isVideo() {
		return folderBlogVideos
	}
	return folderBlogImages
}

type minioMediaStore struct {
	client    *minio.Client
	bucket    string
	publicURL string // base URL the bucket is served from
}

func normaliseEndpoint(raw string) (endpoint string, secure bool, err error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false, fmt.Errorf("empty endpoint")
	}

	// Accept either "minio:9000" or "http://minio:9000" / "https://minio:9000".
	if strings.Contains(raw, "://") {
		u, err := url.Parse(raw)
		if err != nil {
			return "", false, err
		}
		if u.Host == "" {
			return "", false, fmt.Errorf("invalid endpoint")
		}
		if u.Path != "" && u.Path != "/" {
			return "", false, fmt.Errorf("endpoint must not contain a path")
		}
		secure = (u.Scheme == "https")
		return u.Host, secure, nil
	}

	// No scheme provided, treat as host:port (insecure by default for local MinIO).
	return raw, false, nil
}

// NewMediaStoreFromEnv builds the MinIO-backed media store from BLOG_S3_*
// environment variables and sanity-checks that the bucket exists.
func NewMediaStoreFromEnv() (MediaStore, error) {
	rawEndpoint := os.Getenv("BLOG_S3_ENDPOINT")
	accessKey := os.Getenv("BLOG_S3_ACCESS_KEY")
	secretKey := os.Getenv("BLOG_S3_SECRET_KEY")
	bucket := os.Getenv("BLOG_S3_BUCKET")
	publicURL := os.Getenv("BLOG_MEDIA_PUBLIC_URL")

	if rawEndpoint == "" || accessKey == "" || secretKey == "" || bucket == "" {
		return nil, fmt.Errorf("media store configuration incomplete")
	}

	endpoint, secure, err := normaliseEndpoint(rawEndpoint)
	if err != nil {
		return nil, err
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: secure,
	})
	if err != nil {
		return nil, err
	}

	// Sanity check: bucket must exist.
	exists, err := client.BucketExists(context.Background(), bucket)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("media bucket does not exist: %s", bucket)
	}

	if publicURL == "" {
		scheme := "http"
		if secure {
			scheme = "https"
		}
		publicURL = scheme + "://" + endpoint
	}

	return &minioMediaStore{
		client:    client,
		bucket:    bucket,
		publicURL: strings.TrimRight(publicURL, "/"),
	}, nil
}

// NewMinioMediaStore wraps an existing client; integration tests use this.
func NewMinioMediaStore(client *minio.Client, bucket, publicURL string) MediaStore {
	return &minioMediaStore{
		client:    client,
		bucket:    bucket,
		publicURL: strings.TrimRight(publicURL, "/"),
	}
}

func (m *minioMediaStore) Upload(ctx context.Context, f uploadedFile, folder string) (string, error) {
	if len(f.Data) == 0 {
		return "", fmt.Errorf("empty file")
	}

	key := objectKey(folder, f.Name)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	start := time.Now()
	_, err := m.client.PutObject(
		ctx,
		m.bucket,
		key,
		bytes.NewReader(f.Data),
		int64(len(f.Data)),
		minio.PutObjectOptions{ContentType: f.ContentType},
	)
	if err != nil {
		GetMetrics().RecordUploadError()
		return "", err
	}
	GetMetrics().RecordUpload(int64(len(f.Data)), time.Since(start))

	return m.publicURL + "/" + m.bucket + "/" + key, nil
}

// objectKey builds "<folder>/<unix-millis>-<uuid><ext>". The original
// extension is kept so the serving side can infer a content type.
func objectKey(folder, filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	return fmt.Sprintf("%s/%d-%s%s", strings.Trim(folder, "/"), time.Now().UnixMilli(), uuid.NewString(), ext)
}
