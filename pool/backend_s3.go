package pool

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/pborman/uuid"
	"github.com/vectorlayer/spatialite/internal/log"
)

// S3Backend downloads a database object from S3 into CacheDir — the same
// local/cloud split gokoala's GeoPackage backend draws, generalized to
// any Backend implementation. Every LocalPath call downloads the object
// again into a new uniquely named file; earlier downloads are neither
// reused nor removed.
type S3Backend struct {
	Bucket   string
	Key      string
	Region   string
	CacheDir string

	sess *session.Session
}

func (b *S3Backend) LocalPath(ctx context.Context) (string, error) {
	if err := ensureCacheDir(b.CacheDir); err != nil {
		return "", fmt.Errorf("pool: creating cache dir %q: %w", b.CacheDir, err)
	}

	local := filepath.Join(b.CacheDir, uuid.New()+"-"+filepath.Base(b.Key))
	if b.sess == nil {
		sess, err := session.NewSession(&aws.Config{Region: aws.String(b.Region)})
		if err != nil {
			return "", fmt.Errorf("pool: creating S3 session: %w", err)
		}
		b.sess = sess
	}

	f, err := os.Create(local)
	if err != nil {
		return "", fmt.Errorf("pool: creating local cache file %q: %w", local, err)
	}
	defer f.Close()

	log.Infof("pool: downloading s3://%s/%s to %s", b.Bucket, b.Key, local)
	downloader := s3manager.NewDownloader(b.sess)
	_, err = downloader.DownloadWithContext(ctx, f, &s3.GetObjectInput{
		Bucket: aws.String(b.Bucket),
		Key:    aws.String(b.Key),
	})
	if err != nil {
		os.Remove(local)
		return "", fmt.Errorf("pool: downloading s3://%s/%s: %w", b.Bucket, b.Key, err)
	}
	return local, nil
}

var _ Backend = (*S3Backend)(nil)
