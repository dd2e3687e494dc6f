package pool

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/Azure/azure-storage-blob-go/azblob"
	"github.com/pborman/uuid"
	"github.com/vectorlayer/spatialite/internal/log"
)

// AzureBackend downloads a database blob from Azure Blob Storage into
// CacheDir. Every LocalPath call downloads the blob again into a new
// uniquely named file; earlier downloads are neither reused nor removed.
// Mirrors S3Backend's shape; both are generalizations of gokoala's
// local/cloud GeoPackage split.
type AzureBackend struct {
	AccountName   string
	AccountKey    string
	ContainerName string
	BlobName      string
	CacheDir      string
}

func (b *AzureBackend) LocalPath(ctx context.Context) (string, error) {
	if err := ensureCacheDir(b.CacheDir); err != nil {
		return "", fmt.Errorf("pool: creating cache dir %q: %w", b.CacheDir, err)
	}

	cred, err := azblob.NewSharedKeyCredential(b.AccountName, b.AccountKey)
	if err != nil {
		return "", fmt.Errorf("pool: building azure credential: %w", err)
	}
	pipeline := azblob.NewPipeline(cred, azblob.PipelineOptions{})

	u, err := url.Parse(fmt.Sprintf("https://%s.blob.core.windows.net/%s/%s", b.AccountName, b.ContainerName, b.BlobName))
	if err != nil {
		return "", fmt.Errorf("pool: building azure blob url: %w", err)
	}
	blobURL := azblob.NewBlobURL(*u, pipeline)

	local := filepath.Join(b.CacheDir, uuid.New()+"-"+filepath.Base(b.BlobName))
	f, err := os.Create(local)
	if err != nil {
		return "", fmt.Errorf("pool: creating local cache file %q: %w", local, err)
	}
	defer f.Close()

	log.Infof("pool: downloading azure blob %s/%s to %s", b.ContainerName, b.BlobName, local)
	if err := azblob.DownloadBlobToFile(ctx, blobURL, 0, azblob.CountToEnd, f, azblob.DownloadFromBlobOptions{}); err != nil {
		os.Remove(local)
		return "", fmt.Errorf("pool: downloading azure blob %s/%s: %w", b.ContainerName, b.BlobName, err)
	}
	return local, nil
}

var _ Backend = (*AzureBackend)(nil)
