// Package azure implements the Azure Blob Storage backend. Documents are addressed as
// "<container>/<blob>" and handed to browsers as time-limited SAS URLs, either signed per request
// with the account key or built from a pre-issued SAS token when no key is available.
package azure

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/sas"

	"github.com/qa-dashboard/qa-dashboard/internal/config"
	"github.com/qa-dashboard/qa-dashboard/internal/storage"
)

func init() {
	storage.Register("azure", func(cfg *config.Config) (storage.Storage, error) {
		return New(&cfg.Storage.Azure)
	})
}

// AzureStorage implements the Storage interface for Azure Blob Storage
type AzureStorage struct {
	client     *azblob.Client
	credential *azblob.SharedKeyCredential
	serviceURL string
	sasToken   string
	cdnURL     string
}

// New creates a new Azure Blob Storage backend
func New(cfg *config.AzureStorageConfig) (*AzureStorage, error) {
	if cfg.AccountName == "" {
		return nil, fmt.Errorf("azure storage account name is required")
	}
	if cfg.AccountKey == "" && cfg.SASToken == "" {
		return nil, fmt.Errorf("azure storage account key or sas token is required")
	}

	serviceURL := serviceURLFor(cfg)
	s := &AzureStorage{
		serviceURL: serviceURL,
		sasToken:   strings.TrimPrefix(cfg.SASToken, "?"),
		cdnURL:     strings.TrimRight(cfg.CDNURL, "/"),
	}

	var err error
	if cfg.AccountKey != "" {
		s.credential, err = azblob.NewSharedKeyCredential(cfg.AccountName, cfg.AccountKey)
		if err != nil {
			return nil, fmt.Errorf("failed to create Azure credential: %w", err)
		}
		s.client, err = azblob.NewClientWithSharedKeyCredential(serviceURL+"/", s.credential, nil)
	} else {
		s.client, err = azblob.NewClientWithNoCredential(serviceURL+"/?"+s.sasToken, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure Blob client: %w", err)
	}

	return s, nil
}

// serviceURLFor returns the blob endpoint without a trailing slash. Host overrides the
// default <account>.blob.core.windows.net, e.g. for custom domains or Azurite.
func serviceURLFor(cfg *config.AzureStorageConfig) string {
	host := cfg.Host
	if host == "" {
		host = cfg.AccountName + ".blob.core.windows.net"
	}
	if !strings.Contains(host, "://") {
		host = "https://" + host
	}
	return strings.TrimRight(host, "/")
}

func (s *AzureStorage) blobClient(path string) (container, name string, err error) {
	container, name, ok := storage.SplitContainer(path)
	if !ok {
		return "", "", fmt.Errorf("invalid blob path %q: expected <container>/<blob>", path)
	}
	return container, name, nil
}

// Download retrieves a blob
func (s *AzureStorage) Download(ctx context.Context, path string) (io.ReadCloser, error) {
	container, name, err := s.blobClient(path)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.DownloadStream(ctx, container, name, nil)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, path)
		}
		return nil, fmt.Errorf("failed to download from Azure Blob: %w", err)
	}

	return resp.Body, nil
}

// GetURL returns a browser URL for the blob. The CDN URL wins when configured; otherwise the
// pre-issued SAS token is appended, or a read-only SAS is signed with the account key.
func (s *AzureStorage) GetURL(_ context.Context, path string, ttl time.Duration) (string, error) {
	container, name, err := s.blobClient(path)
	if err != nil {
		return "", err
	}
	escaped := container + "/" + escapeBlobName(name)

	if s.cdnURL != "" {
		return fmt.Sprintf("%s/%s", s.cdnURL, escaped), nil
	}

	blobURL := fmt.Sprintf("%s/%s", s.serviceURL, escaped)

	if s.credential == nil {
		return fmt.Sprintf("%s?%s", blobURL, s.sasToken), nil
	}

	sasPermissions := sas.BlobPermissions{Read: true}
	now := time.Now().UTC()
	sasQueryParams, err := sas.BlobSignatureValues{
		Protocol:      sas.ProtocolHTTPS,
		StartTime:     now.Add(-5 * time.Minute), // clock skew
		ExpiryTime:    now.Add(ttl),
		Permissions:   sasPermissions.String(),
		ContainerName: container,
		BlobName:      name,
	}.SignWithSharedKey(s.credential)
	if err != nil {
		return "", fmt.Errorf("failed to generate SAS token: %w", err)
	}

	return fmt.Sprintf("%s?%s", blobURL, sasQueryParams.Encode()), nil
}

// Exists checks whether the blob exists
func (s *AzureStorage) Exists(ctx context.Context, path string) (bool, error) {
	container, name, err := s.blobClient(path)
	if err != nil {
		return false, err
	}

	blob := s.client.ServiceClient().NewContainerClient(container).NewBlobClient(name)
	if _, err := blob.GetProperties(ctx, nil); err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to get blob properties: %w", err)
	}

	return true, nil
}

func isNotFound(err error) bool {
	var respErr *azcore.ResponseError
	return errors.As(err, &respErr) && respErr.StatusCode == http.StatusNotFound
}

// escapeBlobName escapes each path segment, keeping "/" separators intact
func escapeBlobName(name string) string {
	segments := strings.Split(name, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return strings.Join(segments, "/")
}
