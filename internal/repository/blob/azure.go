package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"potholytics/internal/repository"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
)

// maxBlobSize bounds a single download.
const maxBlobSize = 32 << 20

// AzureStore reads blobs from one Azure Storage container using a SAS token.
type AzureStore struct {
	client    *azblob.Client
	container string
}

// NewAzureStore targets https://{account}.blob.core.windows.net/{container}.
func NewAzureStore(account, container, sasToken string, timeout time.Duration) (*AzureStore, error) {
	if account == "" || container == "" {
		return nil, errors.New("storage account and container are required")
	}
	return NewAzureStoreWithEndpoint(fmt.Sprintf("https://%s.blob.core.windows.net", account), container, sasToken, &http.Client{Timeout: timeout})
}

// NewAzureStoreWithEndpoint points at an explicit service endpoint. The SAS
// token travels as the service URL's query.
func NewAzureStoreWithEndpoint(endpoint, container, sasToken string, client *http.Client) (*AzureStore, error) {
	serviceURL := strings.TrimRight(endpoint, "/") + "/"
	if sas := strings.TrimPrefix(sasToken, "?"); sas != "" {
		serviceURL += "?" + sas
	}

	opts := &azblob.ClientOptions{}
	if client != nil {
		opts.Transport = client
	}
	c, err := azblob.NewClientWithNoCredential(serviceURL, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create blob client: %w", err)
	}
	return &AzureStore{client: c, container: container}, nil
}

// BlobName extracts the blob name from a full blob URL: the last path
// segment with any query string dropped.
func BlobName(ref string) string {
	if u, err := url.Parse(ref); err == nil && u.Path != "" {
		ref = u.Path
	} else if i := strings.IndexByte(ref, '?'); i >= 0 {
		ref = ref[:i]
	}
	return path.Base(strings.TrimRight(ref, "/"))
}

// Fetch downloads the blob referenced by ref.
func (s *AzureStore) Fetch(ctx context.Context, ref string) ([]byte, error) {
	name := BlobName(ref)
	if name == "" || name == "." || name == "/" {
		return nil, fmt.Errorf("invalid blob reference %q", ref)
	}

	resp, err := s.client.DownloadStream(ctx, s.container, name, nil)
	if err != nil {
		var respErr *azcore.ResponseError
		if errors.As(err, &respErr) && respErr.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s", repository.ErrBlobNotFound, name)
		}
		return nil, fmt.Errorf("failed to download blob %s: %w", name, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBlobSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read blob %s: %w", name, err)
	}
	if len(data) > maxBlobSize {
		return nil, fmt.Errorf("blob %s exceeds %d bytes", name, maxBlobSize)
	}
	return data, nil
}
