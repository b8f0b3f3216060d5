package publisher

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/sas"
	"github.com/praetorian-inc/securelink/pkg/config"
)

// AzureSAS publishes resources as read-only blob SAS URLs.
type AzureSAS struct {
	cred        *azblob.SharedKeyCredential
	serviceURL  string
	container   string
	stripPrefix string
	expires     time.Duration
	now         func() time.Time
}

// NewAzure builds a SAS publisher from configuration. The service URL
// defaults to https://{account}.blob.core.windows.net.
func NewAzure(cfg config.AzureConfig, expires time.Duration) (*AzureSAS, error) {
	if cfg.AccountName == "" || cfg.AccountKey == "" || cfg.Container == "" {
		return nil, errors.New("azure: account_name, account_key and container are required")
	}

	cred, err := azblob.NewSharedKeyCredential(cfg.AccountName, cfg.AccountKey)
	if err != nil {
		return nil, fmt.Errorf("azure: %w", err)
	}

	serviceURL := cfg.ServiceURL
	if serviceURL == "" {
		serviceURL = fmt.Sprintf("https://%s.blob.core.windows.net", cfg.AccountName)
	}
	if expires <= 0 {
		expires = DefaultTimeout
	}

	return &AzureSAS{
		cred:        cred,
		serviceURL:  strings.TrimRight(serviceURL, "/"),
		container:   cfg.Container,
		stripPrefix: cfg.StripPrefix,
		expires:     expires,
		now:         time.Now,
	}, nil
}

// Name implements Backend.
func (a *AzureSAS) Name() string { return "azure" }

// Publish signs a read SAS for the blob behind resource.
func (a *AzureSAS) Publish(_ context.Context, resource string) (string, error) {
	blob, err := objectKey(resource, a.stripPrefix)
	if err != nil {
		return "", err
	}

	protocol := sas.ProtocolHTTPS
	if strings.HasPrefix(a.serviceURL, "http://") {
		protocol = sas.ProtocolHTTPSandHTTP
	}

	now := a.now().UTC()
	qp, err := sas.BlobSignatureValues{
		Protocol:      protocol,
		StartTime:     now.Add(-5 * time.Minute),
		ExpiryTime:    now.Add(a.expires),
		Permissions:   (&sas.BlobPermissions{Read: true}).String(),
		ContainerName: a.container,
		BlobName:      blob,
	}.SignWithSharedKey(a.cred)
	if err != nil {
		return "", fmt.Errorf("azure: signing %s: %w", blob, err)
	}

	return fmt.Sprintf("%s/%s/%s?%s", a.serviceURL, url.PathEscape(a.container), escapeBlob(blob), qp.Encode()), nil
}

func escapeBlob(blob string) string {
	parts := strings.Split(blob, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
