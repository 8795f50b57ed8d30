package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/atelierhq/atelier-backend/pkg/config"
	"github.com/atelierhq/atelier-backend/pkg/logger"
)

const (
	uploadEndpoint = "https://storage.googleapis.com/upload/storage/v1/b/%s/o?uploadType=media&name=%s"
	objectEndpoint = "https://storage.googleapis.com/storage/v1/b/%s/o/%s"
	publicEndpoint = "https://storage.googleapis.com/%s/%s"
	metadataToken  = "http://metadata.google.internal/computeMetadata/v1/instance/service-accounts/default/token"
)

// BucketStore uploads objects to a GCS bucket using the instance service
// account token.
type BucketStore struct {
	httpClient *http.Client
	bucket     string
	tokens     *tokenSource
}

// NewBucketStore builds a bucket-backed store. The bucket name is required.
func NewBucketStore(cfg config.StorageConfig, logg *logger.Logger) (*BucketStore, error) {
	if strings.TrimSpace(cfg.BucketName) == "" {
		return nil, errors.New("storage bucket name is required")
	}
	httpClient := &http.Client{Timeout: cfg.UploadTimeout}
	return &BucketStore{
		httpClient: httpClient,
		bucket:     cfg.BucketName,
		tokens:     newMetadataTokenSource(httpClient),
	}, nil
}

func (s *BucketStore) Upload(ctx context.Context, key, contentType string, body io.Reader) (*UploadResult, error) {
	token, err := s.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching storage token: %w", err)
	}

	endpoint := fmt.Sprintf(uploadEndpoint, s.bucket, url.QueryEscape(key))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("uploading object: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("bucket upload failed: status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	return &UploadResult{
		Key: key,
		URL: fmt.Sprintf(publicEndpoint, s.bucket, key),
	}, nil
}

func (s *BucketStore) Delete(ctx context.Context, key string) error {
	token, err := s.tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("fetching storage token: %w", err)
	}

	endpoint := fmt.Sprintf(objectEndpoint, s.bucket, url.PathEscape(key))
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("deleting object: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("bucket delete failed: status %d", resp.StatusCode)
	}
	return nil
}

type tokenSource struct {
	httpClient *http.Client

	mu      sync.Mutex
	token   string
	expires time.Time
}

func newMetadataTokenSource(httpClient *http.Client) *tokenSource {
	return &tokenSource{httpClient: httpClient}
}

func (t *tokenSource) Token(ctx context.Context) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.token != "" && time.Now().Before(t.expires.Add(-30*time.Second)) {
		return t.token, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, metadataToken, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Metadata-Flavor", "Google")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("metadata token request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("metadata token request: status %d", resp.StatusCode)
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decoding metadata token: %w", err)
	}
	if payload.AccessToken == "" {
		return "", errors.New("metadata token response missing access_token")
	}

	t.token = payload.AccessToken
	t.expires = time.Now().Add(time.Duration(payload.ExpiresIn) * time.Second)
	return t.token, nil
}
