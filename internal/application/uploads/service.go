package uploads

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"regexp"
	"strings"
	"time"
)

// StorageClient signs uploads into object storage.
type StorageClient interface {
	CreateSignedUploadURL(ctx context.Context, bucket, objectPath string) (string, error)
}

// ErrStorageNotConfigured is returned when SUPABASE_URL or SUPABASE_SECRET_KEY is missing.
var ErrStorageNotConfigured = errors.New("document storage is not configured")

// SupabaseClient is a StorageClient backed by the Supabase storage HTTP API.
type SupabaseClient struct {
	BaseURL   string
	SecretKey string // service_role key
	ExpiresIn time.Duration
	Client    *http.Client
}

// signResponse covers the field names different storage versions return.
type signResponse struct {
	SignedURL      string `json:"signedUrl"`
	SignedURLSnake string `json:"signed_url"`
	URL            string `json:"url"`
}

func (c *SupabaseClient) httpClient() *http.Client {
	if c.Client != nil {
		return c.Client
	}
	return &http.Client{Timeout: 10 * time.Second}
}

func (c *SupabaseClient) CreateSignedUploadURL(ctx context.Context, bucket, objectPath string) (string, error) {
	if c.BaseURL == "" || c.SecretKey == "" {
		return "", ErrStorageNotConfigured
	}
	expires := c.ExpiresIn
	if expires <= 0 {
		expires = time.Hour
	}
	base := strings.TrimRight(c.BaseURL, "/")
	endpoint := fmt.Sprintf("%s/storage/v1/object/upload/sign/%s/%s", base, bucket, objectPath)

	payload, err := json.Marshal(map[string]interface{}{
		"expiresIn": int(expires.Seconds()),
		"upsert":    false,
	})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("apikey", c.SecretKey)
	req.Header.Set("Authorization", "Bearer "+c.SecretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return "", fmt.Errorf("storage sign request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("storage sign read: %w", err)
	}
	if resp.StatusCode/100 != 2 {
		return "", fmt.Errorf("storage sign: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	var sr signResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return "", fmt.Errorf("storage sign decode: %w", err)
	}
	return resolveSignedURL(base, sr)
}

// resolveSignedURL prefers an absolute URL and expands a relative one under
// <base>/storage/v1.
func resolveSignedURL(base string, sr signResponse) (string, error) {
	for _, u := range []string{sr.SignedURL, sr.SignedURLSnake} {
		if u != "" {
			return u, nil
		}
	}
	if sr.URL == "" {
		return "", errors.New("storage sign: no signed URL in response")
	}
	rel := "/" + strings.TrimPrefix(strings.TrimPrefix(sr.URL, "/"), "storage/v1/")
	return base + "/storage/v1" + rel, nil
}

var (
	ErrFileName     = errors.New("file_name must be a .pdf, .png, .jpg or .jpeg file")
	allowedExt      = map[string]bool{".pdf": true, ".png": true, ".jpg": true, ".jpeg": true}
	unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)
)

// Service signs uploads of supporting documents for pending credits. The
// returned Path is what clients send back as document_path.
type Service struct {
	Client StorageClient
	Bucket string
	Now    func() time.Time
}

type UploadResult struct {
	UploadURL string `json:"uploadUrl"`
	Bucket    string `json:"bucket"`
	Path      string `json:"path"`
}

// CreditDocumentURL signs an upload to <student>/<unix-ms>-<file>.
func (s *Service) CreditDocumentURL(ctx context.Context, studentID, fileName string) (*UploadResult, error) {
	name := unsafeNameChars.ReplaceAllString(path.Base(strings.TrimSpace(fileName)), "_")
	if !allowedExt[strings.ToLower(path.Ext(name))] {
		return nil, ErrFileName
	}
	now := time.Now()
	if s.Now != nil {
		now = s.Now()
	}
	student := unsafeNameChars.ReplaceAllString(studentID, "_")
	objectPath := fmt.Sprintf("%s/%d-%s", student, now.UnixMilli(), name)

	signed, err := s.Client.CreateSignedUploadURL(ctx, s.Bucket, objectPath)
	if err != nil {
		return nil, err
	}
	return &UploadResult{UploadURL: signed, Bucket: s.Bucket, Path: objectPath}, nil
}
