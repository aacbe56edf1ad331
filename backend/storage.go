package backend

import (
	"context"
	"io"
	"net/http"

	"github.com/pkg/errors"
)

// StorageClient uploads and downloads binary objects (avatars, catalog
// images) and resolves their public URLs.
type StorageClient struct {
	client *Client
}

// Upload stores an object and returns its public URL.
func (s *StorageClient) Upload(ctx context.Context, accessToken, bucket, objectPath, contentType string, body io.Reader) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.client.baseURL+"/storage/v1/object/"+bucket+"/"+objectPath, body)
	if err != nil {
		return "", errors.Wrap(err, "[StorageClient.Upload] build request")
	}
	req.Header.Set("Content-Type", contentType)
	s.client.setAuthHeaders(req, accessToken)

	resp, err := s.client.httpClient.Do(req)
	if err != nil {
		return "", errors.Wrap(classifyTransportErr(err), "[StorageClient.Upload]")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", errors.Wrap(statusError(resp), "[StorageClient.Upload]")
	}
	return s.PublicURL(bucket, objectPath), nil
}

// Download streams an object. The caller must close the returned reader.
func (s *StorageClient) Download(ctx context.Context, accessToken, bucket, objectPath string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.client.baseURL+"/storage/v1/object/"+bucket+"/"+objectPath, nil)
	if err != nil {
		return nil, errors.Wrap(err, "[StorageClient.Download] build request")
	}
	s.client.setAuthHeaders(req, accessToken)

	resp, err := s.client.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(classifyTransportErr(err), "[StorageClient.Download]")
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		return nil, errors.Wrap(statusError(resp), "[StorageClient.Download]")
	}
	return resp.Body, nil
}

// PublicURL returns the URL a browser can fetch the object from directly.
func (s *StorageClient) PublicURL(bucket, objectPath string) string {
	return s.client.baseURL + "/storage/v1/object/public/" + bucket + "/" + objectPath
}
