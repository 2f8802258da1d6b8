package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/antigravity-tools/agproxy/internal/config"
	"github.com/antigravity-tools/agproxy/internal/util"
	"github.com/klauspost/compress/gzip"
)

// defaultUpstreamBase is the Gemini-class backend all traffic lands on.
const defaultUpstreamBase = "https://generativelanguage.googleapis.com"

// zaiBase is the secondary backend endpoint.
const zaiBase = "https://api.z.ai/api/paas/v4"

// upstreamClient issues generateContent calls against the target backend.
type upstreamClient struct {
	httpClient *http.Client
	baseURL    string
}

func newUpstreamClient(timeout time.Duration, proxyCfg config.UpstreamProxyConfig, baseURL string) *upstreamClient {
	if baseURL == "" {
		baseURL = defaultUpstreamBase
	}
	client := &http.Client{Timeout: timeout}
	client = util.SetProxy(&proxyCfg, client)
	return &upstreamClient{httpClient: client, baseURL: baseURL}
}

// generateContent posts a Gemini-format request body for the given model.
// bearer authenticates pooled accounts; apiKey authenticates key-based
// dispatch. The response body is returned decoded regardless of upstream
// content encoding.
func (u *upstreamClient) generateContent(ctx context.Context, model, bearer, apiKey string, body []byte) (int, []byte, error) {
	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", u.baseURL, model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create upstream request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept-Encoding", "gzip, br")
	req.Header.Set("User-Agent", "agproxy/1.0")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	if apiKey != "" {
		req.Header.Set("x-goog-api-key", apiKey)
	}

	resp, err := u.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("upstream request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := decodeBody(resp)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to read upstream response: %w", err)
	}
	return resp.StatusCode, respBody, nil
}

// decodeBody reads the response body, reversing gzip or brotli encoding.
// Accept-Encoding is set manually, so the transport does not decode for us.
func decodeBody(resp *http.Response) ([]byte, error) {
	var reader io.Reader = resp.Body
	switch resp.Header.Get("Content-Encoding") {
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, err
		}
		defer func() {
			_ = gz.Close()
		}()
		reader = gz
	case "br":
		reader = brotli.NewReader(resp.Body)
	}
	return io.ReadAll(reader)
}
