package convert

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
)

// RemoteConverter calls an external conversion engine (Gotenberg-style) over
// HTTP. One instance serves one engine route; the registry maps format pairs
// onto routes.
type RemoteConverter struct {
	baseURL  string
	route    string
	fileName string
	client   *http.Client
}

// NewRemoteConverter creates a converter posting to baseURL+route. fileName
// is the form file name the engine expects for the input.
func NewRemoteConverter(baseURL, route, fileName string, client *http.Client) *RemoteConverter {
	if client == nil {
		client = &http.Client{
			Timeout: 0, // Use context timeout instead
		}
	}
	return &RemoteConverter{
		baseURL:  baseURL,
		route:    route,
		fileName: fileName,
		client:   client,
	}
}

// Convert posts the input as a multipart form and returns the engine's
// response body.
func (r *RemoteConverter) Convert(ctx context.Context, input []byte, opts Options) ([]byte, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("files", r.fileName)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}

	if _, err := part.Write(input); err != nil {
		return nil, fmt.Errorf("failed to write form file: %w", err)
	}

	for key, value := range opts {
		if err := writer.WriteField(key, value); err != nil {
			return nil, fmt.Errorf("failed to write form field %s: %w", key, err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close writer: %w", err)
	}

	url := r.baseURL + r.route
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("conversion engine request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("conversion engine returned status %d: %s", resp.StatusCode, string(respBody))
	}

	output, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read converted output: %w", err)
	}

	return output, nil
}
