package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const azureAnalyzePath = "/vision/v3.2/analyze"

// AzureClient talks to the Azure Computer Vision "analyze" REST endpoint.
type AzureClient struct {
	endpoint   string
	key        string
	httpClient *http.Client
}

func NewAzureClient(endpoint, key string, timeout time.Duration) *AzureClient {
	return &AzureClient{
		endpoint: strings.TrimRight(endpoint, "/"),
		key:      key,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type azureTag struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
}

type azureObject struct {
	Object     string  `json:"object"`
	Confidence float64 `json:"confidence"`
}

type azureAnalysis struct {
	Tags    []azureTag    `json:"tags"`
	Objects []azureObject `json:"objects"`
}

type azureError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Analyze posts the raw image and returns the detected tags and objects.
func (c *AzureClient) Analyze(ctx context.Context, image []byte, features ...Feature) (*Detection, error) {
	names := make([]string, 0, len(features))
	for _, f := range features {
		names = append(names, string(f))
	}
	u := c.endpoint + azureAnalyzePath + "?" + url.Values{"visualFeatures": {strings.Join(names, ",")}}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(image))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("Ocp-Apim-Subscription-Key", c.key)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr azureError
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error.Code != "" {
			return nil, fmt.Errorf("vision API returned status %d: %s: %s", resp.StatusCode, apiErr.Error.Code, apiErr.Error.Message)
		}
		return nil, fmt.Errorf("vision API returned status %d: %s", resp.StatusCode, string(body))
	}

	var analysis azureAnalysis
	if err := json.Unmarshal(body, &analysis); err != nil {
		return nil, fmt.Errorf("failed to decode vision response: %w", err)
	}

	d := &Detection{
		Tags:    make([]Label, 0, len(analysis.Tags)),
		Objects: make([]Label, 0, len(analysis.Objects)),
	}
	for _, t := range analysis.Tags {
		d.Tags = append(d.Tags, Label{Name: t.Name, Confidence: t.Confidence})
	}
	for _, o := range analysis.Objects {
		d.Objects = append(d.Objects, Label{Name: o.Object, Confidence: o.Confidence})
	}
	return d, nil
}
