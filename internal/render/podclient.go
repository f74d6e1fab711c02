package render

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// PodOptions controls how the render pod client is configured.
type PodOptions struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
	Logger     *zerolog.Logger
}

// PodClient is a facade over the serverless render pod's synchronous run
// endpoint. When no endpoint is configured it produces deterministic
// synthetic media so local and CI environments stay fully operational,
// mirroring how the rest of the stack treats missing provider credentials.
type PodClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *zerolog.Logger
}

// NewPodClient builds a pod client from options, applying defaults.
func NewPodClient(opts PodOptions) *PodClient {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Minute}
	}
	return &PodClient{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		apiKey:     opts.APIKey,
		httpClient: httpClient,
		logger:     opts.Logger,
	}
}

// Configured reports whether a real pod endpoint is available.
func (c *PodClient) Configured() bool {
	return c != nil && c.baseURL != ""
}

type podRequest struct {
	Input any `json:"input"`
}

type podResponse struct {
	Status string `json:"status"`
	Error  string `json:"error"`
	Output struct {
		VideoBase64 string `json:"video_base64"`
		ThumbBase64 string `json:"thumb_base64"`
	} `json:"output"`
}

// RunSync submits the input and waits for the produced media. The caller's
// context bounds the whole run; minutes-long renders are expected.
func (c *PodClient) RunSync(ctx context.Context, task string, input any) (video, thumb []byte, err error) {
	if !c.Configured() {
		return c.synthetic(task, input)
	}

	body, err := json.Marshal(podRequest{Input: input})
	if err != nil {
		return nil, nil, fmt.Errorf("render: encode pod input: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/runsync", bytes.NewReader(body))
	if err != nil {
		return nil, nil, fmt.Errorf("render: build pod request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("render: pod request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, nil, fmt.Errorf("render: pod returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var out podResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, nil, fmt.Errorf("render: decode pod response: %w", err)
	}
	if out.Error != "" {
		return nil, nil, fmt.Errorf("render: pod error: %s", out.Error)
	}
	video, err = base64.StdEncoding.DecodeString(out.Output.VideoBase64)
	if err != nil {
		return nil, nil, fmt.Errorf("render: decode pod video: %w", err)
	}
	if out.Output.ThumbBase64 != "" {
		thumb, err = base64.StdEncoding.DecodeString(out.Output.ThumbBase64)
		if err != nil {
			return nil, nil, fmt.Errorf("render: decode pod thumb: %w", err)
		}
	}
	return video, thumb, nil
}

// synthetic produces a deterministic stand-in video keyed on the input so
// repeated runs yield the same bytes.
func (c *PodClient) synthetic(task string, input any) ([]byte, []byte, error) {
	if c.logger != nil {
		c.logger.Warn().Str("task", task).Msg("render: pod endpoint missing, generating synthetic media")
	}
	encoded, err := json.Marshal(input)
	if err != nil {
		return nil, nil, fmt.Errorf("render: encode synthetic seed: %w", err)
	}
	sum := sha256.Sum256(append([]byte(task+":"), encoded...))
	var video bytes.Buffer
	// Minimal mp4 "ftyp" box so downstream validators see a video header.
	video.Write([]byte{0x00, 0x00, 0x00, 0x18, 'f', 't', 'y', 'p', 'i', 's', 'o', 'm'})
	for i := 0; i < 64; i++ {
		video.Write(sum[:])
	}
	return video.Bytes(), sum[:16], nil
}
