package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"instacap/internal/domain"
)

// Analysis is the loosely-typed bag of signals extracted from one image.
// Consumers treat it as hints for prompt building, nothing more.
type Analysis struct {
	Labels      []string `json:"labels"`
	Landmarks   []string `json:"landmarks"`
	WebEntities []string `json:"webEntities,omitempty"`
	Text        string   `json:"text,omitempty"`
	FaceCount   int      `json:"faceCount"`
}

// Summary renders the analysis as a short comma-separated hint line. Web
// entities repeating a label are skipped.
func (a Analysis) Summary() string {
	parts := append([]string{}, a.Labels...)
	parts = append(parts, a.Landmarks...)
	seen := make(map[string]struct{}, len(parts))
	for _, p := range parts {
		seen[strings.ToLower(p)] = struct{}{}
	}
	for _, e := range a.WebEntities {
		if _, ok := seen[strings.ToLower(e)]; !ok {
			parts = append(parts, e)
		}
	}
	return strings.Join(parts, ", ")
}

const defaultTimeout = 20 * time.Second

// Options configures the Google Vision client.
type Options struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
	Logger     zerolog.Logger
}

// Client calls the Google Vision images:annotate REST endpoint.
type Client struct {
	apiKey  string
	baseURL string
	client  *http.Client
	logger  zerolog.Logger
}

func NewClient(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("vision api key is required")
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://vision.googleapis.com/v1"
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{
		apiKey:  strings.TrimSpace(opts.APIKey),
		baseURL: baseURL,
		client:  client,
		logger:  opts.Logger,
	}, nil
}

type annotateRequest struct {
	Requests []annotateEntry `json:"requests"`
}

type annotateEntry struct {
	Image    annotateImage `json:"image"`
	Features []feature     `json:"features"`
}

type annotateImage struct {
	Content string `json:"content"`
}

type feature struct {
	Type       string `json:"type"`
	MaxResults int    `json:"maxResults,omitempty"`
}

type annotateResponse struct {
	Responses []struct {
		LabelAnnotations []struct {
			Description string  `json:"description"`
			Score       float64 `json:"score"`
		} `json:"labelAnnotations"`
		LandmarkAnnotations []struct {
			Description string `json:"description"`
		} `json:"landmarkAnnotations"`
		TextAnnotations []struct {
			Description string `json:"description"`
		} `json:"textAnnotations"`
		FaceAnnotations []json.RawMessage `json:"faceAnnotations"`
		WebDetection    *struct {
			WebEntities []struct {
				Description string  `json:"description"`
				Score       float64 `json:"score"`
			} `json:"webEntities"`
		} `json:"webDetection"`
		Error           *struct {
			Message string `json:"message"`
		} `json:"error"`
	} `json:"responses"`
}

// Annotate sends the image for label, landmark, text and face detection.
func (c *Client) Annotate(ctx context.Context, image []byte) (*Analysis, error) {
	if len(image) == 0 {
		return nil, domain.ErrNoImage
	}

	req := annotateRequest{Requests: []annotateEntry{{
		Image: annotateImage{Content: base64.StdEncoding.EncodeToString(image)},
		Features: []feature{
			{Type: "LABEL_DETECTION", MaxResults: 10},
			{Type: "LANDMARK_DETECTION", MaxResults: 5},
			{Type: "TEXT_DETECTION", MaxResults: 1},
			{Type: "FACE_DETECTION", MaxResults: 5},
			{Type: "WEB_DETECTION", MaxResults: 5},
		},
	}}}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(req); err != nil {
		return nil, fmt.Errorf("encode annotate request: %w", err)
	}
	endpoint := fmt.Sprintf("%s/images:annotate?key=%s", c.baseURL, c.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("build annotate request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: vision request: %v", domain.ErrProviderFailure, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: vision status %d", domain.ErrProviderFailure, resp.StatusCode)
	}

	var out annotateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decode vision response: %v", domain.ErrMalformedResponse, err)
	}
	if len(out.Responses) == 0 {
		return nil, fmt.Errorf("%w: empty vision response", domain.ErrMalformedResponse)
	}
	r := out.Responses[0]
	if r.Error != nil {
		return nil, fmt.Errorf("%w: vision: %s", domain.ErrProviderFailure, r.Error.Message)
	}

	analysis := &Analysis{FaceCount: len(r.FaceAnnotations)}
	for _, label := range r.LabelAnnotations {
		if label.Score >= 0.5 && label.Description != "" {
			analysis.Labels = append(analysis.Labels, label.Description)
		}
	}
	for _, lm := range r.LandmarkAnnotations {
		if lm.Description != "" {
			analysis.Landmarks = append(analysis.Landmarks, lm.Description)
		}
	}
	if len(r.TextAnnotations) > 0 {
		analysis.Text = strings.TrimSpace(r.TextAnnotations[0].Description)
	}
	if r.WebDetection != nil {
		for _, e := range r.WebDetection.WebEntities {
			if e.Score >= 0.5 && e.Description != "" {
				analysis.WebEntities = append(analysis.WebEntities, e.Description)
			}
		}
	}
	c.logger.Debug().Int("labels", len(analysis.Labels)).Int("faces", analysis.FaceCount).Msg("image annotated")
	return analysis, nil
}
