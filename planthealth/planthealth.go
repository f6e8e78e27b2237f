package planthealth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const requestTimeout = 30 * time.Second

var (
	ErrNotConfigured = errors.New("plant health service is not configured")
	ErrNotAPlant     = errors.New("the uploaded image could not be identified as a plant")
	ErrBadAssessment = errors.New("the service did not return a valid health assessment")
)

// Client calls the Plant.id health assessment API. Unlike the assistant this
// collaborator fails loudly: a diagnosis the caller cannot trust is worse
// than no diagnosis.
type Client struct {
	apiKey string
	apiURL string
	client *http.Client
}

func NewClient(apiKey string) *Client {
	return &Client{
		apiKey: apiKey,
		apiURL: "https://plant.id/api/v3/health_assessment",
		client: &http.Client{Timeout: requestTimeout},
	}
}

func (c *Client) WithAPIURL(apiURL string) *Client {
	c.apiURL = apiURL
	return c
}

type Treatment struct {
	Biological []string `json:"biological,omitempty"`
	Chemical   []string `json:"chemical,omitempty"`
	Prevention []string `json:"prevention,omitempty"`
}

type SuggestionDetails struct {
	Description string     `json:"description"`
	Treatment   *Treatment `json:"treatment,omitempty"`
}

type DiseaseSuggestion struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Probability float64           `json:"probability"`
	Details     SuggestionDetails `json:"details"`
}

type Assessment struct {
	IsHealthy          bool                `json:"is_healthy"`
	DiseaseSuggestions []DiseaseSuggestion `json:"disease_suggestions"`
}

type apiResponse struct {
	Result struct {
		IsPlant *struct {
			Binary bool `json:"binary"`
		} `json:"is_plant"`
		IsHealthy *struct {
			Binary bool `json:"binary"`
		} `json:"is_healthy"`
		Disease *struct {
			Suggestions []struct {
				ID          string  `json:"id"`
				Name        string  `json:"name"`
				Probability float64 `json:"probability"`
				Details     *struct {
					Description string     `json:"description"`
					Treatment   *Treatment `json:"treatment"`
				} `json:"details"`
			} `json:"suggestions"`
		} `json:"disease"`
	} `json:"result"`
}

// Assess submits a base64 photo for a health assessment.
func (c *Client) Assess(ctx context.Context, imageBase64 string) (*Assessment, error) {
	if c.apiKey == "" {
		return nil, ErrNotConfigured
	}

	body, err := json.Marshal(map[string]interface{}{
		"images": []string{imageBase64},
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Api-Key", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("plant health service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apiError(resp)
	}

	var out apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("plant health response: %w", err)
	}

	result := out.Result
	if result.IsPlant == nil || !result.IsPlant.Binary {
		return nil, ErrNotAPlant
	}
	if result.IsHealthy == nil || result.Disease == nil {
		return nil, ErrBadAssessment
	}

	assessment := &Assessment{
		IsHealthy:          result.IsHealthy.Binary,
		DiseaseSuggestions: []DiseaseSuggestion{},
	}
	for _, s := range result.Disease.Suggestions {
		suggestion := DiseaseSuggestion{
			ID:          s.ID,
			Name:        s.Name,
			Probability: s.Probability,
			Details:     SuggestionDetails{Description: "No details available."},
		}
		if s.Details != nil {
			suggestion.Details.Description = s.Details.Description
			if suggestion.Details.Description == "" {
				suggestion.Details.Description = "No description available."
			}
			suggestion.Details.Treatment = s.Details.Treatment
		}
		assessment.DiseaseSuggestions = append(assessment.DiseaseSuggestions, suggestion)
	}

	return assessment, nil
}

// apiError extracts the service's message field when the body is JSON and
// falls back to the raw text.
func apiError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))

	var shaped struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(raw, &shaped); err == nil {
		if shaped.Message != "" {
			return fmt.Errorf("plant health service: %s", shaped.Message)
		}
		if shaped.Error != "" {
			return fmt.Errorf("plant health service: %s", shaped.Error)
		}
	}
	return fmt.Errorf("plant health service returned %d: %s", resp.StatusCode, raw)
}
