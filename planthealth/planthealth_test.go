package planthealth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

const healthyResponse = `{
	"result": {
		"is_plant": {"binary": true},
		"is_healthy": {"binary": true},
		"disease": {"suggestions": []}
	}
}`

const diseasedResponse = `{
	"result": {
		"is_plant": {"binary": true},
		"is_healthy": {"binary": false},
		"disease": {
			"suggestions": [
				{
					"id": "d1",
					"name": "Early blight",
					"probability": 0.91,
					"details": {
						"description": "Fungal disease of tomato and potato.",
						"treatment": {
							"chemical": ["copper fungicide"],
							"prevention": ["crop rotation"]
						}
					}
				},
				{"id": "d2", "name": "Leaf spot", "probability": 0.12}
			]
		}
	}
}`

func testClient(t *testing.T, handler http.HandlerFunc) (*Client, func()) {
	t.Helper()
	srv := httptest.NewServer(handler)
	return NewClient("test-key").WithAPIURL(srv.URL), srv.Close
}

func TestAssessDiseasedPlant(t *testing.T) {
	c, done := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Api-Key") != "test-key" {
			t.Error("missing Api-Key header")
		}
		w.Write([]byte(diseasedResponse))
	})
	defer done()

	assessment, err := c.Assess(context.Background(), "aW1n")
	if err != nil {
		t.Fatalf("assess: %v", err)
	}
	if assessment.IsHealthy {
		t.Error("want unhealthy")
	}
	if len(assessment.DiseaseSuggestions) != 2 {
		t.Fatalf("suggestions: got %d, want 2", len(assessment.DiseaseSuggestions))
	}

	top := assessment.DiseaseSuggestions[0]
	if top.Name != "Early blight" || top.Probability != 0.91 {
		t.Errorf("top suggestion: %+v", top)
	}
	if top.Details.Treatment == nil || len(top.Details.Treatment.Chemical) != 1 {
		t.Errorf("treatment not decoded: %+v", top.Details.Treatment)
	}

	// A suggestion without details still gets a placeholder description.
	if assessment.DiseaseSuggestions[1].Details.Description == "" {
		t.Error("missing placeholder description")
	}
}

func TestAssessHealthyPlant(t *testing.T) {
	c, done := testClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(healthyResponse))
	})
	defer done()

	assessment, err := c.Assess(context.Background(), "aW1n")
	if err != nil {
		t.Fatalf("assess: %v", err)
	}
	if !assessment.IsHealthy {
		t.Error("want healthy")
	}
	if len(assessment.DiseaseSuggestions) != 0 {
		t.Errorf("suggestions: got %d, want 0", len(assessment.DiseaseSuggestions))
	}
}

func TestAssessNotAPlant(t *testing.T) {
	c, done := testClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"result": {"is_plant": {"binary": false}}}`))
	})
	defer done()

	if _, err := c.Assess(context.Background(), "aW1n"); !errors.Is(err, ErrNotAPlant) {
		t.Fatalf("got %v, want ErrNotAPlant", err)
	}
}

func TestAssessMissingHealthShape(t *testing.T) {
	c, done := testClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"result": {"is_plant": {"binary": true}}}`))
	})
	defer done()

	if _, err := c.Assess(context.Background(), "aW1n"); !errors.Is(err, ErrBadAssessment) {
		t.Fatalf("got %v, want ErrBadAssessment", err)
	}
}

func TestAssessSurfacesAPIMessage(t *testing.T) {
	c, done := testClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message": "invalid api key"}`))
	})
	defer done()

	_, err := c.Assess(context.Background(), "aW1n")
	if err == nil || err.Error() != "plant health service: invalid api key" {
		t.Fatalf("got %v", err)
	}
}

func TestAssessUnconfigured(t *testing.T) {
	c := NewClient("")
	if _, err := c.Assess(context.Background(), "aW1n"); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("got %v, want ErrNotConfigured", err)
	}
}
