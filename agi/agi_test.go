package agi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestChatFallsBackWithoutKey(t *testing.T) {
	c := NewClient("")

	en := c.ChatResponse(context.Background(), "When should I sow wheat?", "en")
	if en != "I am currently unavailable. Please try again later." {
		t.Errorf("english fallback: got %q", en)
	}

	ur := c.ChatResponse(context.Background(), "When should I sow wheat?", "ur")
	if ur == en || ur == "" {
		t.Errorf("urdu fallback should be localized, got %q", ur)
	}
}

func TestChatUsesAPIResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "gemini-2.5-flash") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("key") != "test-key" {
			t.Errorf("missing api key in query")
		}
		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"Sow wheat in November."}]}}]}`))
	}))
	defer srv.Close()

	c := NewClient("test-key").WithBaseURL(srv.URL)
	got := c.ChatResponse(context.Background(), "When should I sow wheat?", "en")
	if got != "Sow wheat in November." {
		t.Errorf("got %q", got)
	}
}

func TestChatDegradesOnAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient("test-key").WithBaseURL(srv.URL)
	got := c.ChatResponse(context.Background(), "hello", "en")
	if !strings.Contains(got, "error occurred") {
		t.Errorf("want canned error reply, got %q", got)
	}
}

func TestDiseaseDetailsParsesStructuredJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"{\"description\":\"Early blight.\",\"solution\":\"Rotate crops.\"}"}]}}]}`))
	}))
	defer srv.Close()

	c := NewClient("test-key").WithBaseURL(srv.URL)
	info := c.DiseaseDetails(context.Background(), "aW1n", "image/jpeg", "Early blight", "en")
	if info.Description != "Early blight." || info.Solution != "Rotate crops." {
		t.Errorf("got %+v", info)
	}
}

func TestDiseaseDetailsFallsBackWithoutKey(t *testing.T) {
	c := NewClient("")
	info := c.DiseaseDetails(context.Background(), "aW1n", "image/jpeg", "Early blight", "en")
	if info.Description == "" || info.Solution == "" {
		t.Errorf("fallback must fill both fields, got %+v", info)
	}
}
