package weather

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const geoResponse = `[{"lat":31.5204,"lon":74.3587}]`

const currentResponse = `{
	"main": {"temp": 33.6, "humidity": 48},
	"weather": [{"description": "scattered clouds", "icon": "803"}]
}`

const forecastResponse = `{
	"list": [
		{"dt": 1756443600, "dt_txt": "2026-08-29 09:00:00", "main": {"temp": 30.0}, "weather": [{"icon": "800"}]},
		{"dt": 1756454400, "dt_txt": "2026-08-29 12:00:00", "main": {"temp": 34.2}, "weather": [{"icon": "800"}]},
		{"dt": 1756540800, "dt_txt": "2026-08-30 12:00:00", "main": {"temp": 35.1}, "weather": [{"icon": "500"}]},
		{"dt": 1756627200, "dt_txt": "2026-08-31 12:00:00", "main": {"temp": 31.0}, "weather": [{"icon": "211"}]},
		{"dt": 1756638000, "dt_txt": "2026-08-31 15:00:00", "main": {"temp": 29.0}, "weather": [{"icon": "211"}]}
	]
}`

func testServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.Contains(r.URL.Path, "geo"):
			w.Write([]byte(geoResponse))
		case strings.Contains(r.URL.Path, "forecast"):
			w.Write([]byte(forecastResponse))
		default:
			w.Write([]byte(currentResponse))
		}
	}))
}

func TestGetAssemblesReport(t *testing.T) {
	srv := testServer(t)
	defer srv.Close()

	c := NewClient("test-key").WithURLs(srv.URL, srv.URL+"/geo")
	report, err := c.Get(context.Background(), "Lahore")
	if err != nil {
		t.Fatalf("get: %v", err)
	}

	if report.Temp != 34 {
		t.Errorf("temp: got %d, want 34 (rounded)", report.Temp)
	}
	if report.Humidity != 48 {
		t.Errorf("humidity: got %d", report.Humidity)
	}
	if report.Description != "scattered clouds" {
		t.Errorf("description: got %q", report.Description)
	}
	if report.Icon != "☁️" {
		t.Errorf("icon: got %q, want cloud glyph for 803", report.Icon)
	}

	// Only midday entries make the forecast, one per day.
	if len(report.Forecast) != 3 {
		t.Fatalf("forecast days: got %d, want 3", len(report.Forecast))
	}
	if report.Forecast[1].Temp != 35 {
		t.Errorf("second day temp: got %d, want 35", report.Forecast[1].Temp)
	}
	if report.Forecast[2].Icon != "⛈️" {
		t.Errorf("third day icon: got %q, want thunderstorm glyph", report.Forecast[2].Icon)
	}
}

func TestGetUnknownLocation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := NewClient("test-key").WithURLs(srv.URL, srv.URL+"/geo")
	if _, err := c.Get(context.Background(), "Atlantis"); err != ErrLocationNotFound {
		t.Fatalf("got %v, want ErrLocationNotFound", err)
	}
}

func TestIconGlyph(t *testing.T) {
	cases := map[string]string{
		"211": "⛈️",
		"300": "🌦️",
		"500": "🌧️",
		"601": "❄️",
		"741": "🌫️",
		"800": "☀️",
		"803": "☁️",
		"10n": "🌙",
		"10d": "☀️",
		"01d": "☀️",
		"":    "🤷",
		"x99": "🤷",
	}
	for code, want := range cases {
		if got := IconGlyph(code); got != want {
			t.Errorf("IconGlyph(%q): got %q, want %q", code, got, want)
		}
	}
}
