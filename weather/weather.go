package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const requestTimeout = 10 * time.Second

var ErrLocationNotFound = errors.New("location not found")

// Client talks to OpenWeatherMap. A location string is geocoded first, then
// current conditions and the 5-day forecast are fetched for the coordinates.
type Client struct {
	apiKey  string
	baseURL string
	geoURL  string
	client  *http.Client
}

func NewClient(apiKey string) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: "https://api.openweathermap.org/data/2.5",
		geoURL:  "https://api.openweathermap.org/geo/1.0/direct",
		client:  &http.Client{Timeout: requestTimeout},
	}
}

// WithURLs overrides the API endpoints. Tests point both at a local server.
func (c *Client) WithURLs(baseURL, geoURL string) *Client {
	c.baseURL = strings.TrimRight(baseURL, "/")
	c.geoURL = geoURL
	return c
}

type DayForecast struct {
	Day  string `json:"day"`
	Temp int    `json:"temp"`
	Icon string `json:"icon"`
}

type Report struct {
	Temp        int           `json:"temp"`
	Humidity    int           `json:"humidity"`
	Description string        `json:"description"`
	Icon        string        `json:"icon"`
	Forecast    []DayForecast `json:"forecast"`
}

type owmConditions struct {
	Main struct {
		Temp     float64 `json:"temp"`
		Humidity int     `json:"humidity"`
	} `json:"main"`
	Weather []struct {
		Description string `json:"description"`
		Icon        string `json:"icon"`
	} `json:"weather"`
	Dt    int64  `json:"dt"`
	DtTxt string `json:"dt_txt"`
}

type owmForecast struct {
	List []owmConditions `json:"list"`
}

// Get resolves the location and assembles current conditions plus one midday
// forecast entry per day for up to five days.
func (c *Client) Get(ctx context.Context, location string) (*Report, error) {
	lat, lon, err := c.geocode(ctx, location)
	if err != nil {
		return nil, err
	}

	var current owmConditions
	currentURL := fmt.Sprintf("%s/weather?lat=%f&lon=%f&appid=%s&units=metric", c.baseURL, lat, lon, c.apiKey)
	if err := c.getJSON(ctx, currentURL, &current); err != nil {
		return nil, fmt.Errorf("current weather: %w", err)
	}
	if len(current.Weather) == 0 {
		return nil, errors.New("weather response missing conditions")
	}

	var forecast owmForecast
	forecastURL := fmt.Sprintf("%s/forecast?lat=%f&lon=%f&appid=%s&units=metric", c.baseURL, lat, lon, c.apiKey)
	if err := c.getJSON(ctx, forecastURL, &forecast); err != nil {
		return nil, fmt.Errorf("forecast: %w", err)
	}

	report := &Report{
		Temp:        int(current.Main.Temp + 0.5),
		Humidity:    current.Main.Humidity,
		Description: current.Weather[0].Description,
		Icon:        IconGlyph(current.Weather[0].Icon),
	}

	for _, entry := range forecast.List {
		if !strings.Contains(entry.DtTxt, "12:00:00") || len(entry.Weather) == 0 {
			continue
		}
		report.Forecast = append(report.Forecast, DayForecast{
			Day:  time.Unix(entry.Dt, 0).UTC().Format("Mon"),
			Temp: int(entry.Main.Temp + 0.5),
			Icon: IconGlyph(entry.Weather[0].Icon),
		})
		if len(report.Forecast) == 5 {
			break
		}
	}

	return report, nil
}

func (c *Client) geocode(ctx context.Context, location string) (lat, lon float64, err error) {
	geoURL := fmt.Sprintf("%s?q=%s&limit=1&appid=%s", c.geoURL, url.QueryEscape(location), c.apiKey)

	var places []struct {
		Lat float64 `json:"lat"`
		Lon float64 `json:"lon"`
	}
	if err := c.getJSON(ctx, geoURL, &places); err != nil {
		return 0, 0, fmt.Errorf("geocode: %w", err)
	}
	if len(places) == 0 {
		return 0, 0, ErrLocationNotFound
	}
	return places[0].Lat, places[0].Lon, nil
}

func (c *Client) getJSON(ctx context.Context, rawURL string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// IconGlyph maps an OpenWeatherMap icon code to a display glyph. Codes group
// by their leading digit; 800 alone means clear sky.
func IconGlyph(code string) string {
	if code == "" {
		return "🤷"
	}
	switch code[0] {
	case '2':
		return "⛈️"
	case '3':
		return "🌦️"
	case '5':
		return "🌧️"
	case '6':
		return "❄️"
	case '7':
		return "🌫️"
	case '8':
		if code == "800" {
			return "☀️"
		}
		return "☁️"
	case '0':
		return "☀️"
	case '1':
		if strings.HasSuffix(code, "n") {
			return "🌙"
		}
		return "☀️"
	default:
		return "🤷"
	}
}
