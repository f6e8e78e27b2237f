package agi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"agrilink/weather"
)

const (
	model          = "gemini-2.5-flash"
	requestTimeout = 30 * time.Second
)

// Client calls the Gemini REST API. Without an API key every method falls
// back to a canned localized reply; the assistant degrades, it never breaks
// the page.
type Client struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func NewClient(apiKey string) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: "https://generativelanguage.googleapis.com",
		client:  &http.Client{Timeout: requestTimeout},
	}
}

func (c *Client) WithBaseURL(baseURL string) *Client {
	c.baseURL = strings.TrimRight(baseURL, "/")
	return c
}

func (c *Client) Configured() bool { return c.apiKey != "" }

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type generateRequest struct {
	Contents []struct {
		Parts []part `json:"parts"`
	} `json:"contents"`
	SystemInstruction *struct {
		Parts []part `json:"parts"`
	} `json:"systemInstruction,omitempty"`
	GenerationConfig *struct {
		ResponseMimeType string `json:"responseMimeType,omitempty"`
	} `json:"generationConfig,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []part `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// normalizeLanguage narrows the request language to the two the assistant
// speaks.
func normalizeLanguage(language string) string {
	if language == "ur" {
		return "ur"
	}
	return "en"
}

// ChatResponse answers a free-form assistant prompt. Failures degrade to a
// canned apology in the requested language.
func (c *Client) ChatResponse(ctx context.Context, prompt, language string) string {
	language = normalizeLanguage(language)

	system := "You are an agriculture assistant for Pakistani farmers and buyers. Respond in " + languageName(language) +
		". Provide simple, relevant, and accurate information. Keep your answers concise and to the point, typically 2-4 sentences, " +
		"unless the user asks for more detail. Your tone should be helpful and encouraging. Use simple language."

	if !c.Configured() {
		return unavailableReply(language)
	}

	text, err := c.generate(ctx, system, []part{{Text: prompt}}, false)
	if err != nil {
		log.Printf("assistant chat failed: %v", err)
		return errorReply(language)
	}
	return text
}

// WeatherTip turns a weather report into a short resource-saving tip.
func (c *Client) WeatherTip(ctx context.Context, report *weather.Report, language string) string {
	language = normalizeLanguage(language)

	if !c.Configured() {
		if language == "ur" {
			return "موسم کی تجویز اس وقت دستیاب نہیں ہے۔"
		}
		return "Weather tip is unavailable right now."
	}

	var days []string
	for _, f := range report.Forecast {
		days = append(days, fmt.Sprintf("%s: %d°C", f.Day, f.Temp))
	}
	prompt := fmt.Sprintf(
		"Based on the following weather conditions for a farmer in Pakistan (%s, temperature: %d°C, humidity: %d%%), "+
			"provide a short, actionable tip (2-3 sentences) to help them save resources like water/fertilizer or protect their crops. "+
			"The forecast for the next few days is: %s.",
		report.Description, report.Temp, report.Humidity, strings.Join(days, ", "))

	system := "You are an agriculture expert providing concise, practical advice. Respond in " + languageName(language) + "."

	text, err := c.generate(ctx, system, []part{{Text: prompt}}, false)
	if err != nil {
		log.Printf("weather tip failed: %v", err)
		if language == "ur" {
			return "مشورہ حاصل کرنے میں ایک خرابی پیش آگئی۔"
		}
		return "An error occurred while getting the tip."
	}
	return text
}

type DiseaseInfo struct {
	Description string `json:"description"`
	Solution    string `json:"solution"`
}

// DiseaseDetails expands a diagnosed disease into a farmer-readable
// description and solution set, grounded on the photo that produced the
// diagnosis.
func (c *Client) DiseaseDetails(ctx context.Context, imageBase64, mimeType, diseaseName, language string) DiseaseInfo {
	language = normalizeLanguage(language)

	if !c.Configured() {
		if language == "ur" {
			return DiseaseInfo{
				Description: "یہ ایک فرضی تفصیل ہے۔ بیماری کے بارے میں مزید تفصیلات یہاں ظاہر ہوں گی۔",
				Solution:    "یہ ایک فرضی حل ہے۔ علاج اور روک تھام کے لیے تجاویز یہاں فراہم کی جائیں گی۔",
			}
		}
		return DiseaseInfo{
			Description: "This is a mock description. More details about the disease would appear here.",
			Solution:    "This is a mock solution. Suggestions for treatment and prevention would be provided here.",
		}
	}

	var prompt string
	if language == "ur" {
		prompt = fmt.Sprintf("منسلکہ تصویر اور \"%s\" کی ابتدائی تشخیص کی بنیاد پر، فراہم کریں:\n"+
			"1. تصویر اور آپ کے ماہرانہ علم کی بنیاد پر بیماری کی تفصیلی وضاحت۔\n"+
			"2. حل کا ایک جامع مجموعہ (حیاتیاتی، کیمیائی، احتیاطی) جو کسان کے لیے سمجھنے میں آسان ہو۔", diseaseName)
	} else {
		prompt = fmt.Sprintf("Based on the attached image and the initial diagnosis of %q, provide:\n"+
			"1. A detailed description of the disease, based on the image and your expert knowledge.\n"+
			"2. A comprehensive set of solutions (biological, chemical, preventative) that are easy for a farmer to understand.", diseaseName)
	}

	system := "You are an expert plant pathologist. Your response must be in " + languageName(language) +
		". Provide the output in a JSON object with two keys: \"description\" and \"solution\"."

	parts := []part{
		{InlineData: &inlineData{MimeType: mimeType, Data: imageBase64}},
		{Text: prompt},
	}

	text, err := c.generate(ctx, system, parts, true)
	if err == nil {
		var info DiseaseInfo
		if jsonErr := json.Unmarshal([]byte(strings.TrimSpace(text)), &info); jsonErr == nil && info.Description != "" {
			return info
		}
		err = errors.New("response was not the requested JSON shape")
	}

	log.Printf("disease details failed: %v", err)
	if language == "ur" {
		return DiseaseInfo{
			Description: "تفصیلی معلومات حاصل کرنے میں ایک خرابی پیش آگئی۔",
			Solution:    "براہ کرم بعد میں دوبارہ کوشش کریں۔",
		}
	}
	return DiseaseInfo{
		Description: "An error occurred while fetching detailed information.",
		Solution:    "Please try again later.",
	}
}

func (c *Client) generate(ctx context.Context, system string, parts []part, jsonMode bool) (string, error) {
	var req generateRequest
	req.Contents = append(req.Contents, struct {
		Parts []part `json:"parts"`
	}{Parts: parts})
	if system != "" {
		req.SystemInstruction = &struct {
			Parts []part `json:"parts"`
		}{Parts: []part{{Text: system}}}
	}
	if jsonMode {
		req.GenerationConfig = &struct {
			ResponseMimeType string `json:"responseMimeType,omitempty"`
		}{ResponseMimeType: "application/json"}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", c.baseURL, model, c.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("status %d", resp.StatusCode)
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return "", errors.New("empty response")
	}
	return out.Candidates[0].Content.Parts[0].Text, nil
}

func languageName(language string) string {
	if language == "ur" {
		return "Urdu"
	}
	return "English"
}

func unavailableReply(language string) string {
	if language == "ur" {
		return "معذرت، میں اس وقت دستیاب نہیں ہوں۔ براہ کرم بعد میں دوبارہ کوشش کریں۔"
	}
	return "I am currently unavailable. Please try again later."
}

func errorReply(language string) string {
	if language == "ur" {
		return "ایک خرابی پیش آگئی۔ براہ کرم اپنی API کلید چیک کریں اور دوبارہ کوشش کریں۔"
	}
	return "An error occurred. Please check your API key and try again."
}
