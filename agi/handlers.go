package agi

import (
	"encoding/json"
	"net/http"

	"agrilink/utils"
	"agrilink/weather"

	"github.com/julienschmidt/httprouter"
)

type Handler struct {
	client  *Client
	weather *weather.Client
}

func NewHandler(client *Client, weatherClient *weather.Client) *Handler {
	return &Handler{client: client, weather: weatherClient}
}

// Chat answers an assistant prompt in the requested language.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var input struct {
		Prompt   string `json:"prompt"`
		Language string `json:"language"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil || input.Prompt == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "Prompt is required")
		return
	}

	reply := h.client.ChatResponse(r.Context(), input.Prompt, input.Language)
	utils.RespondWithJSON(w, http.StatusOK, utils.M{"success": true, "reply": reply})
}

// WeatherTip fetches the weather for a location and asks the assistant for a
// short actionable tip based on it.
func (h *Handler) WeatherTip(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	location := r.URL.Query().Get("location")
	if location == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "location is required")
		return
	}
	language := r.URL.Query().Get("lang")

	report, err := h.weather.Get(r.Context(), location)
	if err != nil {
		utils.RespondWithError(w, http.StatusBadGateway, "Weather service unavailable")
		return
	}

	tip := h.client.WeatherTip(r.Context(), report, language)
	utils.RespondWithJSON(w, http.StatusOK, utils.M{"success": true, "tip": tip, "weather": report})
}

// DiseaseDetails expands a plant-health diagnosis into a description and
// solution set in the requested language.
func (h *Handler) DiseaseDetails(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var input struct {
		Image       string `json:"image"`
		MimeType    string `json:"mimeType"`
		DiseaseName string `json:"diseaseName"`
		Language    string `json:"language"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil || input.Image == "" || input.DiseaseName == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "Image and disease name are required")
		return
	}
	if input.MimeType == "" {
		input.MimeType = "image/jpeg"
	}

	info := h.client.DiseaseDetails(r.Context(), input.Image, input.MimeType, input.DiseaseName, input.Language)
	utils.RespondWithJSON(w, http.StatusOK, utils.M{"success": true, "info": info})
}
