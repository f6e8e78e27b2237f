package weather

import (
	"errors"
	"net/http"

	"agrilink/utils"

	"github.com/julienschmidt/httprouter"
)

type Handler struct {
	client *Client
}

func NewHandler(client *Client) *Handler {
	return &Handler{client: client}
}

// GetWeather serves current conditions and the short forecast for a free-form
// location string. Upstream failures are passed through as errors; the
// dashboard decides how to degrade.
func (h *Handler) GetWeather(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	location := r.URL.Query().Get("location")
	if location == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "location is required")
		return
	}

	report, err := h.client.Get(r.Context(), location)
	if err != nil {
		if errors.Is(err, ErrLocationNotFound) {
			utils.RespondWithError(w, http.StatusNotFound, "Location not found")
			return
		}
		utils.RespondWithError(w, http.StatusBadGateway, "Weather service unavailable")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, utils.M{"success": true, "weather": report})
}
