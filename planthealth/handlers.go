package planthealth

import (
	"encoding/base64"
	"errors"
	"io"
	"net/http"

	"agrilink/utils"

	"github.com/julienschmidt/httprouter"
)

const maxPhotoSize = 10 << 20

type Handler struct {
	client *Client
}

func NewHandler(client *Client) *Handler {
	return &Handler{client: client}
}

// CheckCropHealth accepts a photo upload and returns the health assessment.
func (h *Handler) CheckCropHealth(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if err := r.ParseMultipartForm(maxPhotoSize); err != nil {
		utils.RespondWithJSON(w, http.StatusBadRequest, utils.M{"success": false, "message": "Invalid form"})
		return
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		utils.RespondWithJSON(w, http.StatusBadRequest, utils.M{"success": false, "message": "Image is required"})
		return
	}
	defer file.Close()

	raw, err := io.ReadAll(io.LimitReader(file, maxPhotoSize))
	if err != nil {
		utils.RespondWithJSON(w, http.StatusBadRequest, utils.M{"success": false, "message": "Could not read image"})
		return
	}

	assessment, err := h.client.Assess(r.Context(), base64.StdEncoding.EncodeToString(raw))
	if err != nil {
		switch {
		case errors.Is(err, ErrNotAPlant), errors.Is(err, ErrBadAssessment):
			utils.RespondWithError(w, http.StatusUnprocessableEntity, err.Error())
		case errors.Is(err, ErrNotConfigured):
			utils.RespondWithError(w, http.StatusServiceUnavailable, err.Error())
		default:
			utils.RespondWithError(w, http.StatusBadGateway, "Health assessment failed")
		}
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, utils.M{"success": true, "assessment": assessment})
}
