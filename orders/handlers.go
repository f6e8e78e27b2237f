package orders

import (
	"encoding/json"
	"errors"
	"net/http"

	"agrilink/middleware"
	"agrilink/models"
	"agrilink/utils"

	"github.com/julienschmidt/httprouter"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrOrderNotFound), errors.Is(err, ErrCropNotFound):
		utils.RespondWithError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrPreconditionFailed):
		utils.RespondWithError(w, http.StatusConflict, err.Error())
	case errors.Is(err, ErrInsufficientStock):
		utils.RespondWithError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, ErrForbidden):
		utils.RespondWithError(w, http.StatusForbidden, err.Error())
	default:
		utils.RespondWithError(w, http.StatusInternalServerError, "Operation failed")
	}
}

// POST /api/orders
func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	buyerID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Invalid user", http.StatusUnauthorized)
		return
	}

	var input struct {
		CropID   string `json:"cropId"`
		FarmerID string `json:"farmerId,omitempty"`
		Quantity int    `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil || input.CropID == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid input")
		return
	}
	if input.Quantity <= 0 {
		utils.RespondWithError(w, http.StatusBadRequest, "Quantity must be positive")
		return
	}

	order, err := h.svc.Place(r.Context(), buyerID, input.FarmerID, input.CropID, input.Quantity)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	utils.RespondWithJSON(w, http.StatusCreated, utils.M{"success": true, "order": order})
}

// POST /api/orders/:id/accept
func (h *Handler) AcceptOrder(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	h.updateStatus(w, r, ps.ByName("id"), models.OrderAccepted)
}

// POST /api/orders/:id/reject
func (h *Handler) RejectOrder(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	h.updateStatus(w, r, ps.ByName("id"), models.OrderRejected)
}

func (h *Handler) updateStatus(w http.ResponseWriter, r *http.Request, orderID string, to models.OrderStatus) {
	farmerID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Invalid user", http.StatusUnauthorized)
		return
	}

	if err := h.svc.UpdateStatus(r.Context(), farmerID, orderID, to); err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, utils.M{"success": true, "status": to})
}

// POST /api/orders/:id/complete
func (h *Handler) CompleteOrder(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	callerID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Invalid user", http.StatusUnauthorized)
		return
	}

	if err := h.svc.Complete(r.Context(), callerID, ps.ByName("id")); err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, utils.M{"success": true, "status": models.OrderCompleted})
}

// GET /api/orders
func (h *Handler) GetMyOrders(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Invalid user", http.StatusUnauthorized)
		return
	}
	role, _ := middleware.RoleFromContext(r.Context())

	orders, err := h.svc.ListForUser(r.Context(), userID, role)
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to fetch orders")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, utils.M{"success": true, "orders": orders})
}
