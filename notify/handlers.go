package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"agrilink/db"
	"agrilink/middleware"
	"agrilink/models"
	"agrilink/utils"

	"github.com/julienschmidt/httprouter"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Handler struct {
	Store *db.Store
}

func NewHandler(store *db.Store) *Handler {
	return &Handler{Store: store}
}

// GET /api/notifications?limit=N
func (h *Handler) List(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Invalid user", http.StatusUnauthorized)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	opts := options.Find().SetSort(bson.M{"createdAt": -1})
	if limit := utils.ParseInt(r.URL.Query().Get("limit")); limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cursor, err := h.Store.Notifications.Find(ctx, bson.M{"userId": userID}, opts)
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to fetch notifications")
		return
	}
	defer cursor.Close(ctx)

	notifications := []models.Notification{}
	if err := cursor.All(ctx, &notifications); err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to decode notifications")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, utils.M{"success": true, "notifications": notifications})
}

// POST /api/notifications/read  {"ids": [...]}
// Only the recipient can flip the read flag; content is never mutated.
func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Invalid user", http.StatusUnauthorized)
		return
	}

	var input struct {
		IDs []string `json:"ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil || len(input.IDs) == 0 {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid input")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	_, err := h.Store.Notifications.UpdateMany(ctx,
		bson.M{"userId": userID, "notificationid": bson.M{"$in": input.IDs}},
		bson.M{"$set": bson.M{"isRead": true}},
	)
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to mark notifications read")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, utils.M{"success": true})
}
