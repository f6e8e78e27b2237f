package crops

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"agrilink/db"
	"agrilink/filemgr"
	"agrilink/middleware"
	"agrilink/models"
	"agrilink/rdx"
	"agrilink/realtime"
	"agrilink/utils"

	"github.com/julienschmidt/httprouter"
	"go.mongodb.org/mongo-driver/bson"
)

const catalogueCacheKey = "crop_catalogue"

type Handler struct {
	store    *db.Store
	cache    *rdx.Cache
	uploader *filemgr.Uploader
	hub      *realtime.Hub
}

func NewHandler(store *db.Store, cache *rdx.Cache, uploader *filemgr.Uploader, hub *realtime.Hub) *Handler {
	return &Handler{store: store, cache: cache, uploader: uploader, hub: hub}
}

// AddCrop creates a listing from a multipart form. The image is optional;
// when one is attached it must upload cleanly or the whole create fails.
func (h *Handler) AddCrop(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx := r.Context()

	userID, ok := middleware.UserIDFromContext(ctx)
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "Invalid user")
		return
	}
	if role, _ := middleware.RoleFromContext(ctx); role != models.RoleFarmer {
		utils.RespondWithError(w, http.StatusForbidden, "Only farmers can list crops")
		return
	}

	if err := r.ParseMultipartForm(10 << 20); err != nil {
		utils.RespondWithJSON(w, http.StatusBadRequest, utils.M{"success": false, "message": "Invalid form"})
		return
	}

	crop := models.Crop{
		CropID:      utils.GetUUID(),
		FarmerID:    userID,
		Name:        r.FormValue("name"),
		Category:    models.CropCategory(r.FormValue("category")),
		Quantity:    utils.ParseInt(r.FormValue("quantity")),
		Price:       utils.ParseFloat(r.FormValue("price")),
		Location:    r.FormValue("location"),
		Description: r.FormValue("description"),
		Status:      models.CropAvailable,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}

	switch {
	case crop.Name == "":
		utils.RespondWithJSON(w, http.StatusBadRequest, utils.M{"success": false, "message": "Name is required"})
		return
	case !crop.Category.Valid():
		utils.RespondWithJSON(w, http.StatusBadRequest, utils.M{"success": false, "message": "Unknown category"})
		return
	case crop.Quantity <= 0:
		utils.RespondWithJSON(w, http.StatusBadRequest, utils.M{"success": false, "message": "Quantity must be positive"})
		return
	case crop.Price <= 0:
		utils.RespondWithJSON(w, http.StatusBadRequest, utils.M{"success": false, "message": "Price must be positive"})
		return
	}

	if farmer, err := h.store.FindUserByID(ctx, userID); err == nil {
		crop.FarmerName = farmer.Name
	}

	if file, header, err := r.FormFile("image"); err == nil {
		imageURL, thumbURL, err := h.uploader.UploadImage(ctx, file, header)
		if err != nil {
			utils.RespondWithJSON(w, http.StatusBadGateway, utils.M{"success": false, "message": "Image upload failed"})
			return
		}
		crop.ImageURL = imageURL
		crop.ThumbURL = thumbURL
	}

	if _, err := h.store.Crops.InsertOne(ctx, crop); err != nil {
		utils.RespondWithJSON(w, http.StatusInternalServerError, utils.M{"success": false, "message": "Insert failed"})
		return
	}

	h.invalidateCatalogue(r)
	h.publishCropEvent("crop.created", &crop)
	utils.RespondWithJSON(w, http.StatusCreated, utils.M{"success": true, "crop": crop})
}

// EditCrop applies a partial update. A quantity change also reconciles the
// status field so a listing reads sold exactly when its quantity is zero.
func (h *Handler) EditCrop(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ctx := r.Context()
	cropID := ps.ByName("cropid")

	userID, ok := middleware.UserIDFromContext(ctx)
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "Invalid user")
		return
	}

	crop, err := h.store.FindCropByID(ctx, cropID)
	if err != nil {
		utils.RespondWithJSON(w, http.StatusNotFound, utils.M{"success": false, "message": "Crop not found"})
		return
	}
	if crop.FarmerID != userID {
		utils.RespondWithError(w, http.StatusForbidden, "Not your listing")
		return
	}

	if err := r.ParseMultipartForm(10 << 20); err != nil {
		utils.RespondWithJSON(w, http.StatusBadRequest, utils.M{"success": false, "message": "Invalid form"})
		return
	}

	update := bson.M{"updatedAt": time.Now()}

	if v := r.FormValue("name"); v != "" {
		update["name"] = v
	}
	if v := r.FormValue("category"); v != "" {
		category := models.CropCategory(v)
		if !category.Valid() {
			utils.RespondWithJSON(w, http.StatusBadRequest, utils.M{"success": false, "message": "Unknown category"})
			return
		}
		update["category"] = category
	}
	if v := r.FormValue("price"); v != "" {
		price := utils.ParseFloat(v)
		if price <= 0 {
			utils.RespondWithJSON(w, http.StatusBadRequest, utils.M{"success": false, "message": "Price must be positive"})
			return
		}
		update["price"] = price
	}
	if v := r.FormValue("quantity"); v != "" {
		quantity := utils.ParseInt(v)
		if quantity < 0 {
			utils.RespondWithJSON(w, http.StatusBadRequest, utils.M{"success": false, "message": "Quantity cannot be negative"})
			return
		}
		update["quantity"] = quantity
		if quantity == 0 {
			update["status"] = models.CropSold
		} else {
			update["status"] = models.CropAvailable
		}
	}
	if v := r.FormValue("location"); v != "" {
		update["location"] = v
	}
	if v := r.FormValue("description"); v != "" {
		update["description"] = v
	}

	if file, header, err := r.FormFile("image"); err == nil {
		imageURL, thumbURL, err := h.uploader.UploadImage(ctx, file, header)
		if err != nil {
			utils.RespondWithJSON(w, http.StatusBadGateway, utils.M{"success": false, "message": "Image upload failed"})
			return
		}
		update["imageUrl"] = imageURL
		update["thumbUrl"] = thumbURL
	}

	if len(update) <= 1 { // only updatedAt present
		utils.RespondWithJSON(w, http.StatusBadRequest, utils.M{"success": false, "message": "No valid fields to update"})
		return
	}

	if _, err := h.store.Crops.UpdateOne(ctx, bson.M{"cropid": cropID}, bson.M{"$set": update}); err != nil {
		utils.RespondWithJSON(w, http.StatusInternalServerError, utils.M{"success": false})
		return
	}

	h.invalidateCatalogue(r)
	if updated, err := h.store.FindCropByID(ctx, cropID); err == nil {
		h.publishCropEvent("crop.updated", updated)
	}
	utils.RespondWithJSON(w, http.StatusOK, utils.M{"success": true})
}

func (h *Handler) DeleteCrop(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ctx := r.Context()
	cropID := ps.ByName("cropid")

	userID, ok := middleware.UserIDFromContext(ctx)
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "Invalid user")
		return
	}

	crop, err := h.store.FindCropByID(ctx, cropID)
	if err != nil {
		utils.RespondWithJSON(w, http.StatusNotFound, utils.M{"success": false, "message": "Crop not found"})
		return
	}
	if crop.FarmerID != userID {
		utils.RespondWithError(w, http.StatusForbidden, "Not your listing")
		return
	}

	res, err := h.store.Crops.DeleteOne(ctx, bson.M{"cropid": cropID})
	if err != nil || res.DeletedCount == 0 {
		utils.RespondWithJSON(w, http.StatusInternalServerError, utils.M{"success": false, "message": "Failed to delete crop"})
		return
	}

	h.invalidateCatalogue(r)
	h.publishCropEvent("crop.deleted", crop)
	utils.RespondWithJSON(w, http.StatusOK, utils.M{"success": true})
}

func (h *Handler) invalidateCatalogue(r *http.Request) {
	if h.cache == nil {
		return
	}
	if err := h.cache.Del(r.Context(), catalogueCacheKey); err != nil {
		log.Printf("catalogue cache invalidation failed: %v", err)
	}
}

func (h *Handler) publishCropEvent(event string, crop *models.Crop) {
	if h.hub == nil {
		return
	}
	payload, err := json.Marshal(utils.M{"type": event, "crop": crop})
	if err != nil {
		return
	}
	h.hub.Publish("farmer:"+crop.FarmerID+":crops", payload)
}
