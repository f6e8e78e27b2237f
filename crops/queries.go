package crops

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"agrilink/middleware"
	"agrilink/models"
	"agrilink/utils"

	"github.com/julienschmidt/httprouter"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const defaultListLimit = 50

// GetCrops lists available crops newest first, optionally filtered by
// category and capped by limit.
func (h *Handler) GetCrops(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	params := r.URL.Query()
	filter := bson.M{"status": models.CropAvailable}
	if c := params.Get("category"); c != "" {
		filter["category"] = c
	}

	limit := defaultListLimit
	if n := utils.ParseInt(params.Get("limit")); n > 0 {
		limit = n
	}

	crops, err := h.findCrops(ctx, filter, options.Find().
		SetSort(bson.M{"createdAt": -1}).
		SetLimit(int64(limit)))
	if err != nil {
		utils.RespondWithJSON(w, http.StatusInternalServerError, utils.M{"success": false, "message": "Failed to fetch crops"})
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, utils.M{"success": true, "crops": crops})
}

func (h *Handler) GetCrop(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	crop, err := h.store.FindCropByID(r.Context(), ps.ByName("cropid"))
	if err != nil {
		utils.RespondWithJSON(w, http.StatusNotFound, utils.M{"success": false, "message": "Crop not found"})
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, utils.M{"success": true, "crop": crop})
}

// GetFarmerCrops returns the caller's own listings, sold ones included.
func (h *Handler) GetFarmerCrops(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx := r.Context()

	userID, ok := middleware.UserIDFromContext(ctx)
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "Invalid user")
		return
	}

	crops, err := h.findCrops(ctx, bson.M{"farmerId": userID},
		options.Find().SetSort(bson.M{"createdAt": -1}))
	if err != nil {
		utils.RespondWithJSON(w, http.StatusInternalServerError, utils.M{"success": false, "message": "Failed to fetch crops"})
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, utils.M{"success": true, "crops": crops})
}

// GetFilteredCrops searches listings by category, region, price range and
// stock availability.
func (h *Handler) GetFilteredCrops(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	params := r.URL.Query()
	filter := bson.M{}

	if c := params.Get("category"); c != "" {
		filter["category"] = c
	}
	if region := params.Get("region"); region != "" {
		filter["location"] = region
	}
	if params.Get("inStock") == "true" {
		filter["quantity"] = bson.M{"$gt": 0}
	}

	price := bson.M{}
	if min := utils.ParseFloat(params.Get("minPrice")); min > 0 {
		price["$gte"] = min
	}
	if max := utils.ParseFloat(params.Get("maxPrice")); max > 0 {
		price["$lte"] = max
	}
	if len(price) > 0 {
		filter["price"] = price
	}

	crops, err := h.findCrops(ctx, filter, options.Find().SetSort(bson.M{"createdAt": -1}))
	if err != nil {
		utils.RespondWithJSON(w, http.StatusInternalServerError, utils.M{"success": false, "message": "Failed to fetch crops"})
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, utils.M{"success": true, "crops": crops})
}

// GetCropTypes aggregates listings by crop name into a price range and an
// available-listing count for the browse page.
func (h *Handler) GetCropTypes(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx := r.Context()

	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.M{
			"_id":      "$name",
			"minPrice": bson.M{"$min": "$price"},
			"maxPrice": bson.M{"$max": "$price"},
			"availableCount": bson.M{
				"$sum": bson.M{
					"$cond": []interface{}{
						bson.M{"$gt": []interface{}{"$quantity", 0}}, 1, 0,
					},
				},
			},
			"imageUrl": bson.M{"$first": "$imageUrl"},
			"thumbUrl": bson.M{"$first": "$thumbUrl"},
			"category": bson.M{"$first": "$category"},
		}}},
		{{Key: "$project", Value: bson.M{
			"name":           "$_id",
			"minPrice":       1,
			"maxPrice":       1,
			"availableCount": 1,
			"imageUrl":       1,
			"thumbUrl":       1,
			"category":       1,
			"_id":            0,
		}}},
		{{Key: "$sort", Value: bson.M{"name": 1}}},
	}

	cursor, err := h.store.Crops.Aggregate(ctx, pipeline)
	if err != nil {
		utils.RespondWithJSON(w, http.StatusInternalServerError, utils.M{"success": false})
		return
	}
	defer cursor.Close(ctx)

	var cropTypes []bson.M
	if err := cursor.All(ctx, &cropTypes); err != nil {
		utils.RespondWithJSON(w, http.StatusInternalServerError, utils.M{"success": false})
		return
	}
	if cropTypes == nil {
		cropTypes = []bson.M{}
	}

	utils.RespondWithJSON(w, http.StatusOK, utils.M{"success": true, "cropTypes": cropTypes})
}

// GetCropCatalogue serves the available listings from a short-lived Redis
// cache; writes invalidate the key so staleness is bounded by the TTL only
// when every writer failed to reach Redis.
func (h *Handler) GetCropCatalogue(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	var crops []models.Crop
	if h.cache != nil {
		if val, err := h.cache.Get(ctx, catalogueCacheKey); err == nil && val != "" {
			if err := json.Unmarshal([]byte(val), &crops); err == nil {
				utils.RespondWithJSON(w, http.StatusOK, utils.M{"success": true, "crops": crops})
				return
			}
		}
	}

	crops, err := h.findCrops(ctx, bson.M{"status": models.CropAvailable},
		options.Find().SetSort(bson.M{"name": 1}))
	if err != nil {
		utils.RespondWithJSON(w, http.StatusInternalServerError, utils.M{"success": false, "message": "Failed to retrieve catalogue"})
		return
	}

	if h.cache != nil {
		if jsonBytes, err := json.Marshal(crops); err == nil {
			_ = h.cache.Set(ctx, catalogueCacheKey, string(jsonBytes), 2*time.Hour)
		}
	}

	utils.RespondWithJSON(w, http.StatusOK, utils.M{"success": true, "crops": crops})
}

func (h *Handler) findCrops(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.Crop, error) {
	cursor, err := h.store.Crops.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	crops := []models.Crop{}
	if err := cursor.All(ctx, &crops); err != nil {
		return nil, err
	}
	return crops, nil
}
