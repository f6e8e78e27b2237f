package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"agrilink/db"
	"agrilink/globals"
	"agrilink/middleware"
	"agrilink/models"
	"agrilink/rdx"
	"agrilink/utils"

	"github.com/golang-jwt/jwt/v5"
	"github.com/julienschmidt/httprouter"
	"go.mongodb.org/mongo-driver/bson"
	"golang.org/x/crypto/bcrypt"
)

const (
	accessTokenTTL  = 12 * time.Hour
	refreshTokenTTL = 7 * 24 * time.Hour
)

type Handler struct {
	store *db.Store
	cache *rdx.Cache
}

func NewHandler(store *db.Store, cache *rdx.Cache) *Handler {
	return &Handler{store: store, cache: cache}
}

type credentials struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
	Name     string `json:"name"`
	Location string `json:"location"`
}

// Register creates a farmer or buyer account. Usernames and emails are
// unique; the password is stored as a bcrypt hash only.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx := r.Context()

	var input credentials
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	input.Username = strings.TrimSpace(input.Username)
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	role := models.UserRole(input.Role)

	switch {
	case input.Username == "" || input.Email == "" || len(input.Password) < 8:
		utils.RespondWithError(w, http.StatusBadRequest, "Username, email and a password of at least 8 characters are required")
		return
	case !role.Valid():
		utils.RespondWithError(w, http.StatusBadRequest, "Role must be farmer or buyer")
		return
	}

	count, err := h.store.Users.CountDocuments(ctx, bson.M{"$or": []bson.M{
		{"username": input.Username},
		{"email": input.Email},
	}})
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Registration failed")
		return
	}
	if count > 0 {
		utils.RespondWithError(w, http.StatusConflict, "Username or email already taken")
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Registration failed")
		return
	}

	name := input.Name
	if name == "" {
		name = input.Username
	}

	user := models.User{
		UserID:    utils.GetUUID(),
		Username:  input.Username,
		Email:     input.Email,
		Password:  string(hashed),
		Role:      role,
		Name:      name,
		Location:  input.Location,
		CreatedAt: time.Now(),
	}
	if _, err := h.store.Users.InsertOne(ctx, user); err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Registration failed")
		return
	}

	if h.cache != nil {
		if err := h.cache.Set(ctx, fmt.Sprintf("users:%s", user.UserID), user.Username, 0); err != nil {
			log.Printf("username cache set failed: %v", err)
		}
	}

	utils.RespondWithJSON(w, http.StatusCreated, utils.M{"success": true, "user": user})
}

// Login verifies credentials and returns a signed access token plus a
// refresh token. Only the refresh token's hash is persisted.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx := r.Context()

	var input credentials
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	var user models.User
	if err := h.store.Users.FindOne(ctx, bson.M{"username": input.Username}).Decode(&user); err != nil {
		utils.RespondWithError(w, http.StatusUnauthorized, "Invalid username or password")
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(input.Password)); err != nil {
		utils.RespondWithError(w, http.StatusUnauthorized, "Invalid username or password")
		return
	}

	token, err := generateAccessToken(&user)
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Login failed")
		return
	}
	refreshToken, err := generateRefreshToken()
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Login failed")
		return
	}

	_, err = h.store.Users.UpdateOne(ctx, bson.M{"userid": user.UserID}, bson.M{"$set": bson.M{
		"refreshtoken": hashToken(refreshToken),
		"refreshexp":   time.Now().Add(refreshTokenTTL),
		"last_login":   time.Now(),
	}})
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Login failed")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, utils.M{
		"success":      true,
		"token":        token,
		"refreshToken": refreshToken,
		"user":         user,
	})
}

// Refresh swaps a valid refresh token for a new access and refresh pair.
// The old refresh token stops working immediately.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx := r.Context()

	var input struct {
		UserID       string `json:"userId"`
		RefreshToken string `json:"refreshToken"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil || input.UserID == "" || input.RefreshToken == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, err := h.store.FindUserByID(ctx, input.UserID)
	if err != nil {
		utils.RespondWithError(w, http.StatusUnauthorized, "Invalid refresh token")
		return
	}
	if user.RefreshToken == "" || user.RefreshToken != hashToken(input.RefreshToken) || time.Now().After(user.RefreshExpiry) {
		utils.RespondWithError(w, http.StatusUnauthorized, "Invalid refresh token")
		return
	}

	token, err := generateAccessToken(user)
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Token refresh failed")
		return
	}
	refreshToken, err := generateRefreshToken()
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Token refresh failed")
		return
	}

	_, err = h.store.Users.UpdateOne(ctx, bson.M{"userid": user.UserID}, bson.M{"$set": bson.M{
		"refreshtoken": hashToken(refreshToken),
		"refreshexp":   time.Now().Add(refreshTokenTTL),
	}})
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Token refresh failed")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, utils.M{
		"success":      true,
		"token":        token,
		"refreshToken": refreshToken,
	})
}

// Logout clears the stored refresh token so the session cannot be renewed.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx := r.Context()

	userID, ok := middleware.UserIDFromContext(ctx)
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "Invalid user")
		return
	}

	_, err := h.store.Users.UpdateOne(ctx, bson.M{"userid": userID},
		bson.M{"$unset": bson.M{"refreshtoken": "", "refreshexp": ""}})
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Logout failed")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, utils.M{"success": true})
}

// Me returns the authenticated user's profile.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx := r.Context()

	userID, ok := middleware.UserIDFromContext(ctx)
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "Invalid user")
		return
	}

	user, err := h.store.FindUserByID(ctx, userID)
	if err != nil {
		utils.RespondWithError(w, http.StatusNotFound, "User not found")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, utils.M{"success": true, "user": user})
}

func generateAccessToken(user *models.User) (string, error) {
	claims := middleware.Claims{
		Username: user.Username,
		UserID:   user.UserID,
		Role:     user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.UserID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(accessTokenTTL)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(globals.JwtSecret)
}

func generateRefreshToken() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return hex.EncodeToString(raw), nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
