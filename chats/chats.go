package chats

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"strings"
	"time"

	"agrilink/db"
	"agrilink/middleware"
	"agrilink/models"
	"agrilink/realtime"
	"agrilink/utils"

	"github.com/julienschmidt/httprouter"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Notifier interface {
	Emit(ctx context.Context, recipientID, message string, params map[string]string, link string)
}

type Handler struct {
	store    *db.Store
	notifier Notifier
	hub      *realtime.Hub
}

func NewHandler(store *db.Store, notifier Notifier, hub *realtime.Hub) *Handler {
	return &Handler{store: store, notifier: notifier, hub: hub}
}

// CanonicalParticipants sorts a participant pair so the same two users
// always map to the same chat document regardless of who opened it.
func CanonicalParticipants(a, b string) []string {
	pair := []string{a, b}
	sort.Strings(pair)
	return pair
}

// ParticipantsKey flattens the canonical pair into the string the chats
// collection carries its unique index on.
func ParticipantsKey(a, b string) string {
	return strings.Join(CanonicalParticipants(a, b), "|")
}

// GetOrCreateChat returns the chat between the caller and the requested
// user, creating it on first contact. At most one chat exists per pair.
func (h *Handler) GetOrCreateChat(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx := r.Context()

	userID, ok := middleware.UserIDFromContext(ctx)
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "Invalid user")
		return
	}

	var input struct {
		UserID string `json:"userId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil || input.UserID == "" || input.UserID == userID {
		utils.RespondWithJSON(w, http.StatusBadRequest, utils.M{"success": false, "message": "Invalid participant"})
		return
	}

	other, err := h.store.FindUserByID(ctx, input.UserID)
	if err != nil {
		utils.RespondWithJSON(w, http.StatusNotFound, utils.M{"success": false, "message": "User not found"})
		return
	}

	key := ParticipantsKey(userID, input.UserID)

	var chat models.Chat
	err = h.store.Chats.FindOne(ctx, bson.M{"participantsKey": key}).Decode(&chat)
	if err == nil {
		utils.RespondWithJSON(w, http.StatusOK, utils.M{"success": true, "chat": chat})
		return
	}
	if !db.IsNoDocuments(err) {
		utils.RespondWithJSON(w, http.StatusInternalServerError, utils.M{"success": false})
		return
	}

	names := map[string]string{input.UserID: other.Name}
	if me, err := h.store.FindUserByID(ctx, userID); err == nil {
		names[userID] = me.Name
	}

	chat = models.Chat{
		ChatID:           utils.GetUUID(),
		Participants:     CanonicalParticipants(userID, input.UserID),
		ParticipantsKey:  key,
		ParticipantNames: names,
		UpdatedAt:        time.Now(),
	}
	if _, err := h.store.Chats.InsertOne(ctx, chat); err != nil {
		// Lost the first-contact race; the other request's chat is the one.
		if mongo.IsDuplicateKeyError(err) {
			if ferr := h.store.Chats.FindOne(ctx, bson.M{"participantsKey": key}).Decode(&chat); ferr == nil {
				utils.RespondWithJSON(w, http.StatusOK, utils.M{"success": true, "chat": chat})
				return
			}
		}
		utils.RespondWithJSON(w, http.StatusInternalServerError, utils.M{"success": false})
		return
	}

	utils.RespondWithJSON(w, http.StatusCreated, utils.M{"success": true, "chat": chat})
}

// ListChats returns the caller's chats, most recently active first.
func (h *Handler) ListChats(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx := r.Context()

	userID, ok := middleware.UserIDFromContext(ctx)
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "Invalid user")
		return
	}

	cursor, err := h.store.Chats.Find(ctx, bson.M{"participants": userID},
		options.Find().SetSort(bson.M{"updatedAt": -1}))
	if err != nil {
		utils.RespondWithJSON(w, http.StatusInternalServerError, utils.M{"success": false})
		return
	}
	defer cursor.Close(ctx)

	chats := []models.Chat{}
	if err := cursor.All(ctx, &chats); err != nil {
		utils.RespondWithJSON(w, http.StatusInternalServerError, utils.M{"success": false})
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, utils.M{"success": true, "chats": chats})
}

// GetMessages returns a chat's messages oldest first.
func (h *Handler) GetMessages(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ctx := r.Context()

	userID, ok := middleware.UserIDFromContext(ctx)
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "Invalid user")
		return
	}

	chat, err := h.memberChat(ctx, ps.ByName("chatid"), userID)
	if err != nil {
		utils.RespondWithError(w, http.StatusForbidden, "Not a participant")
		return
	}

	cursor, err := h.store.Messages.Find(ctx, bson.M{"chatId": chat.ChatID},
		options.Find().SetSort(bson.M{"createdAt": 1}))
	if err != nil {
		utils.RespondWithJSON(w, http.StatusInternalServerError, utils.M{"success": false})
		return
	}
	defer cursor.Close(ctx)

	messages := []models.Message{}
	if err := cursor.All(ctx, &messages); err != nil {
		utils.RespondWithJSON(w, http.StatusInternalServerError, utils.M{"success": false})
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, utils.M{"success": true, "messages": messages})
}

// SendMessage appends a message, refreshes the chat's lastMessage preview,
// notifies the other participant and broadcasts into the chat's live room.
// Messages are never edited or deleted once written.
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ctx := r.Context()

	userID, ok := middleware.UserIDFromContext(ctx)
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "Invalid user")
		return
	}

	chat, err := h.memberChat(ctx, ps.ByName("chatid"), userID)
	if err != nil {
		utils.RespondWithError(w, http.StatusForbidden, "Not a participant")
		return
	}

	var input struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil || input.Text == "" {
		utils.RespondWithJSON(w, http.StatusBadRequest, utils.M{"success": false, "message": "Message text is required"})
		return
	}

	now := time.Now()
	message := models.Message{
		MessageID: utils.GetUUID(),
		ChatID:    chat.ChatID,
		SenderID:  userID,
		Text:      input.Text,
		CreatedAt: now,
	}
	if _, err := h.store.Messages.InsertOne(ctx, message); err != nil {
		utils.RespondWithJSON(w, http.StatusInternalServerError, utils.M{"success": false})
		return
	}

	preview := models.MessagePreview{Text: input.Text, SenderID: userID, Timestamp: now}
	_, err = h.store.Chats.UpdateOne(ctx, bson.M{"chatid": chat.ChatID},
		bson.M{"$set": bson.M{"lastMessage": preview, "updatedAt": now}})
	if err != nil {
		utils.RespondWithJSON(w, http.StatusInternalServerError, utils.M{"success": false})
		return
	}

	senderName := userID
	if name, ok := chat.ParticipantNames[userID]; ok {
		senderName = name
	}
	for _, p := range chat.Participants {
		if p != userID {
			h.notifier.Emit(ctx, p, "notification.newMessage",
				map[string]string{"senderName": senderName}, "/messages")
		}
	}

	if h.hub != nil {
		if payload, err := json.Marshal(utils.M{"type": "chat.message", "message": message}); err == nil {
			h.hub.Publish("chat:"+chat.ChatID, payload)
		}
	}

	utils.RespondWithJSON(w, http.StatusCreated, utils.M{"success": true, "message": message})
}

func (h *Handler) memberChat(ctx context.Context, chatID, userID string) (*models.Chat, error) {
	var chat models.Chat
	err := h.store.Chats.FindOne(ctx, bson.M{"chatid": chatID, "participants": userID}).Decode(&chat)
	if err != nil {
		return nil, err
	}
	return &chat, nil
}
