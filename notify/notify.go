package notify

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"agrilink/db"
	"agrilink/models"
	"agrilink/rdx"
	"agrilink/realtime"
	"agrilink/utils"
)

const channel = "notifications"

// Emitter writes notification records and fans them out over Redis to the
// realtime hub. Emission is deliberately best-effort: a failed notification
// is logged and swallowed so it can never fail the operation that caused it.
type Emitter struct {
	store *db.Store
	cache *rdx.Cache
}

func NewEmitter(store *db.Store, cache *rdx.Cache) *Emitter {
	return &Emitter{store: store, cache: cache}
}

// Emit stores an unread notification for recipientID and publishes it on the
// notifications channel. Message is a localization key resolved client-side.
func (e *Emitter) Emit(ctx context.Context, recipientID, message string, params map[string]string, link string) {
	n := models.Notification{
		NotificationID: utils.GetUUID(),
		UserID:         recipientID,
		Message:        message,
		Params:         params,
		Link:           link,
		IsRead:         false,
		CreatedAt:      time.Now(),
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := e.store.Notifications.InsertOne(ctx, n); err != nil {
		log.Printf("[notify] insert failed for %s: %v", recipientID, err)
		return
	}

	data, err := json.Marshal(n)
	if err != nil {
		log.Printf("[notify] marshal failed: %v", err)
		return
	}
	if err := e.cache.Publish(ctx, channel, data); err != nil {
		log.Printf("[notify] publish failed: %v", err)
	}
}

// StartWorker consumes the notifications channel and pushes each record to
// the recipient's hub room. Runs until ctx is cancelled.
func StartWorker(ctx context.Context, cache *rdx.Cache, hub *realtime.Hub) {
	sub := cache.Subscribe(ctx, channel)
	defer sub.Close()
	ch := sub.Channel()

	log.Println("[notify] worker listening for notification events")

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var n models.Notification
			if err := json.Unmarshal([]byte(msg.Payload), &n); err != nil {
				log.Printf("[notify] bad payload: %v", err)
				continue
			}
			hub.Publish("user:"+n.UserID+":notifications", []byte(msg.Payload))
		case <-ctx.Done():
			return
		}
	}
}
