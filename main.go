package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"agrilink/agi"
	"agrilink/auth"
	"agrilink/chats"
	"agrilink/crops"
	"agrilink/db"
	"agrilink/filemgr"
	"agrilink/models"
	"agrilink/notify"
	"agrilink/orders"
	"agrilink/planthealth"
	"agrilink/ratelim"
	"agrilink/rdx"
	"agrilink/realtime"
	"agrilink/routes"
	"agrilink/weather"

	"github.com/joho/godotenv"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/cors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// securityHeaders applies a set of recommended HTTP security headers.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-XSS-Protection", "1; mode=block")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "frame-ancestors 'none'")
		w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains; preload")
		w.Header().Set("Referrer-Policy", "no-referrer")
		w.Header().Set("Permissions-Policy", "geolocation=(), microphone=(), camera=()")
		w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, private")
		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs each request method, path, remote address, and duration.
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s from %s – %v", r.Method, r.RequestURI, r.RemoteAddr, time.Since(start))
	})
}

// Index is a simple health check handler.
func Index(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	fmt.Fprint(w, "200")
}

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// buildSnapshot resolves the initial state a websocket client receives when
// it joins a room. Rooms belong to users; a caller only gets a snapshot of
// rooms that are theirs.
func buildSnapshot(store *db.Store) realtime.SnapshotFunc {
	return func(ctx context.Context, room, userID string) ([][]byte, error) {
		switch {
		case strings.HasPrefix(room, "chat:"):
			chatID := strings.TrimPrefix(room, "chat:")
			var chat models.Chat
			if err := store.Chats.FindOne(ctx, bson.M{"chatid": chatID, "participants": userID}).Decode(&chat); err != nil {
				return nil, fmt.Errorf("chat membership: %w", err)
			}
			cursor, err := store.Messages.Find(ctx, bson.M{"chatId": chatID},
				options.Find().SetSort(bson.M{"createdAt": 1}).SetLimit(100))
			if err != nil {
				return nil, err
			}
			defer cursor.Close(ctx)
			var messages []models.Message
			if err := cursor.All(ctx, &messages); err != nil {
				return nil, err
			}
			frames := make([][]byte, 0, len(messages))
			for _, m := range messages {
				if data, err := json.Marshal(map[string]interface{}{"type": "chat.message", "message": m}); err == nil {
					frames = append(frames, data)
				}
			}
			return frames, nil

		case room == "user:"+userID+":notifications":
			cursor, err := store.Notifications.Find(ctx, bson.M{"userId": userID},
				options.Find().SetSort(bson.M{"createdAt": -1}).SetLimit(20))
			if err != nil {
				return nil, err
			}
			defer cursor.Close(ctx)
			var notifications []models.Notification
			if err := cursor.All(ctx, &notifications); err != nil {
				return nil, err
			}
			frames := make([][]byte, 0, len(notifications))
			for _, n := range notifications {
				if data, err := json.Marshal(map[string]interface{}{"type": "notification", "notification": n}); err == nil {
					frames = append(frames, data)
				}
			}
			return frames, nil

		case room == "farmer:"+userID+":crops":
			cursor, err := store.Crops.Find(ctx, bson.M{"farmerId": userID},
				options.Find().SetSort(bson.M{"createdAt": -1}))
			if err != nil {
				return nil, err
			}
			defer cursor.Close(ctx)
			var farmerCrops []models.Crop
			if err := cursor.All(ctx, &farmerCrops); err != nil {
				return nil, err
			}
			frames := make([][]byte, 0, len(farmerCrops))
			for _, c := range farmerCrops {
				if data, err := json.Marshal(map[string]interface{}{"type": "crop.snapshot", "crop": c}); err == nil {
					frames = append(frames, data)
				}
			}
			return frames, nil

		case room == "farmer:"+userID+":orders":
			orderList, err := store.ListOrders(ctx, "farmerId", userID)
			if err != nil {
				return nil, err
			}
			frames := make([][]byte, 0, len(orderList))
			for _, o := range orderList {
				if data, err := json.Marshal(map[string]interface{}{"type": "order.snapshot", "order": o}); err == nil {
					frames = append(frames, data)
				}
			}
			return frames, nil

		default:
			return nil, fmt.Errorf("room %q is not accessible", room)
		}
	}
}

func main() {
	// load .env if present
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found; using system environment")
	}

	port := env("PORT", ":8080")
	if port[0] != ':' {
		port = ":" + port
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	store, err := db.Connect(ctx, env("MONGODB_URI", "mongodb://localhost:27017"), env("MONGODB_DB", "agrilink"))
	cancel()
	if err != nil {
		log.Fatalf("❌ MongoDB connect failed: %v", err)
	}

	cacheCtx, cacheCancel := context.WithTimeout(context.Background(), 5*time.Second)
	cache, err := rdx.Connect(cacheCtx, env("REDIS_ADDR", "localhost:6379"))
	cacheCancel()
	if err != nil {
		log.Fatalf("❌ Redis connect failed: %v", err)
	}

	hub := realtime.NewHub()
	go hub.Run()

	workerCtx, stopWorker := context.WithCancel(context.Background())
	go notify.StartWorker(workerCtx, cache, hub)

	rateLimiter := ratelim.NewRateLimiter()
	emitter := notify.NewEmitter(store, cache)
	uploader := filemgr.NewUploader(os.Getenv("CLOUDINARY_CLOUD_NAME"), os.Getenv("CLOUDINARY_UPLOAD_PRESET"))
	weatherClient := weather.NewClient(os.Getenv("OPENWEATHER_API_KEY"))
	agiClient := agi.NewClient(os.Getenv("GEMINI_API_KEY"))
	healthClient := planthealth.NewClient(os.Getenv("PLANT_ID_API_KEY"))

	orderService := orders.NewService(store, emitter)

	router := httprouter.New()
	router.GET("/health", Index)

	routes.AddAuthRoutes(router, rateLimiter, auth.NewHandler(store, cache))
	routes.AddCropRoutes(router, crops.NewHandler(store, cache, uploader, hub))
	routes.AddOrderRoutes(router, orders.NewHandler(orderService))
	routes.AddChatRoutes(router, chats.NewHandler(store, emitter, hub))
	routes.AddNotificationRoutes(router, notify.NewHandler(store))
	routes.AddAssistRoutes(router, rateLimiter,
		weather.NewHandler(weatherClient),
		agi.NewHandler(agiClient, weatherClient),
		planthealth.NewHandler(healthClient))
	routes.AddRealtimeRoutes(router, hub, buildSnapshot(store))

	// apply middleware: CORS → security headers → logging → router
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"}, // lock down in production
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	}).Handler(router)

	handler := loggingMiddleware(securityHeaders(corsHandler))

	server := &http.Server{
		Addr:              port,
		Handler:           handler,
		ReadTimeout:       7 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
	}

	server.RegisterOnShutdown(func() {
		log.Println("🛑 Shutting down realtime hub...")
		stopWorker()
		hub.Stop()
	})

	go func() {
		log.Printf("🚀 Server listening on %s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ ListenAndServe error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Println("🛑 Shutdown signal received; shutting down gracefully...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("❌ Graceful shutdown failed: %v", err)
	}

	if err := cache.Close(); err != nil {
		log.Printf("Redis close: %v", err)
	}
	closeCtx, closeCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer closeCancel()
	if err := store.Close(closeCtx); err != nil {
		log.Printf("MongoDB close: %v", err)
	}

	log.Println("✅ Server stopped cleanly")
}
