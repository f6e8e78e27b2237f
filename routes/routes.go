package routes

import (
	"agrilink/agi"
	"agrilink/auth"
	"agrilink/chats"
	"agrilink/crops"
	"agrilink/middleware"
	"agrilink/notify"
	"agrilink/orders"
	"agrilink/planthealth"
	"agrilink/ratelim"
	"agrilink/realtime"
	"agrilink/weather"

	"github.com/julienschmidt/httprouter"
)

func AddAuthRoutes(router *httprouter.Router, rl *ratelim.RateLimiter, h *auth.Handler) {
	router.POST("/api/auth/register", rl.Limit(h.Register))
	router.POST("/api/auth/login", rl.Limit(h.Login))
	router.POST("/api/auth/token/refresh", rl.Limit(h.Refresh))
	router.POST("/api/auth/logout", middleware.Authenticate(h.Logout))
	router.GET("/api/auth/me", middleware.Authenticate(h.Me))
}

func AddCropRoutes(router *httprouter.Router, h *crops.Handler) {
	router.GET("/api/crops", h.GetCrops)
	router.GET("/api/crops/:cropid", h.GetCrop)
	router.POST("/api/crops", middleware.Authenticate(h.AddCrop))
	router.PUT("/api/crops/:cropid", middleware.Authenticate(h.EditCrop))
	router.DELETE("/api/crops/:cropid", middleware.Authenticate(h.DeleteCrop))

	router.GET("/api/search/crops", h.GetFilteredCrops)
	router.GET("/api/croptypes", h.GetCropTypes)
	router.GET("/api/catalogue", h.GetCropCatalogue)
	router.GET("/api/farmer/crops", middleware.Authenticate(h.GetFarmerCrops))
}

func AddOrderRoutes(router *httprouter.Router, h *orders.Handler) {
	router.POST("/api/orders", middleware.Authenticate(h.PlaceOrder))
	router.GET("/api/orders", middleware.Authenticate(h.GetMyOrders))
	router.POST("/api/orders/:id/accept", middleware.Authenticate(h.AcceptOrder))
	router.POST("/api/orders/:id/reject", middleware.Authenticate(h.RejectOrder))
	router.POST("/api/orders/:id/complete", middleware.Authenticate(h.CompleteOrder))
	router.GET("/api/orders/:id/receipt", middleware.Authenticate(h.DownloadReceipt))
}

func AddChatRoutes(router *httprouter.Router, h *chats.Handler) {
	router.POST("/api/chats", middleware.Authenticate(h.GetOrCreateChat))
	router.GET("/api/chats", middleware.Authenticate(h.ListChats))
	router.GET("/api/chats/:chatid/messages", middleware.Authenticate(h.GetMessages))
	router.POST("/api/chats/:chatid/messages", middleware.Authenticate(h.SendMessage))
}

func AddNotificationRoutes(router *httprouter.Router, h *notify.Handler) {
	router.GET("/api/notifications", middleware.Authenticate(h.List))
	router.POST("/api/notifications/read", middleware.Authenticate(h.MarkRead))
}

func AddAssistRoutes(router *httprouter.Router, rl *ratelim.RateLimiter,
	weatherH *weather.Handler, agiH *agi.Handler, healthH *planthealth.Handler) {
	router.GET("/api/weather", weatherH.GetWeather)
	router.GET("/api/assist/weather-tip", rl.Limit(agiH.WeatherTip))
	router.POST("/api/assist/chat", rl.Limit(middleware.Authenticate(agiH.Chat)))
	router.POST("/api/assist/disease-info", rl.Limit(middleware.Authenticate(agiH.DiseaseDetails)))
	router.POST("/api/assist/crop-health", rl.Limit(middleware.Authenticate(healthH.CheckCropHealth)))
}

func AddRealtimeRoutes(router *httprouter.Router, hub *realtime.Hub, snapshot realtime.SnapshotFunc) {
	router.GET("/ws/:room", realtime.WebSocketHandler(hub, snapshot))
}
