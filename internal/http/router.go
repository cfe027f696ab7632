package api

import (
	stdhttp "net/http"

	intconfig "campusride/internal/config"
	h "campusride/internal/http/handlers"
	"campusride/internal/http/middleware"
	"campusride/internal/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func NewRouter(env intconfig.Env, a *h.API, logger *zap.Logger) *gin.Engine {
	logger = utils.OrNop(logger)
	r := gin.New()
	r.Use(middleware.RequestID(), middleware.Logger(logger), gin.Recovery(), middleware.CORS(env.AllowedOrigins()))

	if err := r.SetTrustedProxies(nil); err != nil {
		logger.Warn("failed to set trusted proxies", zap.Error(err))
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(stdhttp.StatusNotFound, gin.H{
			"error":  "route not found",
			"path":   c.Request.URL.Path,
			"method": c.Request.Method,
		})
	})

	api := r.Group("/api")
	{
		api.GET("/health", h.Health)
		api.GET("/db-check", h.DBCheck)
		api.GET("/routes", h.Routes)

		secured := api.Group("", middleware.Auth(env.JWTSecret))
		secured.GET("/commission", a.CommissionPreview)

		// Rides
		rides := secured.Group("/rides")
		rides.GET("", a.ListRides)
		rides.POST("", a.CreateRide)
		rides.GET("/:id", a.GetRide)
		rides.GET("/:id/meeting-point", a.RideMeetingPoint)
		mountReservations(rides, a)
		mountPayments(rides, a)

		secured.GET("/reservations", a.ListReservations)

		// Bookings
		bookings := secured.Group("/bookings")
		bookings.GET("", a.ListBookings)
		bookings.GET("/:id", a.GetBooking)
		bookings.PATCH("/:id", a.PatchBooking)
		bookings.POST("/:id/cancel", a.CancelBooking)
		bookings.GET("/:id/receipt", a.BookingReceipt)

		// Wallet
		wallet := secured.Group("/wallet")
		wallet.GET("", a.GetWallet)
		wallet.DELETE("", a.DeleteWallet)
		wallet.POST("/recharge", a.RechargeWallet)
		wallet.GET("/stream", a.StreamWallet)
		wallet.GET("/statement", a.WalletStatement)

		admin := secured.Group("/admin", middleware.RequireRoles(middleware.RoleAdmin))
		admin.GET("/wallets/:owner/verify", a.VerifyWalletChain)
	}

	h.SetRouter(r)
	return r
}

func mountReservations(g *gin.RouterGroup, a *h.API) {
	g.POST("/:id/reservations", a.RequestReservation)
	g.DELETE("/:id/reservations", a.RemoveReservation)
	g.POST("/:id/reservations/cancel", a.CancelReservation)
}

func mountPayments(g *gin.RouterGroup, a *h.API) {
	g.POST("/:id/payment/proceed", a.ProceedToPayment)
	g.POST("/:id/payment/confirm", a.ConfirmPayment)
}
