package server

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"

	"github.com/parkease/parkease-api/config"
	"github.com/parkease/parkease-api/internal/booking"
	"github.com/parkease/parkease-api/internal/handlers"
	"github.com/parkease/parkease-api/internal/khalti"
	"github.com/parkease/parkease-api/internal/middleware"
)

func Start() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %v", err)
	}

	db, err := config.InitDatabase(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %v", err)
	}

	khaltiCfg, err := config.LoadKhaltiConfig()
	if err != nil {
		return fmt.Errorf("failed to load khalti config: %v", err)
	}
	var khaltiClient *khalti.Client
	if khaltiCfg.BaseURL != "" {
		khaltiClient = khalti.NewClientWithBaseURL(khaltiCfg.SecretKey, khaltiCfg.BaseURL)
	} else {
		khaltiClient = khalti.NewClient(khaltiCfg.SecretKey)
	}

	opts := []booking.Option{}
	if redisClient := config.InitRedis(); redisClient != nil {
		opts = append(opts, booking.WithLocker(booking.NewRedisLocker(redisClient)))
		log.Println("redis spot locking enabled")
	}
	bookingService := booking.NewService(
		booking.NewGormSpotStore(db),
		booking.NewGormStore(db),
		opts...,
	)

	startExpirySweep(bookingService)

	r := gin.Default()

	setupRoutes(r, db, bookingService, khaltiClient)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	return r.Run(":" + port)
}

// startExpirySweep marks overdue active bookings expired every five
// minutes and frees their spots.
func startExpirySweep(svc *booking.Service) {
	c := cron.New()
	_, err := c.AddFunc("*/5 * * * *", func() {
		expired, err := svc.ExpireOverdue(time.Now())
		if err != nil {
			log.Printf("failed to expire overdue bookings: %v", err)
			return
		}
		if len(expired) > 0 {
			log.Printf("expired %d overdue bookings", len(expired))
		}
	})
	if err != nil {
		log.Fatalf("failed to schedule booking expiry sweep: %v", err)
	}
	c.Start()
}

func setupRoutes(r *gin.Engine, db *gorm.DB, bookingService *booking.Service, khaltiClient *khalti.Client) {
	r.Use(middleware.DatabaseMiddleware(db))
	r.Use(middleware.BookingServiceMiddleware(bookingService))
	r.Use(middleware.KhaltiMiddleware(khaltiClient))

	public := r.Group("/v1")
	{
		public.POST("/register", handlers.Register)
		public.POST("/login", handlers.Login)

		spotPublic := public.Group("/spots")
		{
			spotPublic.GET("", handlers.ListSpots)
			spotPublic.GET("/:id", handlers.GetSpot)
			spotPublic.GET("/nearby/:lat/:lng", handlers.NearbySpots)
		}
	}

	protected := r.Group("/v1")
	protected.Use(middleware.JWTAuthMiddleware())
	{
		protected.GET("/profile", handlers.GetProfile)
		protected.GET("/dashboard", handlers.GetDashboard)

		bookingRoutes := protected.Group("/bookings")
		{
			bookingRoutes.POST("", handlers.CreateBooking)
			bookingRoutes.GET("", handlers.ListBookings)
			bookingRoutes.GET("/:id", handlers.GetBooking)
			bookingRoutes.PUT("/:id", handlers.UpdateBooking)
			bookingRoutes.PATCH("/:id", handlers.UpdateBooking)
			bookingRoutes.PUT("/:id/cancel", handlers.CancelBooking)
			bookingRoutes.PUT("/:id/complete", handlers.CompleteBooking)
			bookingRoutes.GET("/spot/:spotId", handlers.ListBookingsBySpot)
		}

		paymentRoutes := protected.Group("/payments")
		{
			paymentRoutes.POST("/verify-khalti", handlers.VerifyKhaltiPayment)
			paymentRoutes.GET("", handlers.ListPayments)
			paymentRoutes.GET("/:id", handlers.GetPayment)
			paymentRoutes.GET("/:id/receipt", handlers.GetPaymentReceipt)
			paymentRoutes.GET("/:id/receipt/qr", handlers.GetPaymentReceiptQR)
		}
	}

	admin := r.Group("/v1")
	admin.Use(middleware.JWTAuthMiddleware(), middleware.AdminMiddleware())
	{
		spotAdmin := admin.Group("/spots")
		{
			spotAdmin.POST("", handlers.CreateSpot)
			spotAdmin.PUT("/:id", handlers.UpdateSpot)
			spotAdmin.PATCH("/:id", handlers.UpdateSpot)
			spotAdmin.DELETE("/:id", handlers.DeleteSpot)
		}

		admin.DELETE("/bookings/:id", handlers.DeleteBooking)
		admin.GET("/payments/analytics", handlers.GetPaymentAnalytics)
	}
}
