package middleware

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/parkease/parkease-api/internal/booking"
	"github.com/parkease/parkease-api/internal/khalti"
)

// The server wires its singletons (db, booking service, khalti client)
// once at startup and hands them to handlers through the gin context.

func DatabaseMiddleware(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("db", db)
		c.Next()
	}
}

func GetDB(c *gin.Context) *gorm.DB {
	db, exists := c.Get("db")
	if !exists {
		return nil
	}
	return db.(*gorm.DB)
}

func BookingServiceMiddleware(svc *booking.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("booking_service", svc)
		c.Next()
	}
}

func GetBookingService(c *gin.Context) *booking.Service {
	svc, exists := c.Get("booking_service")
	if !exists {
		return nil
	}
	return svc.(*booking.Service)
}

func KhaltiMiddleware(client *khalti.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("khalti_client", client)
		c.Next()
	}
}

func GetKhaltiClient(c *gin.Context) *khalti.Client {
	client, exists := c.Get("khalti_client")
	if !exists {
		return nil
	}
	return client.(*khalti.Client)
}
