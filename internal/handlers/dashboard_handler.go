package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/parkease/parkease-api/internal/helpers"
	"github.com/parkease/parkease-api/internal/middleware"
	"github.com/parkease/parkease-api/internal/models"
)

type statusCount struct {
	Status string `json:"status"`
	Count  int64  `json:"count"`
}

type monthBucket struct {
	Month string  `json:"month"`
	Value float64 `json:"value"`
}

type dayBucket struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}

// GetDashboard returns the rollups the dashboard renders. Admins get
// platform-wide figures plus user-growth series; regular users get the
// same shape scoped to their own bookings with the admin-only fields
// zeroed.
func GetDashboard(c *gin.Context) {
	requester, ok := middleware.CurrentRequester(c)
	if !ok {
		helpers.RespondWithError(c, http.StatusUnauthorized, "User ID not found in token.")
		return
	}
	gormDB := middleware.GetDB(c)
	if gormDB == nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Database connection not found.")
		return
	}

	now := time.Now()
	isAdmin := requester.IsAdmin()

	scoped := func(q *gorm.DB) *gorm.DB {
		if !isAdmin {
			return q.Where("user_id = ?", requester.ID)
		}
		return q
	}

	var spotsByStatus []statusCount
	if err := gormDB.Model(&models.ParkingSpot{}).
		Select("status, COUNT(*) as count").
		Group("status").
		Scan(&spotsByStatus).Error; err != nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Failed to load dashboard data.")
		return
	}

	var activeNow int64
	if err := scoped(gormDB.Model(&models.Booking{})).
		Where("status = ? AND start_time <= ? AND end_time > ?", models.BookingStatusActive, now, now).
		Count(&activeNow).Error; err != nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Failed to load dashboard data.")
		return
	}

	var recentBookings []models.Booking
	if err := scoped(gormDB.Model(&models.Booking{})).
		Preload("Spot").
		Order("created_at DESC").
		Limit(5).
		Find(&recentBookings).Error; err != nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Failed to load dashboard data.")
		return
	}

	var revenueByMonth []monthBucket
	if err := scoped(gormDB.Model(&models.Booking{})).
		Where("status = ? AND created_at >= ?", models.BookingStatusCompleted, now.AddDate(0, -6, 0)).
		Select("TO_CHAR(created_at, 'YYYY-MM') as month, COALESCE(SUM(total_cost), 0) as value").
		Group("TO_CHAR(created_at, 'YYYY-MM')").
		Order("month ASC").
		Scan(&revenueByMonth).Error; err != nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Failed to load dashboard data.")
		return
	}

	var bookingsPerDay []dayBucket
	if err := scoped(gormDB.Model(&models.Booking{})).
		Where("created_at >= ?", now.AddDate(0, 0, -7)).
		Select("TO_CHAR(created_at, 'YYYY-MM-DD') as date, COUNT(*) as count").
		Group("TO_CHAR(created_at, 'YYYY-MM-DD')").
		Order("date ASC").
		Scan(&bookingsPerDay).Error; err != nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Failed to load dashboard data.")
		return
	}

	var totalUsers int64
	userGrowthPercent := 0.0
	var usersByMonth []monthBucket
	if isAdmin {
		if err := gormDB.Model(&models.User{}).Count(&totalUsers).Error; err != nil {
			helpers.RespondWithError(c, http.StatusInternalServerError, "Failed to load dashboard data.")
			return
		}

		growth, err := weekOverWeekUserGrowth(gormDB, now)
		if err != nil {
			helpers.RespondWithError(c, http.StatusInternalServerError, "Failed to load dashboard data.")
			return
		}
		userGrowthPercent = growth

		if err := gormDB.Model(&models.User{}).
			Where("created_at >= ?", now.AddDate(0, -12, 0)).
			Select("TO_CHAR(created_at, 'YYYY-MM') as month, COUNT(*) as value").
			Group("TO_CHAR(created_at, 'YYYY-MM')").
			Order("month ASC").
			Scan(&usersByMonth).Error; err != nil {
			helpers.RespondWithError(c, http.StatusInternalServerError, "Failed to load dashboard data.")
			return
		}
	} else {
		usersByMonth = []monthBucket{}
	}

	helpers.Respond(c, http.StatusOK, "Dashboard retrieved.", gin.H{
		"spots_by_status":     spotsByStatus,
		"active_bookings_now": activeNow,
		"recent_bookings":     recentBookings,
		"revenue_by_month":    revenueByMonth,
		"bookings_per_day":    bookingsPerDay,
		"total_users":         totalUsers,
		"user_growth_percent": userGrowthPercent,
		"users_by_month":      usersByMonth,
	})
}

func weekOverWeekUserGrowth(db *gorm.DB, now time.Time) (float64, error) {
	var thisWeek, lastWeek int64
	if err := db.Model(&models.User{}).
		Where("created_at >= ?", now.AddDate(0, 0, -7)).
		Count(&thisWeek).Error; err != nil {
		return 0, err
	}
	if err := db.Model(&models.User{}).
		Where("created_at >= ? AND created_at < ?", now.AddDate(0, 0, -14), now.AddDate(0, 0, -7)).
		Count(&lastWeek).Error; err != nil {
		return 0, err
	}

	if lastWeek == 0 {
		if thisWeek == 0 {
			return 0, nil
		}
		return 100, nil
	}
	return float64(thisWeek-lastWeek) / float64(lastWeek) * 100, nil
}
