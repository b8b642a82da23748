package handlers

import (
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/parkease/parkease-api/internal/helpers"
	"github.com/parkease/parkease-api/internal/middleware"
	"github.com/parkease/parkease-api/internal/models"
)

type CreateSpotRequest struct {
	SpotNumber  string   `json:"spot_number" binding:"required"`
	Location    string   `json:"location" binding:"required"`
	Latitude    float64  `json:"latitude" binding:"omitempty,gte=-90,lte=90"`
	Longitude   float64  `json:"longitude" binding:"omitempty,gte=-180,lte=180"`
	Type        string   `json:"type" binding:"omitempty,oneof=standard compact handicap electric"`
	HourlyRate  *float64 `json:"hourly_rate" binding:"required,gte=0"`
	Features    []string `json:"features"`
	Description string   `json:"description"`
}

type UpdateSpotRequest struct {
	SpotNumber  *string  `json:"spot_number"`
	Location    *string  `json:"location"`
	Latitude    *float64 `json:"latitude" binding:"omitempty,gte=-90,lte=90"`
	Longitude   *float64 `json:"longitude" binding:"omitempty,gte=-180,lte=180"`
	Type        *string  `json:"type" binding:"omitempty,oneof=standard compact handicap electric"`
	Status      *string  `json:"status" binding:"omitempty,oneof=available occupied reserved maintenance"`
	HourlyRate  *float64 `json:"hourly_rate" binding:"omitempty,gte=0"`
	Features    []string `json:"features"`
	Description *string  `json:"description"`
}

func CreateSpot(c *gin.Context) {
	var req CreateSpotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, "Invalid input. Please check your fields.")
		return
	}

	gormDB := middleware.GetDB(c)
	if gormDB == nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Database connection not found.")
		return
	}

	spotType := models.SpotTypeStandard
	if req.Type != "" {
		spotType = models.SpotType(req.Type)
	}

	spot := models.ParkingSpot{
		SpotNumber:  req.SpotNumber,
		Location:    req.Location,
		Latitude:    req.Latitude,
		Longitude:   req.Longitude,
		Type:        spotType,
		Status:      models.SpotStatusAvailable,
		HourlyRate:  *req.HourlyRate,
		Features:    req.Features,
		Description: req.Description,
	}

	var existing models.ParkingSpot
	if result := gormDB.Where("spot_number = ?", req.SpotNumber).First(&existing); result.Error == nil {
		helpers.RespondWithError(c, http.StatusConflict, "A spot with that number already exists.")
		return
	}

	if err := gormDB.Create(&spot).Error; err != nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Failed to create parking spot.")
		return
	}

	helpers.Respond(c, http.StatusCreated, "Parking spot created successfully.", spot)
}

func GetSpot(c *gin.Context) {
	spotID := c.Param("id")

	gormDB := middleware.GetDB(c)
	if gormDB == nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Database connection not found.")
		return
	}

	var spot models.ParkingSpot
	if err := gormDB.Where("id = ?", spotID).First(&spot).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			helpers.RespondWithError(c, http.StatusNotFound, "Parking spot not found.")
			return
		}
		helpers.RespondWithError(c, http.StatusInternalServerError, "Error retrieving parking spot.")
		return
	}

	helpers.RespondWithLinks(c, http.StatusOK, "Parking spot retrieved.", spot, spotLinks(&spot))
}

var spotSortColumns = map[string]string{
	"created_at":  "created_at",
	"hourly_rate": "hourly_rate",
	"spot_number": "spot_number",
	"location":    "location",
}

func ListSpots(c *gin.Context) {
	gormDB := middleware.GetDB(c)
	if gormDB == nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Database connection not found.")
		return
	}

	pagination, _ := helpers.ParsePagination(c)

	query := gormDB.Model(&models.ParkingSpot{})
	if spotType := c.Query("type"); spotType != "" {
		query = query.Where("type = ?", spotType)
	}
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if location := c.Query("location"); location != "" {
		query = query.Where("location ILIKE ?", "%"+location+"%")
	}
	if minRate := c.Query("min_rate"); minRate != "" {
		rate, err := helpers.StringToFloat(minRate)
		if err != nil {
			helpers.RespondWithError(c, http.StatusBadRequest, "Invalid min_rate.")
			return
		}
		query = query.Where("hourly_rate >= ?", rate)
	}
	if maxRate := c.Query("max_rate"); maxRate != "" {
		rate, err := helpers.StringToFloat(maxRate)
		if err != nil {
			helpers.RespondWithError(c, http.StatusBadRequest, "Invalid max_rate.")
			return
		}
		query = query.Where("hourly_rate <= ?", rate)
	}

	orderBy := "created_at DESC"
	if sortParam := c.DefaultQuery("sort", ""); sortParam != "" {
		column, ok := spotSortColumns[sortParam]
		if !ok {
			helpers.RespondWithError(c, http.StatusBadRequest, "Invalid sort field.")
			return
		}
		direction := "ASC"
		if c.DefaultQuery("order", "asc") == "desc" {
			direction = "DESC"
		}
		orderBy = column + " " + direction
	}

	var totalCount int64
	query.Count(&totalCount)

	var spots []models.ParkingSpot
	err := query.Offset(pagination.Offset()).Limit(pagination.Limit).Order(orderBy).Find(&spots).Error
	if err != nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Error retrieving parking spots.")
		return
	}

	helpers.Respond(c, http.StatusOK, "Parking spots retrieved.", gin.H{
		"spots":       spots,
		"total":       totalCount,
		"page":        pagination.Page,
		"limit":       pagination.Limit,
		"total_pages": pagination.TotalPages(totalCount),
	})
}

func UpdateSpot(c *gin.Context) {
	spotID := c.Param("id")

	var req UpdateSpotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, "Invalid input. Please check your fields.")
		return
	}

	gormDB := middleware.GetDB(c)
	if gormDB == nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Database connection not found.")
		return
	}

	var spot models.ParkingSpot
	if err := gormDB.Where("id = ?", spotID).First(&spot).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			helpers.RespondWithError(c, http.StatusNotFound, "Parking spot not found.")
			return
		}
		helpers.RespondWithError(c, http.StatusInternalServerError, "Error finding parking spot.")
		return
	}

	// A status override that contradicts a live booking would desync
	// the registry from the booking lifecycle, so it is rejected.
	if req.Status != nil && models.SpotStatus(*req.Status) != spot.Status {
		newStatus := models.SpotStatus(*req.Status)
		if newStatus != models.SpotStatusReserved {
			active, err := spotHasActiveBooking(gormDB, spot.ID)
			if err != nil {
				helpers.RespondWithError(c, http.StatusInternalServerError, "Error checking active bookings.")
				return
			}
			if active {
				helpers.RespondWithError(c, http.StatusConflict, "Spot has an active booking; cancel or complete it first.")
				return
			}
		}
		spot.Status = newStatus
	}

	if req.SpotNumber != nil {
		spot.SpotNumber = *req.SpotNumber
	}
	if req.Location != nil {
		spot.Location = *req.Location
	}
	if req.Latitude != nil {
		spot.Latitude = *req.Latitude
	}
	if req.Longitude != nil {
		spot.Longitude = *req.Longitude
	}
	if req.Type != nil {
		spot.Type = models.SpotType(*req.Type)
	}
	if req.HourlyRate != nil {
		spot.HourlyRate = *req.HourlyRate
	}
	if req.Features != nil {
		spot.Features = req.Features
	}
	if req.Description != nil {
		spot.Description = *req.Description
	}

	if err := gormDB.Save(&spot).Error; err != nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Failed to update parking spot.")
		return
	}

	helpers.Respond(c, http.StatusOK, "Parking spot updated successfully.", spot)
}

func DeleteSpot(c *gin.Context) {
	spotID := c.Param("id")

	gormDB := middleware.GetDB(c)
	if gormDB == nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Database connection not found.")
		return
	}

	var spot models.ParkingSpot
	if err := gormDB.Where("id = ?", spotID).First(&spot).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			helpers.RespondWithError(c, http.StatusNotFound, "Parking spot not found.")
			return
		}
		helpers.RespondWithError(c, http.StatusInternalServerError, "Error finding parking spot.")
		return
	}

	active, err := spotHasActiveBooking(gormDB, spot.ID)
	if err != nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Error checking active bookings.")
		return
	}
	if active {
		helpers.RespondWithError(c, http.StatusConflict, "Spot has active bookings and cannot be deleted.")
		return
	}

	if err := gormDB.Delete(&spot).Error; err != nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Failed to delete parking spot.")
		return
	}

	helpers.Respond(c, http.StatusOK, "Parking spot deleted successfully.", nil)
}

type nearbySpot struct {
	models.ParkingSpot
	DistanceKm float64 `json:"distance_km"`
}

func NearbySpots(c *gin.Context) {
	lat, err := helpers.StringToFloat(c.Param("lat"))
	if err != nil || lat < -90 || lat > 90 {
		helpers.RespondWithError(c, http.StatusBadRequest, "Invalid latitude.")
		return
	}
	lng, err := helpers.StringToFloat(c.Param("lng"))
	if err != nil || lng < -180 || lng > 180 {
		helpers.RespondWithError(c, http.StatusBadRequest, "Invalid longitude.")
		return
	}

	radiusKm := 2.0
	if radiusParam := c.Query("radius"); radiusParam != "" {
		radiusKm, err = helpers.StringToFloat(radiusParam)
		if err != nil || radiusKm <= 0 {
			helpers.RespondWithError(c, http.StatusBadRequest, "Invalid radius.")
			return
		}
	}

	gormDB := middleware.GetDB(c)
	if gormDB == nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Database connection not found.")
		return
	}

	var spots []models.ParkingSpot
	if err := gormDB.Where("status = ?", models.SpotStatusAvailable).Find(&spots).Error; err != nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Error retrieving parking spots.")
		return
	}

	nearby := make([]nearbySpot, 0)
	for _, spot := range spots {
		distance := helpers.HaversineKm(lat, lng, spot.Latitude, spot.Longitude)
		if distance <= radiusKm {
			nearby = append(nearby, nearbySpot{ParkingSpot: spot, DistanceKm: distance})
		}
	}
	sort.Slice(nearby, func(i, j int) bool {
		return nearby[i].DistanceKm < nearby[j].DistanceKm
	})

	helpers.Respond(c, http.StatusOK, "Nearby available spots retrieved.", gin.H{
		"spots":     nearby,
		"radius_km": radiusKm,
	})
}

func spotHasActiveBooking(db *gorm.DB, spotID uuid.UUID) (bool, error) {
	var count int64
	err := db.Model(&models.Booking{}).
		Where("spot_id = ? AND status = ?", spotID, models.BookingStatusActive).
		Count(&count).Error
	return count > 0, err
}

func spotLinks(spot *models.ParkingSpot) gin.H {
	links := gin.H{
		"self": "/v1/spots/" + spot.ID.String(),
	}
	if spot.Status == models.SpotStatusAvailable {
		links["book"] = "/v1/bookings"
	}
	return links
}
