package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/parkease/parkease-api/internal/booking"
	"github.com/parkease/parkease-api/internal/helpers"
	"github.com/parkease/parkease-api/internal/middleware"
	"github.com/parkease/parkease-api/internal/models"
)

type VehicleInfoRequest struct {
	LicensePlate string `json:"license_plate" binding:"required"`
	Make         string `json:"make"`
	Model        string `json:"model"`
	Color        string `json:"color"`
}

type CreateBookingRequest struct {
	SpotID    uuid.UUID          `json:"spot_id" binding:"required"`
	StartTime time.Time          `json:"start_time" binding:"required"`
	EndTime   time.Time          `json:"end_time" binding:"required"`
	Vehicle   VehicleInfoRequest `json:"vehicle" binding:"required"`
	Notes     string             `json:"notes"`
}

type VehiclePatchRequest struct {
	LicensePlate *string `json:"license_plate"`
	Make         *string `json:"make"`
	Model        *string `json:"model"`
	Color        *string `json:"color"`
}

type UpdateBookingRequest struct {
	StartTime *time.Time           `json:"start_time"`
	EndTime   *time.Time           `json:"end_time"`
	Vehicle   *VehiclePatchRequest `json:"vehicle"`
	Notes     *string              `json:"notes"`
}

func bookingContext(c *gin.Context) (*booking.Service, booking.Requester, bool) {
	requester, ok := middleware.CurrentRequester(c)
	if !ok {
		helpers.RespondWithError(c, http.StatusUnauthorized, "User ID not found in token.")
		return nil, booking.Requester{}, false
	}
	svc := middleware.GetBookingService(c)
	if svc == nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Booking service not found.")
		return nil, booking.Requester{}, false
	}
	return svc, requester, true
}

func CreateBooking(c *gin.Context) {
	var req CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, "Invalid input. Please check your fields.")
		return
	}

	svc, requester, ok := bookingContext(c)
	if !ok {
		return
	}

	b, err := svc.Create(requester, booking.CreateInput{
		SpotID:    req.SpotID,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		Vehicle: models.VehicleInfo{
			LicensePlate: req.Vehicle.LicensePlate,
			Make:         req.Vehicle.Make,
			Model:        req.Vehicle.Model,
			Color:        req.Vehicle.Color,
		},
		Notes: req.Notes,
	})
	if err != nil {
		helpers.RespondWithServiceError(c, err)
		return
	}

	helpers.RespondWithLinks(c, http.StatusCreated, "Booking created successfully.", b, bookingLinks(b))
}

func GetBooking(c *gin.Context) {
	bookingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, "Invalid booking ID.")
		return
	}

	svc, requester, ok := bookingContext(c)
	if !ok {
		return
	}

	b, err := svc.Get(requester, bookingID)
	if err != nil {
		helpers.RespondWithServiceError(c, err)
		return
	}

	helpers.RespondWithLinks(c, http.StatusOK, "Booking retrieved.", b, bookingLinks(b))
}

func ListBookings(c *gin.Context) {
	svc, requester, ok := bookingContext(c)
	if !ok {
		return
	}

	pagination, _ := helpers.ParsePagination(c)
	status := models.BookingStatus(c.Query("status"))

	bookings, total, err := svc.List(requester, status, pagination.Page, pagination.Limit)
	if err != nil {
		helpers.RespondWithServiceError(c, err)
		return
	}

	helpers.Respond(c, http.StatusOK, "Bookings retrieved.", gin.H{
		"bookings":    bookings,
		"total":       total,
		"page":        pagination.Page,
		"limit":       pagination.Limit,
		"total_pages": pagination.TotalPages(total),
	})
}

func ListBookingsBySpot(c *gin.Context) {
	spotID, err := uuid.Parse(c.Param("spotId"))
	if err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, "Invalid spot ID.")
		return
	}

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

	query := gormDB.Where("spot_id = ?", spotID)
	if !requester.IsAdmin() {
		query = query.Where("user_id = ?", requester.ID)
	}

	var bookings []models.Booking
	if err := query.Order("start_time ASC").Find(&bookings).Error; err != nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Error retrieving bookings.")
		return
	}

	helpers.Respond(c, http.StatusOK, "Bookings retrieved.", gin.H{"bookings": bookings})
}

func UpdateBooking(c *gin.Context) {
	bookingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, "Invalid booking ID.")
		return
	}

	var req UpdateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, "Invalid input. Please check your fields.")
		return
	}

	svc, requester, ok := bookingContext(c)
	if !ok {
		return
	}

	input := booking.UpdateInput{
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		Notes:     req.Notes,
	}
	if req.Vehicle != nil {
		input.Vehicle = &booking.VehiclePatch{
			LicensePlate: req.Vehicle.LicensePlate,
			Make:         req.Vehicle.Make,
			Model:        req.Vehicle.Model,
			Color:        req.Vehicle.Color,
		}
	}

	b, err := svc.Update(requester, bookingID, input)
	if err != nil {
		helpers.RespondWithServiceError(c, err)
		return
	}

	helpers.RespondWithLinks(c, http.StatusOK, "Booking updated successfully.", b, bookingLinks(b))
}

func CancelBooking(c *gin.Context) {
	bookingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, "Invalid booking ID.")
		return
	}

	svc, requester, ok := bookingContext(c)
	if !ok {
		return
	}

	b, err := svc.Cancel(requester, bookingID)
	if err != nil {
		helpers.RespondWithServiceError(c, err)
		return
	}

	helpers.RespondWithLinks(c, http.StatusOK, "Booking cancelled.", b, bookingLinks(b))
}

func CompleteBooking(c *gin.Context) {
	bookingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, "Invalid booking ID.")
		return
	}

	svc, requester, ok := bookingContext(c)
	if !ok {
		return
	}

	b, err := svc.Complete(requester, bookingID)
	if err != nil {
		helpers.RespondWithServiceError(c, err)
		return
	}

	helpers.RespondWithLinks(c, http.StatusOK, "Booking completed.", b, bookingLinks(b))
}

func DeleteBooking(c *gin.Context) {
	bookingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, "Invalid booking ID.")
		return
	}

	svc := middleware.GetBookingService(c)
	if svc == nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Booking service not found.")
		return
	}

	if err := svc.Delete(bookingID); err != nil {
		helpers.RespondWithServiceError(c, err)
		return
	}

	helpers.Respond(c, http.StatusOK, "Booking deleted successfully.", nil)
}

// bookingLinks advertises the follow-up actions the booking's current
// state allows.
func bookingLinks(b *models.Booking) gin.H {
	self := "/v1/bookings/" + b.ID.String()
	links := gin.H{"self": self}
	if b.Status == models.BookingStatusActive {
		links["cancel"] = self + "/cancel"
		links["complete"] = self + "/complete"
		if b.PaymentStatus == models.PaymentStatusPending {
			links["pay"] = "/v1/payments/verify-khalti"
		}
	}
	return links
}
