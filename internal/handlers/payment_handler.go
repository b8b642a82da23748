package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/skip2/go-qrcode"
	"gorm.io/gorm"

	"github.com/parkease/parkease-api/internal/booking"
	"github.com/parkease/parkease-api/internal/helpers"
	"github.com/parkease/parkease-api/internal/khalti"
	"github.com/parkease/parkease-api/internal/middleware"
	"github.com/parkease/parkease-api/internal/models"
)

type VerifyKhaltiRequest struct {
	Token     string    `json:"token" binding:"required"`
	Amount    int64     `json:"amount" binding:"required,gt=0"`
	BookingID uuid.UUID `json:"booking_id" binding:"required"`
}

func VerifyKhaltiPayment(c *gin.Context) {
	var req VerifyKhaltiRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, "Invalid input. Please check your fields.")
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
	client := middleware.GetKhaltiClient(c)
	if client == nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Payment client not found.")
		return
	}

	var b models.Booking
	if err := gormDB.Preload("Spot").First(&b, "id = ?", req.BookingID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			helpers.RespondWithError(c, http.StatusNotFound, "Booking not found.")
			return
		}
		helpers.RespondWithError(c, http.StatusInternalServerError, "Error retrieving booking.")
		return
	}

	if !booking.CanAccess(requester, b.UserID) {
		helpers.RespondWithError(c, http.StatusForbidden, "You don't have permission to pay for this booking.")
		return
	}

	result, err := client.Verify(req.Token, req.Amount)
	if err != nil {
		var verr *khalti.VerificationError
		if errors.As(err, &verr) {
			helpers.RespondWithError(c, http.StatusPaymentRequired, "Payment verification failed: "+verr.Detail)
			return
		}
		helpers.RespondWithError(c, http.StatusBadGateway, "Payment provider is unreachable.")
		return
	}

	// Khalti reports paisa; persist NPR.
	payment := models.Payment{
		UserID:        b.UserID,
		BookingID:     b.ID,
		Amount:        float64(result.Amount) / 100,
		Method:        models.PaymentMethodKhalti,
		Status:        models.PaymentRecordCompleted,
		TransactionID: result.TransactionID,
		RawPayload:    result.RawPayload,
	}

	err = gormDB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&payment).Error; err != nil {
			return err
		}
		return tx.Model(&models.Booking{}).
			Where("id = ?", b.ID).
			Update("payment_status", models.PaymentStatusPaid).Error
	})
	if err != nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Payment verified but could not be recorded.")
		return
	}

	helpers.RespondWithLinks(c, http.StatusCreated, "Payment verified and recorded.", payment, paymentLinks(&payment))
}

func ListPayments(c *gin.Context) {
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

	pagination, _ := helpers.ParsePagination(c)

	query := gormDB.Model(&models.Payment{})
	if !requester.IsAdmin() {
		query = query.Where("user_id = ?", requester.ID)
	}

	var totalCount int64
	query.Count(&totalCount)

	var payments []models.Payment
	err := query.Preload("Booking").
		Offset(pagination.Offset()).Limit(pagination.Limit).
		Order("created_at DESC").
		Find(&payments).Error
	if err != nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Error retrieving payments.")
		return
	}

	helpers.Respond(c, http.StatusOK, "Payments retrieved.", gin.H{
		"payments":    payments,
		"total":       totalCount,
		"page":        pagination.Page,
		"limit":       pagination.Limit,
		"total_pages": pagination.TotalPages(totalCount),
	})
}

func getOwnedPayment(c *gin.Context) (*models.Payment, bool) {
	paymentID := c.Param("id")

	requester, ok := middleware.CurrentRequester(c)
	if !ok {
		helpers.RespondWithError(c, http.StatusUnauthorized, "User ID not found in token.")
		return nil, false
	}
	gormDB := middleware.GetDB(c)
	if gormDB == nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Database connection not found.")
		return nil, false
	}

	var payment models.Payment
	if err := gormDB.Preload("Booking.Spot").First(&payment, "id = ?", paymentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			helpers.RespondWithError(c, http.StatusNotFound, "Payment not found.")
			return nil, false
		}
		helpers.RespondWithError(c, http.StatusInternalServerError, "Error retrieving payment.")
		return nil, false
	}

	if !booking.CanAccess(requester, payment.UserID) {
		helpers.RespondWithError(c, http.StatusForbidden, "You don't have permission to view this payment.")
		return nil, false
	}
	return &payment, true
}

func GetPayment(c *gin.Context) {
	payment, ok := getOwnedPayment(c)
	if !ok {
		return
	}
	helpers.RespondWithLinks(c, http.StatusOK, "Payment retrieved.", payment, paymentLinks(payment))
}

func GetPaymentReceipt(c *gin.Context) {
	payment, ok := getOwnedPayment(c)
	if !ok {
		return
	}

	receipt := gin.H{
		"payment_id":     payment.ID,
		"transaction_id": payment.TransactionID,
		"amount_npr":     payment.Amount,
		"method":         payment.Method,
		"status":         payment.Status,
		"paid_at":        payment.CreatedAt,
		"signature":      helpers.GenerateReceiptSignature(payment.ID, payment.BookingID, payment.UserID),
	}
	if payment.Booking != nil {
		receipt["booking"] = gin.H{
			"id":         payment.Booking.ID,
			"start_time": payment.Booking.StartTime,
			"end_time":   payment.Booking.EndTime,
			"total_cost": payment.Booking.TotalCost,
		}
		if payment.Booking.Spot != nil {
			receipt["spot"] = gin.H{
				"spot_number": payment.Booking.Spot.SpotNumber,
				"location":    payment.Booking.Spot.Location,
			}
		}
	}

	helpers.RespondWithLinks(c, http.StatusOK, "Receipt generated.", receipt, paymentLinks(payment))
}

func GetPaymentReceiptQR(c *gin.Context) {
	payment, ok := getOwnedPayment(c)
	if !ok {
		return
	}

	qrData := helpers.BuildReceiptQRData(payment.ID, payment.BookingID, payment.UserID)
	qrImage, err := qrcode.Encode(qrData, qrcode.Medium, 256)
	if err != nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Failed to generate receipt QR code.")
		return
	}

	c.Data(http.StatusOK, "image/png", qrImage)
}

type analyticsRange struct {
	From time.Time
	To   time.Time
}

func parseAnalyticsRange(c *gin.Context) (analyticsRange, error) {
	r := analyticsRange{
		From: time.Now().AddDate(0, -1, 0),
		To:   time.Now(),
	}
	if from := c.Query("from"); from != "" {
		parsed, err := time.Parse(time.RFC3339, from)
		if err != nil {
			return r, err
		}
		r.From = parsed
	}
	if to := c.Query("to"); to != "" {
		parsed, err := time.Parse(time.RFC3339, to)
		if err != nil {
			return r, err
		}
		r.To = parsed
	}
	return r, nil
}

func GetPaymentAnalytics(c *gin.Context) {
	gormDB := middleware.GetDB(c)
	if gormDB == nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Database connection not found.")
		return
	}

	dateRange, err := parseAnalyticsRange(c)
	if err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, "Invalid date range. Use RFC3339 timestamps.")
		return
	}

	completed := gormDB.Model(&models.Payment{}).
		Where("payments.status = ? AND payments.created_at BETWEEN ? AND ?",
			models.PaymentRecordCompleted, dateRange.From, dateRange.To)

	type methodRow struct {
		Method string  `json:"method"`
		Count  int64   `json:"count"`
		Total  float64 `json:"total"`
	}
	var byMethod []methodRow
	completed.Session(&gorm.Session{}).
		Select("method, COUNT(*) as count, COALESCE(SUM(amount), 0) as total").
		Group("method").
		Scan(&byMethod)

	type spotRow struct {
		SpotNumber string  `json:"spot_number"`
		Location   string  `json:"location"`
		Count      int64   `json:"count"`
		Total      float64 `json:"total"`
	}
	var bySpot []spotRow
	completed.Session(&gorm.Session{}).
		Joins("JOIN bookings ON bookings.id = payments.booking_id").
		Joins("JOIN parking_spots ON parking_spots.id = bookings.spot_id").
		Select("parking_spots.spot_number, parking_spots.location, COUNT(*) as count, COALESCE(SUM(payments.amount), 0) as total").
		Group("parking_spots.spot_number, parking_spots.location").
		Order("total DESC").
		Scan(&bySpot)

	type dayRow struct {
		Date  string  `json:"date"`
		Count int64   `json:"count"`
		Total float64 `json:"total"`
	}
	var byDay []dayRow
	completed.Session(&gorm.Session{}).
		Select("TO_CHAR(payments.created_at, 'YYYY-MM-DD') as date, COUNT(*) as count, COALESCE(SUM(amount), 0) as total").
		Group("TO_CHAR(payments.created_at, 'YYYY-MM-DD')").
		Order("date ASC").
		Scan(&byDay)

	var totalRevenue float64
	completed.Session(&gorm.Session{}).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&totalRevenue)

	helpers.Respond(c, http.StatusOK, "Payment analytics retrieved.", gin.H{
		"from":          dateRange.From,
		"to":            dateRange.To,
		"by_method":     byMethod,
		"by_spot":       bySpot,
		"by_day":        byDay,
		"total_revenue": totalRevenue,
	})
}

func paymentLinks(payment *models.Payment) gin.H {
	self := "/v1/payments/" + payment.ID.String()
	return gin.H{
		"self":       self,
		"receipt":    self + "/receipt",
		"receipt_qr": self + "/receipt/qr",
		"booking":    "/v1/bookings/" + payment.BookingID.String(),
	}
}
