package helpers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/parkease/parkease-api/internal/booking"
)

// Every JSON response uses the same envelope: {success, message, data,
// links?}.
type Envelope struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Links   gin.H       `json:"links,omitempty"`
}

func Respond(c *gin.Context, statusCode int, message string, data interface{}) {
	c.JSON(statusCode, Envelope{Success: true, Message: message, Data: data})
}

func RespondWithLinks(c *gin.Context, statusCode int, message string, data interface{}, links gin.H) {
	c.JSON(statusCode, Envelope{Success: true, Message: message, Data: data, Links: links})
}

func RespondWithError(c *gin.Context, statusCode int, customMessage string) {
	c.JSON(statusCode, Envelope{Success: false, Message: customMessage})
}

// RespondWithServiceError maps booking-layer sentinel errors onto HTTP
// status codes; anything unrecognized is logged by gin's recovery path
// and reported as a generic 500 without leaking internals.
func RespondWithServiceError(c *gin.Context, err error) {
	var verr *booking.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "Validation failed.",
			"errors":  verr.Fields,
		})
	case errors.Is(err, booking.ErrNotFound), errors.Is(err, booking.ErrSpotNotFound):
		RespondWithError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, booking.ErrForbidden):
		RespondWithError(c, http.StatusForbidden, err.Error())
	case errors.Is(err, booking.ErrConflict), errors.Is(err, booking.ErrSpotBusy):
		RespondWithError(c, http.StatusConflict, err.Error())
	case errors.Is(err, booking.ErrSpotUnavailable), errors.Is(err, booking.ErrNotActive):
		RespondWithError(c, http.StatusBadRequest, err.Error())
	default:
		RespondWithError(c, http.StatusInternalServerError, "Something went wrong. Please try again.")
	}
}
