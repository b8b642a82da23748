package helpers

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

func StringToInt(s string) (int, error) {
	return strconv.Atoi(s)
}

func StringToFloat(s string) (float64, error) {
	return strconv.ParseFloat(s, 64)
}

// Pagination carries the page/limit pair parsed from query params.
type Pagination struct {
	Page  int
	Limit int
}

func (p Pagination) Offset() int {
	return (p.Page - 1) * p.Limit
}

func (p Pagination) TotalPages(total int64) int64 {
	return (total + int64(p.Limit) - 1) / int64(p.Limit)
}

// ParsePagination reads page and limit query params, defaulting to
// page 1 with 10 items and capping limit at 100.
func ParsePagination(c *gin.Context) (Pagination, error) {
	page, err := StringToInt(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	limit, err := StringToInt(c.DefaultQuery("limit", "10"))
	if err != nil || limit < 1 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}
	return Pagination{Page: page, Limit: limit}, nil
}
