package pagination

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

const (
	DefaultPage = 1
	// RequestsPerPage is the fixed page size of the refueling request list.
	RequestsPerPage = 10
)

// Meta describes the position of a page within the full result set.
type Meta struct {
	CurrentPage int   `json:"currentPage"`
	LastPage    int   `json:"lastPage"`
	PerPage     int   `json:"perPage"`
	Total       int64 `json:"total"`
}

// ParsePage extracts the page query parameter, falling back to the first page.
func ParsePage(c *gin.Context) int {
	page, err := strconv.Atoi(c.DefaultQuery("page", strconv.Itoa(DefaultPage)))
	if err != nil || page < 1 {
		return DefaultPage
	}
	return page
}

// Offset returns the number of rows before page.
func Offset(page, perPage int) int {
	if page < 1 {
		page = DefaultPage
	}
	return (page - 1) * perPage
}

// NewMeta builds page metadata; an empty result still has one (empty) last page.
func NewMeta(page, perPage int, total int64) Meta {
	lastPage := int((total + int64(perPage) - 1) / int64(perPage))
	if lastPage < 1 {
		lastPage = 1
	}
	return Meta{
		CurrentPage: page,
		LastPage:    lastPage,
		PerPage:     perPage,
		Total:       total,
	}
}
