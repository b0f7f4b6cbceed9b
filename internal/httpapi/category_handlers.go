package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vladislavdragonenkov/foodstore/internal/domain"
)

func (s *Server) createCategory(c *gin.Context) {
	var req categoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, domain.NewValidationError("name", "Name is Required"), "Error in category")
		return
	}

	category, err := s.catalog.CreateCategory(c.Request.Context(), req.Name)
	if err != nil {
		respondError(c, err, "Error in category")
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"success":  true,
		"message":  "New category created",
		"category": toCategoryResponse(category),
	})
}

func (s *Server) listCategories(c *gin.Context) {
	categories, err := s.catalog.ListCategories(c.Request.Context())
	if err != nil {
		respondError(c, err, "Error while getting all categories")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"message":    "All Categories List",
		"categories": toCategoriesResponse(categories),
	})
}
