package httpapi

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/vladislavdragonenkov/foodstore/internal/domain"
)

func (s *Server) createFood(c *gin.Context) {
	input, err := readFoodForm(c)
	if err != nil {
		respondError(c, err, "Error in creating food")
		return
	}

	food, err := s.catalog.Create(c.Request.Context(), input)
	if err != nil {
		respondError(c, err, "Error in creating food")
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "Food Created Successfully",
		"foods":   toFoodResponse(food),
	})
}

func (s *Server) updateFood(c *gin.Context) {
	input, err := readFoodForm(c)
	if err != nil {
		respondError(c, err, "Error in updating food")
		return
	}

	food, err := s.catalog.Update(c.Request.Context(), c.Param("id"), input)
	if err != nil {
		respondError(c, err, "Error in updating food")
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "Food Updated Successfully",
		"foods":   toFoodResponse(food),
	})
}

func (s *Server) deleteFood(c *gin.Context) {
	if err := s.catalog.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err, "Error while deleting food")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Food Deleted successfully",
	})
}

func (s *Server) getFoods(c *gin.Context) {
	foods, err := s.catalog.GetAll(c.Request.Context())
	if err != nil {
		respondError(c, err, "Error in getting foods")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"counTotal": len(foods),
		"message":   "All foods",
		"foods":     toFoodsResponse(foods),
	})
}

func (s *Server) getFood(c *gin.Context) {
	food, err := s.catalog.GetOne(c.Request.Context(), c.Param("slug"))
	if err != nil {
		respondError(c, err, "Error while getting single food")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Single Food Fetched",
		"food":    toFoodResponse(food),
	})
}

// foodPhoto отдаёт байты фото; 204, если фото не загружалось.
func (s *Server) foodPhoto(c *gin.Context) {
	photo, err := s.catalog.GetPhoto(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, "Error while getting photo")
		return
	}
	if photo.Empty() {
		c.Status(http.StatusNoContent)
		return
	}
	contentType := photo.ContentType
	if contentType == "" {
		contentType = http.DetectContentType(photo.Data)
	}
	c.Data(http.StatusOK, contentType, photo.Data)
}

func (s *Server) filterFoods(c *gin.Context) {
	var req filterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, domain.NewValidationError("body", "Invalid filter payload"), "Error while filtering foods")
		return
	}

	foods, err := s.catalog.Filter(c.Request.Context(), req.Checked, req.Radio)
	if err != nil {
		respondError(c, err, "Error while filtering foods")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"foods":   toFoodsResponse(foods),
	})
}

func (s *Server) foodCount(c *gin.Context) {
	total, err := s.catalog.Count(c.Request.Context())
	if err != nil {
		respondError(c, err, "Error in food count")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"total":   total,
	})
}

func (s *Server) foodList(c *gin.Context) {
	page, err := strconv.Atoi(c.Param("page"))
	if err != nil {
		respondError(c, domain.NewValidationError("page", "Page must be an integer"), "Error in per page list")
		return
	}

	foods, err := s.catalog.List(c.Request.Context(), page)
	if err != nil {
		respondError(c, err, "Error in per page list")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"foods":   toFoodsResponse(foods),
	})
}

func (s *Server) searchFoods(c *gin.Context) {
	foods, err := s.catalog.Search(c.Request.Context(), c.Param("keyword"))
	if err != nil {
		respondError(c, err, "Error in search food API")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"foods":   toFoodsResponse(foods),
	})
}

func (s *Server) relatedFoods(c *gin.Context) {
	foods, err := s.catalog.Related(c.Request.Context(), c.Param("id"), c.Param("categoryId"))
	if err != nil {
		respondError(c, err, "Error while getting related food")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"foods":   toFoodsResponse(foods),
	})
}

func (s *Server) foodsByCategory(c *gin.Context) {
	category, foods, err := s.catalog.ListItemsByCategory(c.Request.Context(), c.Param("slug"))
	if err != nil {
		respondError(c, err, "Error while getting foods")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"category": toCategoryResponse(category),
		"foods":    toFoodsResponse(foods),
	})
}

// readFoodForm читает multipart-форму блюда. Фото необязательно.
func readFoodForm(c *gin.Context) (domain.FoodInput, error) {
	input := domain.FoodInput{
		Name:        c.PostForm("name"),
		Description: c.PostForm("description"),
		Price:       c.PostForm("price"),
		Category:    c.PostForm("category"),
		Quantity:    c.PostForm("quantity"),
		Shipping:    c.PostForm("shipping"),
	}

	header, err := c.FormFile("photo")
	switch {
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
		return input, nil
	case err != nil:
		return input, domain.NewValidationError("photo", "Invalid photo upload")
	}

	photo, err := readPhoto(header)
	if err != nil {
		return input, err
	}
	input.Photo = photo
	return input, nil
}

// readPhoto читает не больше MaxPhotoSize+1 байт: этого достаточно, чтобы отклонить слишком большой файл.
func readPhoto(header *multipart.FileHeader) (*domain.Photo, error) {
	if header.Size > domain.MaxPhotoSize {
		return &domain.Photo{Size: header.Size}, nil
	}

	file, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("open photo: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, domain.MaxPhotoSize+1))
	if err != nil {
		return nil, fmt.Errorf("read photo: %w", err)
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}
	size := header.Size
	if int64(len(data)) > size {
		size = int64(len(data))
	}
	return &domain.Photo{Data: data, ContentType: contentType, Size: size}, nil
}
