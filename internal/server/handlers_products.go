package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/liveshop/liveshop/internal/domain"
	apperrors "github.com/liveshop/liveshop/internal/errors"
)

const (
	maxProductNameLength        = 100
	maxProductDescriptionLength = 1000
)

type productRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Price       *float64 `json:"price"`
	ImageURL    string   `json:"imageUrl"`
	Stock       *int     `json:"stock"`
	Category    string   `json:"category"`
	IsActive    *bool    `json:"isActive"`
}

func (r productRequest) validate() error {
	if r.Name == "" {
		return apperrors.ValidationError("Product name is required")
	}
	if len(r.Name) > maxProductNameLength {
		return apperrors.ValidationError(fmt.Sprintf("Product name cannot exceed %d characters", maxProductNameLength))
	}
	if r.Description == "" {
		return apperrors.ValidationError("Product description is required")
	}
	if len(r.Description) > maxProductDescriptionLength {
		return apperrors.ValidationError(fmt.Sprintf("Description cannot exceed %d characters", maxProductDescriptionLength))
	}
	if r.Price == nil {
		return apperrors.ValidationError("Product price is required")
	}
	if *r.Price < 0 {
		return apperrors.ValidationError("Price cannot be negative")
	}
	if r.Stock != nil && *r.Stock < 0 {
		return apperrors.ValidationError("Stock cannot be negative")
	}
	if r.Category != "" && !domain.ValidCategory(r.Category) {
		return apperrors.ValidationError("Invalid product category")
	}
	return nil
}

// toProduct applies the schema defaults: stock 0, category Other (set by the
// store), isActive true.
func (r productRequest) toProduct() domain.Product {
	p := domain.Product{
		Name:        r.Name,
		Description: r.Description,
		Price:       *r.Price,
		ImageURL:    r.ImageURL,
		Category:    r.Category,
		IsActive:    true,
	}
	if r.Stock != nil {
		p.Stock = *r.Stock
	}
	if r.IsActive != nil {
		p.IsActive = *r.IsActive
	}
	return p
}

func (s *Server) handleListProducts(c echo.Context) error {
	ctx := c.Request().Context()

	filter := domain.ProductFilter{
		Category: c.QueryParam("category"),
		Search:   c.QueryParam("search"),
	}
	if isActive := c.QueryParam("isActive"); isActive != "" {
		active := isActive == "true"
		filter.IsActive = &active
	}

	products, err := s.products.List(ctx, filter)
	if err != nil {
		return apperrors.InternalError("Failed to list products", err)
	}
	if products == nil {
		products = []domain.Product{}
	}

	return c.JSON(http.StatusOK, listResponse{Success: true, Count: len(products), Data: products})
}

func (s *Server) handleGetProduct(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperrors.ValidationError("Invalid product ID")
	}

	product, err := s.products.GetByID(ctx, id)
	if errors.Is(err, domain.ErrProductNotFound) {
		return apperrors.NotFoundError("Product not found")
	}
	if err != nil {
		return apperrors.InternalError("Failed to get product", err)
	}

	return c.JSON(http.StatusOK, dataResponse{Success: true, Data: product})
}

func (s *Server) handleCreateProduct(c echo.Context) error {
	ctx := c.Request().Context()

	var req productRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("Invalid request body")
	}
	if err := req.validate(); err != nil {
		return err
	}

	product, err := s.products.Create(ctx, req.toProduct())
	if err != nil {
		return apperrors.InternalError("Failed to create product", err)
	}

	return c.JSON(http.StatusCreated, dataResponse{
		Success: true,
		Message: "Product created successfully",
		Data:    product,
	})
}

func (s *Server) handleUpdateProduct(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperrors.ValidationError("Invalid product ID")
	}

	var req productRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("Invalid request body")
	}
	if err := req.validate(); err != nil {
		return err
	}

	product, err := s.products.Update(ctx, id, req.toProduct())
	if errors.Is(err, domain.ErrProductNotFound) {
		return apperrors.NotFoundError("Product not found")
	}
	if err != nil {
		return apperrors.InternalError("Failed to update product", err)
	}

	return c.JSON(http.StatusOK, dataResponse{
		Success: true,
		Message: "Product updated successfully",
		Data:    product,
	})
}

func (s *Server) handleDeleteProduct(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperrors.ValidationError("Invalid product ID")
	}

	err = s.products.Delete(ctx, id)
	if errors.Is(err, domain.ErrProductNotFound) {
		return apperrors.NotFoundError("Product not found")
	}
	if err != nil {
		return apperrors.InternalError("Failed to delete product", err)
	}

	return c.JSON(http.StatusOK, messageResponse{Success: true, Message: "Product deleted successfully"})
}
