package handler

import (
	"log/slog"
	"net/http"

	"product_catalog/internal/model"
	"product_catalog/internal/pipeline"
	"product_catalog/internal/service"

	"github.com/gin-gonic/gin"
)

// ProductHandler handles catalog requests
type ProductHandler struct {
	service service.ProductService
	logger  *slog.Logger
}

// NewProductHandler creates a new ProductHandler
func NewProductHandler(s service.ProductService, logger *slog.Logger) *ProductHandler {
	return &ProductHandler{service: s, logger: logger}
}

func (h *ProductHandler) CreateProduct(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	var attrs model.ProductAttrs
	if err := c.ShouldBindJSON(&attrs); err != nil {
		respondError(c, h.logger, service.BindingError(err))
		return
	}

	product, err := h.service.Create(c.Request.Context(), p, attrs)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, product)
}

// BulkCreateProducts expects a JSON array of products
func (h *ProductHandler) BulkCreateProducts(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	var items []model.ProductAttrs
	if err := c.ShouldBindJSON(&items); err != nil {
		respondError(c, h.logger, service.BindingError(err))
		return
	}

	products, err := h.service.BulkCreate(c.Request.Context(), p, items)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"products": products, "count": len(products)})
}

func (h *ProductHandler) ListProducts(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	opts, err := pipeline.ParseListQuery(c.Request.URL.Query())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	page, err := h.service.List(c.Request.Context(), p, opts)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *ProductHandler) GetProduct(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	id, err := model.ParseID("id", c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	product, err := h.service.GetByID(c.Request.Context(), p, id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func (h *ProductHandler) UpdateProduct(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	id, err := model.ParseID("id", c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	var patch model.ProductPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		respondError(c, h.logger, service.BindingError(err))
		return
	}

	product, err := h.service.Update(c.Request.Context(), p, id, patch)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func (h *ProductHandler) DeleteProduct(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	id, err := model.ParseID("id", c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	if err := h.service.Delete(c.Request.Context(), p, id); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Product deleted successfully"})
}

func (h *ProductHandler) ProductStats(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	stats, err := h.service.Stats(c.Request.Context(), p)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *ProductHandler) CategoryStats(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	stats, err := h.service.CategoryStats(c.Request.Context(), p)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"categories": stats})
}

// RegisterProductRoutes registers product routes; all of them require authentication
func (h *ProductHandler) RegisterProductRoutes(rg *gin.RouterGroup, requireAuth gin.HandlerFunc) {
	productGroup := rg.Group("/products", requireAuth)
	{
		productGroup.POST("", h.CreateProduct)
		productGroup.POST("/bulk", h.BulkCreateProducts)
		productGroup.GET("", h.ListProducts)
		productGroup.GET("/stats", h.ProductStats)
		productGroup.GET("/stats/categories", h.CategoryStats)
		productGroup.GET("/:id", h.GetProduct)
		productGroup.PUT("/:id", h.UpdateProduct)
		productGroup.DELETE("/:id", h.DeleteProduct)
	}
}
