package handlers

import (
	"net/http"

	"github.com/adminboard/backend-api/internal/logging"
	"github.com/adminboard/backend-api/internal/models"
	"github.com/adminboard/backend-api/internal/services"
	"github.com/gin-gonic/gin"
)

// CatalogHandler serves product and category CRUD.
type CatalogHandler struct {
	catalog *services.CatalogService
	logger  *logging.StandardLogger
}

func NewCatalogHandler(catalog *services.CatalogService, logger *logging.StandardLogger) *CatalogHandler {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &CatalogHandler{catalog: catalog, logger: logger.WithComponent("catalog_handler")}
}

func (h *CatalogHandler) fail(c *gin.Context, err error, action string) {
	respondError(c, h.logger, err, action, http.StatusConflict)
}

func (h *CatalogHandler) ListCategories(c *gin.Context) {
	categories, err := h.catalog.ListCategories(c.Request.Context())
	if err != nil {
		h.fail(c, err, "list_categories")
		return
	}
	if categories == nil {
		categories = []models.ProductCategory{}
	}
	c.JSON(http.StatusOK, categories)
}

func (h *CatalogHandler) GetCategory(c *gin.Context) {
	category, err := h.catalog.GetCategory(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err, "get_category")
		return
	}
	c.JSON(http.StatusOK, category)
}

func (h *CatalogHandler) CreateCategory(c *gin.Context) {
	var req models.CategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Category name is required.")
		return
	}
	category, err := h.catalog.CreateCategory(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err, "create_category")
		return
	}
	c.JSON(http.StatusCreated, category)
}

func (h *CatalogHandler) UpdateCategory(c *gin.Context) {
	var req models.CategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Category name is required.")
		return
	}
	category, err := h.catalog.UpdateCategory(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		h.fail(c, err, "update_category")
		return
	}
	c.JSON(http.StatusOK, category)
}

func (h *CatalogHandler) DeleteCategory(c *gin.Context) {
	if err := h.catalog.DeleteCategory(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err, "delete_category")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Category deleted successfully"})
}

// ListProducts optionally filters by ?category=<id>.
func (h *CatalogHandler) ListProducts(c *gin.Context) {
	products, err := h.catalog.ListProducts(c.Request.Context(), c.Query("category"))
	if err != nil {
		h.fail(c, err, "list_products")
		return
	}
	if products == nil {
		products = []models.Product{}
	}
	c.JSON(http.StatusOK, products)
}

func (h *CatalogHandler) GetProduct(c *gin.Context) {
	product, err := h.catalog.GetProduct(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err, "get_product")
		return
	}
	c.JSON(http.StatusOK, product)
}

func (h *CatalogHandler) CreateProduct(c *gin.Context) {
	var req models.ProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "productName, price, image and category are required.")
		return
	}
	product, err := h.catalog.CreateProduct(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err, "create_product")
		return
	}
	c.JSON(http.StatusCreated, product)
}

func (h *CatalogHandler) UpdateProduct(c *gin.Context) {
	var req models.ProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "productName, price, image and category are required.")
		return
	}
	product, err := h.catalog.UpdateProduct(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		h.fail(c, err, "update_product")
		return
	}
	c.JSON(http.StatusOK, product)
}

func (h *CatalogHandler) DeleteProduct(c *gin.Context) {
	if err := h.catalog.DeleteProduct(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err, "delete_product")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Product deleted successfully"})
}
