package delivery

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"catalog_service/internal/domain"
	"catalog_service/internal/usecase"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type CategoryAPIHandler struct {
	useCase usecase.CategoryUseCase
	log     *logrus.Logger
}

func NewCategoryAPIHandler(uc usecase.CategoryUseCase, logger *logrus.Logger) *CategoryAPIHandler {
	return &CategoryAPIHandler{
		useCase: uc,
		log:     logger,
	}
}

func (h *CategoryAPIHandler) RegisterRoutes(router gin.IRouter) {
	categories := router.Group("/categories")
	{
		categories.POST("", h.CreateCategory)
		categories.GET("", h.ListCategories)
		categories.GET("/:id", h.GetCategoryByID)
		categories.PUT("/:id", h.UpdateCategory)
		categories.DELETE("/:id", h.DeleteCategory)
	}
}

func (h *CategoryAPIHandler) CreateCategory(c *gin.Context) {
	var form usecase.CategoryForm
	if err := c.ShouldBindJSON(&form); err != nil {
		h.log.Errorf("Failed to bind JSON for create category: %v", err)
		ErrorResponse(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	created, err := h.useCase.CreateCategory(c.Request.Context(), form)
	if err != nil {
		h.log.Errorf("Failed to create category '%s': %v", form.Name, err)
		ErrorResponse(c, mapErrorToStatus(err), "Failed to create category: "+publicMessage(err))
		return
	}

	h.log.Infof("Category created successfully: ID %s, Name %s", created.ID, created.Name)
	SuccessResponse(c, http.StatusCreated, "Category created successfully", created)
}

func (h *CategoryAPIHandler) GetCategoryByID(c *gin.Context) {
	id := c.Param("id")
	category, err := h.useCase.GetCategoryByID(c.Request.Context(), id)
	if err != nil {
		h.log.Warnf("Failed to get category by ID %s: %v", id, err)
		ErrorResponse(c, mapErrorToStatus(err), "Failed to retrieve category: "+publicMessage(err))
		return
	}
	SuccessResponse(c, http.StatusOK, "Category retrieved successfully", category)
}

func (h *CategoryAPIHandler) UpdateCategory(c *gin.Context) {
	id := c.Param("id")
	var form usecase.CategoryForm
	if err := c.ShouldBindJSON(&form); err != nil {
		h.log.Errorf("Failed to bind JSON for update category ID %s: %v", id, err)
		ErrorResponse(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	updated, err := h.useCase.UpdateCategory(c.Request.Context(), id, form)
	if err != nil {
		h.log.Errorf("Failed to update category ID %s: %v", id, err)
		ErrorResponse(c, mapErrorToStatus(err), "Failed to update category: "+publicMessage(err))
		return
	}
	SuccessResponse(c, http.StatusOK, "Category updated successfully", updated)
}

func (h *CategoryAPIHandler) DeleteCategory(c *gin.Context) {
	id := c.Param("id")
	if err := h.useCase.DeleteCategory(c.Request.Context(), id, true); err != nil {
		h.log.Errorf("Failed to delete category ID %s: %v", id, err)
		ErrorResponse(c, mapErrorToStatus(err), "Failed to delete category: "+publicMessage(err))
		return
	}
	SuccessResponse(c, http.StatusOK, "Category deleted successfully", nil)
}

func (h *CategoryAPIHandler) ListCategories(c *gin.Context) {
	categories, err := h.useCase.ListCategories(c.Request.Context())
	if err != nil {
		h.log.Errorf("Failed to list categories: %v", err)
		ErrorResponse(c, mapErrorToStatus(err), "Failed to list categories: "+publicMessage(err))
		return
	}
	SuccessResponse(c, http.StatusOK, "Categories retrieved successfully", categories)
}

type ProductAPIHandler struct {
	useCase usecase.ProductUseCase
	log     *logrus.Logger
}

func NewProductAPIHandler(uc usecase.ProductUseCase, logger *logrus.Logger) *ProductAPIHandler {
	return &ProductAPIHandler{
		useCase: uc,
		log:     logger,
	}
}

func (h *ProductAPIHandler) RegisterRoutes(router gin.IRouter) {
	products := router.Group("/products")
	{
		products.POST("", h.CreateProduct)
		products.GET("", h.ListProducts)
		products.GET("/:id", h.GetProductByID)
		products.PUT("/:id", h.UpdateProduct)
		products.DELETE("/:id", h.DeleteProduct)
	}
}

// productRequest accepts the price as a JSON number or a string.
type productRequest struct {
	Name          string      `json:"name"`
	Price         interface{} `json:"price"`
	Category      string      `json:"category"`
	ImageURL      string      `json:"imageUrl"`
	Description   string      `json:"description"`
	ComponentsURL string      `json:"componentsUrl"`
	VideoURL      string      `json:"videoUrl"`
}

func (r productRequest) form() (usecase.ProductForm, error) {
	form := usecase.ProductForm{
		Name:          r.Name,
		Category:      r.Category,
		ImageURL:      r.ImageURL,
		Description:   r.Description,
		ComponentsURL: r.ComponentsURL,
		VideoURL:      r.VideoURL,
	}
	switch v := r.Price.(type) {
	case nil:
	case float64:
		form.Price = strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		form.Price = v.String()
	case string:
		form.Price = v
	default:
		return form, fmt.Errorf("%w: price must be a number", domain.ErrInvalidInput)
	}
	return form, nil
}

func (h *ProductAPIHandler) bind(c *gin.Context) (usecase.ProductForm, bool) {
	var req productRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Errorf("Failed to bind JSON for product: %v", err)
		ErrorResponse(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return usecase.ProductForm{}, false
	}
	form, err := req.form()
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return usecase.ProductForm{}, false
	}
	return form, true
}

func (h *ProductAPIHandler) CreateProduct(c *gin.Context) {
	form, ok := h.bind(c)
	if !ok {
		return
	}

	created, err := h.useCase.CreateProduct(c.Request.Context(), form)
	if err != nil {
		h.log.Errorf("Failed to create product '%s': %v", form.Name, err)
		ErrorResponse(c, mapErrorToStatus(err), "Failed to create product: "+publicMessage(err))
		return
	}

	h.log.Infof("Product created successfully: ID %s, Name %s", created.ID, created.Name)
	SuccessResponse(c, http.StatusCreated, "Product created successfully", created)
}

func (h *ProductAPIHandler) GetProductByID(c *gin.Context) {
	id := c.Param("id")
	product, err := h.useCase.GetProductByID(c.Request.Context(), id)
	if err != nil {
		h.log.Warnf("Failed to get product by ID %s: %v", id, err)
		ErrorResponse(c, mapErrorToStatus(err), "Failed to retrieve product: "+publicMessage(err))
		return
	}
	SuccessResponse(c, http.StatusOK, "Product retrieved successfully", product)
}

func (h *ProductAPIHandler) UpdateProduct(c *gin.Context) {
	id := c.Param("id")
	form, ok := h.bind(c)
	if !ok {
		return
	}

	updated, err := h.useCase.UpdateProduct(c.Request.Context(), id, form)
	if err != nil {
		h.log.Errorf("Failed to update product ID %s: %v", id, err)
		ErrorResponse(c, mapErrorToStatus(err), "Failed to update product: "+publicMessage(err))
		return
	}
	SuccessResponse(c, http.StatusOK, "Product updated successfully", updated)
}

func (h *ProductAPIHandler) DeleteProduct(c *gin.Context) {
	id := c.Param("id")
	if err := h.useCase.DeleteProduct(c.Request.Context(), id, true); err != nil {
		h.log.Errorf("Failed to delete product ID %s: %v", id, err)
		ErrorResponse(c, mapErrorToStatus(err), "Failed to delete product: "+publicMessage(err))
		return
	}
	SuccessResponse(c, http.StatusOK, "Product deleted successfully", nil)
}

func (h *ProductAPIHandler) ListProducts(c *gin.Context) {
	filter := domain.ProductFilter{Category: c.Query("category")}
	products, err := h.useCase.ListProducts(c.Request.Context(), filter)
	if err != nil {
		h.log.Errorf("Failed to list products: %v", err)
		ErrorResponse(c, mapErrorToStatus(err), "Failed to list products: "+publicMessage(err))
		return
	}
	SuccessResponse(c, http.StatusOK, "Products retrieved successfully", products)
}
