package delivery

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"catalog_service/internal/domain"
	"catalog_service/internal/render"
	"catalog_service/internal/usecase"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const flashCookie = "flash"

type AdminHandler struct {
	categories usecase.CategoryUseCase
	products   usecase.ProductUseCase
	mirror     Mirror
	cookies    cookies
	log        *logrus.Logger
}

func NewAdminHandler(cuc usecase.CategoryUseCase, puc usecase.ProductUseCase, mirror Mirror, k cookies, logger *logrus.Logger) *AdminHandler {
	return &AdminHandler{
		categories: cuc,
		products:   puc,
		mirror:     mirror,
		cookies:    k,
		log:        logger,
	}
}

func (h *AdminHandler) RegisterRoutes(router gin.IRouter) {
	router.GET("", h.ShowAdmin)

	categories := router.Group("/categories")
	{
		categories.POST("", h.CreateCategory)
		categories.POST("/:id", h.UpdateCategory)
		categories.GET("/:id/delete", h.ConfirmDeleteCategory)
		categories.POST("/:id/delete", h.DeleteCategory)
	}

	products := router.Group("/products")
	{
		products.POST("", h.CreateProduct)
		products.POST("/:id", h.UpdateProduct)
		products.GET("/:id/delete", h.ConfirmDeleteProduct)
		products.POST("/:id/delete", h.DeleteProduct)
	}
}

func (h *AdminHandler) ShowAdmin(c *gin.Context) {
	ctx := c.Request.Context()
	categories := h.mirror.Categories()
	page := render.AdminPage{
		Title:      "Panel de administración",
		Email:      currentIdentity(c).Email,
		Categories: categories,
		Products:   render.AdminProducts(h.mirror.Products(), categories),
		Message:    h.popFlash(c),
	}
	if page.Message == nil {
		page.Message = h.mirror.LastMessage()
	}

	if id := c.Query("category"); id != "" {
		category, err := h.categories.GetCategoryByID(ctx, id)
		if err != nil {
			page.Message = errorMessage(err, "Error al cargar datos de la categoría.", "Categoría no encontrada.")
		} else {
			page.Category = category
		}
	}
	if id := c.Query("product"); id != "" {
		product, err := h.products.GetProductByID(ctx, id)
		if err != nil {
			page.Message = errorMessage(err, "Error al cargar datos del producto.", "Producto no encontrado.")
		} else {
			page.Product = product
		}
	}

	c.HTML(http.StatusOK, "admin.html", page)
}

func (h *AdminHandler) CreateCategory(c *gin.Context) {
	var form usecase.CategoryForm
	if err := c.ShouldBind(&form); err != nil {
		h.log.Warnf("Failed to bind category form: %v", err)
		h.redirect(c, "/admin", failure("Error al crear categoría."))
		return
	}

	created, err := h.categories.CreateCategory(c.Request.Context(), form)
	if err != nil {
		h.log.Errorf("Failed to create category '%s': %v", form.Name, err)
		h.redirect(c, "/admin", errorMessage(err, "Error al crear categoría.", "Categoría no encontrada."))
		return
	}
	h.redirect(c, "/admin", success(fmt.Sprintf("Categoría \"%s\" creada exitosamente.", created.Name)))
}

func (h *AdminHandler) UpdateCategory(c *gin.Context) {
	id := c.Param("id")
	var form usecase.CategoryForm
	if err := c.ShouldBind(&form); err != nil {
		h.log.Warnf("Failed to bind category form for ID %s: %v", id, err)
		h.redirect(c, "/admin?category="+id, failure("Error al actualizar categoría."))
		return
	}

	updated, err := h.categories.UpdateCategory(c.Request.Context(), id, form)
	if err != nil {
		h.log.Errorf("Failed to update category ID %s: %v", id, err)
		h.redirect(c, "/admin?category="+id, errorMessage(err, "Error al actualizar categoría.", "Categoría no encontrada."))
		return
	}
	h.redirect(c, "/admin", success(fmt.Sprintf("Categoría \"%s\" actualizada exitosamente.", updated.Name)))
}

func (h *AdminHandler) ConfirmDeleteCategory(c *gin.Context) {
	id := c.Param("id")
	category, err := h.categories.GetCategoryByID(c.Request.Context(), id)
	if err != nil {
		h.redirect(c, "/admin", errorMessage(err, "Error al cargar datos de la categoría.", "Categoría no encontrada."))
		return
	}
	c.HTML(http.StatusOK, "confirm_delete.html", render.ConfirmDeletePage{
		Title:  "Eliminar categoría",
		Kind:   "la categoría",
		ID:     category.ID,
		Name:   category.Name,
		Action: "/admin/categories/" + category.ID + "/delete",
	})
}

func (h *AdminHandler) DeleteCategory(c *gin.Context) {
	id := c.Param("id")
	err := h.categories.DeleteCategory(c.Request.Context(), id, c.PostForm("confirm") == "yes")
	if errors.Is(err, domain.ErrConfirmationRequired) {
		c.Redirect(http.StatusSeeOther, "/admin/categories/"+id+"/delete")
		return
	}
	if err != nil {
		h.log.Errorf("Failed to delete category ID %s: %v", id, err)
		h.redirect(c, "/admin", errorMessage(err, "Error al eliminar categoría.", "Categoría no encontrada."))
		return
	}
	h.redirect(c, "/admin", success("Categoría eliminada exitosamente."))
}

func (h *AdminHandler) CreateProduct(c *gin.Context) {
	var form usecase.ProductForm
	if err := c.ShouldBind(&form); err != nil {
		h.log.Warnf("Failed to bind product form: %v", err)
		h.redirect(c, "/admin", failure("Error al crear producto."))
		return
	}

	created, err := h.products.CreateProduct(c.Request.Context(), form)
	if err != nil {
		h.log.Errorf("Failed to create product '%s': %v", form.Name, err)
		h.redirect(c, "/admin", errorMessage(err, "Error al crear producto.", "Producto no encontrado."))
		return
	}
	h.redirect(c, "/admin", success(fmt.Sprintf("Producto \"%s\" creado exitosamente.", created.Name)))
}

func (h *AdminHandler) UpdateProduct(c *gin.Context) {
	id := c.Param("id")
	var form usecase.ProductForm
	if err := c.ShouldBind(&form); err != nil {
		h.log.Warnf("Failed to bind product form for ID %s: %v", id, err)
		h.redirect(c, "/admin?product="+id, failure("Error al actualizar producto."))
		return
	}

	updated, err := h.products.UpdateProduct(c.Request.Context(), id, form)
	if err != nil {
		h.log.Errorf("Failed to update product ID %s: %v", id, err)
		h.redirect(c, "/admin?product="+id, errorMessage(err, "Error al actualizar producto.", "Producto no encontrado."))
		return
	}
	h.redirect(c, "/admin", success(fmt.Sprintf("Producto \"%s\" actualizado exitosamente.", updated.Name)))
}

func (h *AdminHandler) ConfirmDeleteProduct(c *gin.Context) {
	id := c.Param("id")
	product, err := h.products.GetProductByID(c.Request.Context(), id)
	if err != nil {
		h.redirect(c, "/admin", errorMessage(err, "Error al cargar datos del producto.", "Producto no encontrado."))
		return
	}
	c.HTML(http.StatusOK, "confirm_delete.html", render.ConfirmDeletePage{
		Title:  "Eliminar producto",
		Kind:   "el producto",
		ID:     product.ID,
		Name:   product.Name,
		Action: "/admin/products/" + product.ID + "/delete",
	})
}

func (h *AdminHandler) DeleteProduct(c *gin.Context) {
	id := c.Param("id")
	err := h.products.DeleteProduct(c.Request.Context(), id, c.PostForm("confirm") == "yes")
	if errors.Is(err, domain.ErrConfirmationRequired) {
		c.Redirect(http.StatusSeeOther, "/admin/products/"+id+"/delete")
		return
	}
	if err != nil {
		h.log.Errorf("Failed to delete product ID %s: %v", id, err)
		h.redirect(c, "/admin", errorMessage(err, "Error al eliminar producto.", "Producto no encontrado."))
		return
	}
	h.redirect(c, "/admin", success("Producto eliminado exitosamente."))
}

// redirect answers a form post with a 303 and leaves msg for the next page.
func (h *AdminHandler) redirect(c *gin.Context, location string, msg *render.Message) {
	setFlash(c, h.cookies, msg)
	c.Redirect(http.StatusSeeOther, location)
}

func (h *AdminHandler) popFlash(c *gin.Context) *render.Message {
	raw, err := c.Cookie(flashCookie)
	if err != nil || raw == "" {
		return nil
	}
	h.cookies.clear(c, flashCookie)
	kind, text, ok := strings.Cut(raw, "|")
	if !ok || text == "" {
		return nil
	}
	switch kind {
	case render.MessageError, render.MessageInfo, render.MessageSuccess:
	default:
		kind = render.MessageInfo
	}
	return &render.Message{Kind: kind, Text: text}
}

func setFlash(c *gin.Context, k cookies, msg *render.Message) {
	if msg == nil {
		return
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(flashCookie, msg.Kind+"|"+msg.Text, 60, "/", "", k.secure, true)
}

func success(text string) *render.Message {
	return &render.Message{Kind: render.MessageSuccess, Text: text}
}

func failure(text string) *render.Message {
	return &render.Message{Kind: render.MessageError, Text: text}
}

// errorMessage picks the text shown for a failed admin action: validation
// messages are shown as they are, anything else gets a generic text.
func errorMessage(err error, fallback, notFound string) *render.Message {
	var validation *domain.ValidationError
	switch {
	case errors.As(err, &validation):
		return failure(validation.Message)
	case errors.Is(err, domain.ErrNotFound):
		return failure(notFound)
	}
	return failure(fallback)
}
