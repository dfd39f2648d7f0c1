package delivery

import (
	"net/http"

	"catalog_service/internal/catalogsync"
	"catalog_service/internal/domain"
	"catalog_service/internal/render"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Mirror is the service-wide catalog view pages are rendered from.
type Mirror interface {
	Categories() []domain.Category
	Products() []domain.Product
	Ready() <-chan struct{}
	LastMessage() *render.Message
	Status() catalogsync.Status
}

// LiveServer serves the websocket behind GET /ws.
type LiveServer interface {
	ServeHTTP(w http.ResponseWriter, r *http.Request, identity domain.Identity)
}

type CatalogHandler struct {
	mirror   Mirror
	renderer *render.Renderer
	live     LiveServer
	log      *logrus.Logger
}

func NewCatalogHandler(mirror Mirror, renderer *render.Renderer, live LiveServer, logger *logrus.Logger) *CatalogHandler {
	return &CatalogHandler{
		mirror:   mirror,
		renderer: renderer,
		live:     live,
		log:      logger,
	}
}

func (h *CatalogHandler) ShowCatalog(c *gin.Context) {
	filter := domain.ProductFilter{Category: c.Query("category")}
	categories := h.mirror.Categories()
	all := h.mirror.Products()

	products := make([]domain.Product, 0, len(all))
	for _, p := range all {
		if filter.Match(p) {
			products = append(products, p)
		}
	}

	page := h.renderer.CatalogPage(categories, all, filter, h.mirror.LastMessage(), !isReady(h.mirror))
	page.Grid = h.renderer.ProductGrid(products, filter)
	c.HTML(http.StatusOK, "catalog.html", page)
}

func (h *CatalogHandler) ServeLive(c *gin.Context) {
	if h.live == nil {
		c.AbortWithStatus(http.StatusNotFound)
		return
	}
	h.live.ServeHTTP(c.Writer, c.Request, currentIdentity(c))
}

// Readyz reports whether the initial load finished. Store errors are not echoed.
func (h *CatalogHandler) Readyz(c *gin.Context) {
	st := h.mirror.Status()
	if st.LastError != "" {
		st.LastError = "catalog load failed"
	}
	code := http.StatusOK
	if !st.Ready {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, st)
}

func (h *CatalogHandler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func isReady(m Mirror) bool {
	select {
	case <-m.Ready():
		return true
	default:
		return false
	}
}
