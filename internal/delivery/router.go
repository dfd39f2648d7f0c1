package delivery

import (
	"catalog_service/internal/render"
	"catalog_service/internal/usecase"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type RouterDeps struct {
	Auth       Authenticator
	Mirror     Mirror
	Renderer   *render.Renderer
	Categories usecase.CategoryUseCase
	Products   usecase.ProductUseCase
	Live       LiveServer
	// SecureCookies marks every cookie Secure; set it when served over HTTPS.
	SecureCookies bool
	Logger        *logrus.Logger
}

func NewRouter(d RouterDeps) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestLogger(d.Logger))
	router.SetHTMLTemplate(d.Renderer.Templates())

	k := cookies{secure: d.SecureCookies}
	catalogHandler := NewCatalogHandler(d.Mirror, d.Renderer, d.Live, d.Logger)
	authHandler := NewAuthHandler(d.Auth, k, d.Logger)
	adminHandler := NewAdminHandler(d.Categories, d.Products, d.Mirror, k, d.Logger)

	router.GET("/healthz", catalogHandler.Healthz)
	router.GET("/readyz", catalogHandler.Readyz)

	public := router.Group("/", SessionGate(d.Auth, k, d.Logger))
	{
		public.GET("", catalogHandler.ShowCatalog)
		public.GET("ws", catalogHandler.ServeLive)
	}

	router.GET("/login", authHandler.ShowLogin)
	router.POST("/login", authHandler.Login)
	router.POST("/logout", authHandler.Logout)
	router.POST("/auth/token", authHandler.ExchangeToken)

	adminHandler.RegisterRoutes(router.Group("/admin", AdminGate(d.Auth, k, d.Logger)))

	api := router.Group("/api", BearerAuth(d.Auth, d.Logger))
	NewCategoryAPIHandler(d.Categories, d.Logger).RegisterRoutes(api)
	NewProductAPIHandler(d.Products, d.Logger).RegisterRoutes(api)

	return router
}
