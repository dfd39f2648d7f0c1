package delivery

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"catalog_service/internal/domain"
	"catalog_service/internal/render"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type AuthHandler struct {
	auth    Authenticator
	cookies cookies
	log     *logrus.Logger
}

func NewAuthHandler(a Authenticator, k cookies, logger *logrus.Logger) *AuthHandler {
	return &AuthHandler{
		auth:    a,
		cookies: k,
		log:     logger,
	}
}

type TokenRequest struct {
	Token string `json:"token" binding:"required"`
}

type TokenResponse struct {
	Token     string    `json:"token"`
	UID       string    `json:"uid"`
	Admin     bool      `json:"admin"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (h *AuthHandler) ShowLogin(c *gin.Context) {
	c.HTML(http.StatusOK, "login.html", render.LoginPage{Title: "Iniciar sesión"})
}

func (h *AuthHandler) Login(c *gin.Context) {
	email := strings.TrimSpace(c.PostForm("email"))
	password := c.PostForm("password")
	page := render.LoginPage{Title: "Iniciar sesión", Email: email}

	if email == "" || password == "" {
		page.Message = failure("Por favor, ingresa tu email y contraseña.")
		c.HTML(http.StatusBadRequest, "login.html", page)
		return
	}

	session, err := h.auth.SignInWithPassword(c.Request.Context(), email, password)
	if err != nil {
		h.log.Warnf("Login failed for '%s': %v", email, err)
		page.Message = failure("Credenciales incorrectas. Verifica tu email y contraseña.")
		if !errors.Is(err, domain.ErrUnauthenticated) {
			page.Message = failure("Usuario o contraseña incorrectos. Acceso denegado.")
		}
		c.HTML(http.StatusUnauthorized, "login.html", page)
		return
	}

	h.log.Infof("Admin '%s' logged in", email)
	h.cookies.setSession(c, session)
	setFlash(c, h.cookies, success("¡Bienvenido, acceso exitoso!"))
	c.Redirect(http.StatusSeeOther, "/admin")
}

func (h *AuthHandler) Logout(c *gin.Context) {
	if token, err := c.Cookie(sessionCookie); err == nil && token != "" {
		if err := h.auth.SignOut(c.Request.Context(), token); err != nil && !errors.Is(err, domain.ErrUnauthenticated) {
			h.log.Errorf("Failed to sign out: %v", err)
		}
	}
	h.cookies.clear(c, sessionCookie, loggedInCookie)
	c.Redirect(http.StatusSeeOther, "/login")
}

// ExchangeToken trades a custom token for a session token usable as a bearer token.
func (h *AuthHandler) ExchangeToken(c *gin.Context) {
	var req TokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Warnf("Failed to bind token request: %v", err)
		ErrorResponse(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	session, err := h.auth.SignInWithCustomToken(c.Request.Context(), req.Token)
	if err != nil {
		ErrorResponse(c, mapErrorToStatus(err), publicMessage(err))
		return
	}

	SuccessResponse(c, http.StatusOK, "Signed in successfully", TokenResponse{
		Token:     session.Token,
		UID:       session.Identity.UID,
		Admin:     session.Identity.Admin,
		ExpiresAt: session.Identity.ExpiresAt,
	})
}
