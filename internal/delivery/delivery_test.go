package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"catalog_service/internal/auth"
	"catalog_service/internal/catalogsync"
	"catalog_service/internal/domain"
	"catalog_service/internal/render"
	"catalog_service/internal/repository"
	"catalog_service/internal/usecase"

	"github.com/PuerkitoBio/goquery"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const (
	adminEmail    = "admin@tienda.com"
	adminPassword = "s3creto"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

type stubLive struct {
	identity chan domain.Identity
}

func (s stubLive) ServeHTTP(w http.ResponseWriter, r *http.Request, identity domain.Identity) {
	s.identity <- identity
	w.WriteHeader(http.StatusOK)
}

type app struct {
	router   *gin.Engine
	store    *repository.MemoryStore
	mirror   *catalogsync.Sync
	provider *auth.Provider
	live     stubLive
	jar      map[string]*http.Cookie
}

func newApp(t *testing.T) *app {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := testLogger()
	ctx := context.Background()

	store := repository.NewMemoryStore(logger)
	renderer, err := render.New(render.Options{}, logger)
	require.NoError(t, err)

	mirror := catalogsync.New(store, renderer, nil, logger)
	t.Cleanup(mirror.Close)
	require.NoError(t, mirror.HandleAuthState(ctx, domain.AuthEvent{SignedIn: true}))
	select {
	case <-mirror.Ready():
	case <-time.After(2 * time.Second):
		require.FailNow(t, "mirror never became ready")
	}

	tokens, err := auth.NewTokenManager(auth.TokenConfig{Secret: "delivery-test-secret", SessionTTL: time.Hour})
	require.NoError(t, err)
	hash, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.MinCost)
	require.NoError(t, err)
	provider := auth.NewProvider(tokens, auth.NewMemorySessionStore(),
		auth.AdminCredentials{Email: adminEmail, PasswordHash: string(hash)}, logger)

	live := stubLive{identity: make(chan domain.Identity, 1)}
	router := NewRouter(RouterDeps{
		Auth:       provider,
		Mirror:     mirror,
		Renderer:   renderer,
		Categories: usecase.NewCategoryUseCase(store, store, mirror, logger),
		Products:   usecase.NewProductUseCase(store, store, mirror, logger),
		Live:       live,
		Logger:     logger,
	})

	return &app{
		router:   router,
		store:    store,
		mirror:   mirror,
		provider: provider,
		live:     live,
		jar:      map[string]*http.Cookie{},
	}
}

// do sends a request carrying the cookies collected so far and records the new ones.
func (a *app) do(t *testing.T, method, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, path, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for _, c := range a.jar {
		req.AddCookie(c)
	}

	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	for _, c := range w.Result().Cookies() {
		if c.MaxAge < 0 {
			delete(a.jar, c.Name)
		} else {
			a.jar[c.Name] = c
		}
	}
	return w
}

func (a *app) api(t *testing.T, method, path, token string, body interface{}) (*httptest.ResponseRecorder, Response) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)

	var resp Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return w, resp
}

func (a *app) login(t *testing.T) {
	t.Helper()
	w := a.do(t, http.MethodPost, "/login", url.Values{"email": {adminEmail}, "password": {adminPassword}})
	require.Equal(t, http.StatusSeeOther, w.Code)
	require.Equal(t, "/admin", w.Header().Get("Location"))
}

func (a *app) waitMirror(t *testing.T, categories, products int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return len(a.mirror.Categories()) == categories && len(a.mirror.Products()) == products
	}, 2*time.Second, 10*time.Millisecond)
}

func document(t *testing.T, w *httptest.ResponseRecorder) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(w.Body)
	require.NoError(t, err)
	return doc
}

func optionTexts(doc *goquery.Document, selectID string) []string {
	var texts []string
	doc.Find("#" + selectID + " option").Each(func(_ int, s *goquery.Selection) {
		if v, _ := s.Attr("value"); v != "" {
			texts = append(texts, strings.TrimSpace(s.Text()))
		}
	})
	return texts
}

func TestCatalog_AnonymousVisitorGetsSession(t *testing.T) {
	a := newApp(t)
	_, err := a.store.CreateCategory(context.Background(), &domain.Category{Name: "Teclados", ImageURL: "https://img/t.png"})
	require.NoError(t, err)
	a.waitMirror(t, 1, 0)

	w := a.do(t, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, a.jar, sessionCookie)
	assert.NotContains(t, a.jar, loggedInCookie)

	doc := document(t, w)
	assert.Equal(t, 1, doc.Find(`#category-submenu a[data-category="Teclados"]`).Length())
	_, hidden := doc.Find("#loader").Attr("hidden")
	assert.True(t, hidden)

	token := a.jar[sessionCookie].Value
	a.do(t, http.MethodGet, "/", nil)
	assert.Equal(t, token, a.jar[sessionCookie].Value, "an existing session is reused")
}

func TestCatalog_FilterIsExactMatch(t *testing.T) {
	a := newApp(t)
	ctx := context.Background()
	for _, p := range []domain.Product{
		{Name: "K1", Price: 10, Category: "Teclados"},
		{Name: "k2", Price: 10, Category: "teclados"},
		{Name: "M1", Price: 10, Category: "Mouses"},
	} {
		p := p
		_, err := a.store.CreateProduct(ctx, &p)
		require.NoError(t, err)
	}
	a.waitMirror(t, 0, 3)

	doc := document(t, a.do(t, http.MethodGet, "/?category=Teclados", nil))
	cards := doc.Find("#product-grid .product-card")
	require.Equal(t, 1, cards.Length())
	assert.Equal(t, "K1", cards.Find("h3").Text())
	assert.Equal(t, "Productos: Teclados", strings.TrimSpace(doc.Find("#products-title").Text()))

	doc = document(t, a.do(t, http.MethodGet, "/", nil))
	assert.Equal(t, 3, doc.Find("#product-grid .product-card").Length())
}

func TestServeLive_PassesSessionIdentity(t *testing.T) {
	a := newApp(t)
	w := a.do(t, http.MethodGet, "/ws", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	identity := <-a.live.identity
	assert.True(t, identity.Anonymous)
	assert.NotEmpty(t, identity.UID)
}

func TestAdmin_RedirectsWithoutLoginFlag(t *testing.T) {
	a := newApp(t)
	w := a.do(t, http.MethodGet, "/admin", nil)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/login", w.Header().Get("Location"))
}

func TestAdmin_StaleFlagIsCleared(t *testing.T) {
	a := newApp(t)
	a.jar[loggedInCookie] = &http.Cookie{Name: loggedInCookie, Value: "true"}

	w := a.do(t, http.MethodGet, "/admin", nil)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/login", w.Header().Get("Location"))
	assert.NotContains(t, a.jar, loggedInCookie)
}

func TestAdmin_AnonymousSessionIsNotAdmin(t *testing.T) {
	a := newApp(t)
	a.do(t, http.MethodGet, "/", nil)
	a.jar[loggedInCookie] = &http.Cookie{Name: loggedInCookie, Value: "true"}

	w := a.do(t, http.MethodGet, "/admin", nil)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/login", w.Header().Get("Location"))
}

func TestLogin(t *testing.T) {
	a := newApp(t)

	w := a.do(t, http.MethodPost, "/login", url.Values{"email": {adminEmail}, "password": {"wrong"}})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Credenciales incorrectas")
	assert.NotContains(t, a.jar, loggedInCookie)

	w = a.do(t, http.MethodPost, "/login", url.Values{"email": {""}, "password": {""}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	a.login(t)
	assert.Equal(t, "true", a.jar[loggedInCookie].Value)
	assert.True(t, a.jar[sessionCookie].HttpOnly)

	w = a.do(t, http.MethodGet, "/admin", nil)
	require.Equal(t, http.StatusOK, w.Code)
	doc := document(t, w)
	assert.Contains(t, doc.Find("#message .message-success").Text(), "Bienvenido")
	assert.Contains(t, doc.Find("header").Text(), adminEmail)

	w = a.do(t, http.MethodGet, "/admin", nil)
	assert.Empty(t, document(t, w).Find("#message .message-success").Text(), "flash is shown once")
}

func TestAdmin_CreateCategoryAppearsOnceInEveryList(t *testing.T) {
	a := newApp(t)
	a.login(t)

	w := a.do(t, http.MethodPost, "/admin/categories", url.Values{"name": {" Monitores "}, "imageUrl": {"https://img/m.png"}})
	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/admin", w.Header().Get("Location"))

	doc := document(t, a.do(t, http.MethodGet, "/admin", nil))
	assert.Equal(t, []string{"Monitores"}, optionTexts(doc, render.TargetCategorySelect))
	assert.Contains(t, doc.Find("#message").Text(), `Categoría "Monitores" creada exitosamente.`)

	doc = document(t, a.do(t, http.MethodGet, "/", nil))
	assert.Equal(t, 1, doc.Find(`#category-submenu a[data-category="Monitores"]`).Length())
	assert.Equal(t, 1, doc.Find(`#category-grid .category-card`).Length())
}

func TestAdmin_CreateCategoryValidation(t *testing.T) {
	a := newApp(t)
	a.login(t)

	a.do(t, http.MethodPost, "/admin/categories", url.Values{"name": {"Monitores"}})
	doc := document(t, a.do(t, http.MethodGet, "/admin", nil))
	assert.Contains(t, doc.Find("#message .message-error").Text(), "Ambos campos")
	assert.Empty(t, optionTexts(doc, render.TargetCategorySelect))
}

func TestAdmin_BadPriceNeverReachesStore(t *testing.T) {
	a := newApp(t)
	ctx := context.Background()
	_, err := a.store.CreateCategory(ctx, &domain.Category{Name: "Teclados", ImageURL: "x"})
	require.NoError(t, err)
	a.waitMirror(t, 1, 0)
	a.login(t)

	for _, price := range []string{"0", "-3", "abc", ""} {
		w := a.do(t, http.MethodPost, "/admin/products", url.Values{"name": {"K1"}, "price": {price}, "category": {"Teclados"}})
		require.Equal(t, http.StatusSeeOther, w.Code)
		doc := document(t, a.do(t, http.MethodGet, "/admin", nil))
		assert.Contains(t, doc.Find("#message .message-error").Text(), "El precio del producto debe ser un número mayor a 0.", "price %q", price)
	}

	products, err := a.store.ListProducts(ctx, domain.ProductFilter{})
	require.NoError(t, err)
	assert.Empty(t, products)
}

func TestAdmin_EditFormIsPrefilled(t *testing.T) {
	a := newApp(t)
	ctx := context.Background()
	_, err := a.store.CreateCategory(ctx, &domain.Category{Name: "Teclados", ImageURL: "x"})
	require.NoError(t, err)
	p, err := a.store.CreateProduct(ctx, &domain.Product{Name: "K1", Price: 10, Category: "Teclados"})
	require.NoError(t, err)
	a.waitMirror(t, 1, 1)
	a.login(t)

	doc := document(t, a.do(t, http.MethodGet, "/admin?product="+p.ID, nil))
	form := doc.Find(`form[action="/admin/products/` + p.ID + `"]`)
	require.Equal(t, 1, form.Length())
	name, _ := form.Find(`input[name="name"]`).Attr("value")
	assert.Equal(t, "K1", name)
	assert.Equal(t, "Teclados", form.Find(`select[name="category"] option[selected]`).Text())

	w := a.do(t, http.MethodPost, "/admin/products/"+p.ID, url.Values{"name": {"K1 Pro"}, "price": {"12,5"}, "category": {"Teclados"}})
	require.Equal(t, http.StatusSeeOther, w.Code)
	updated, err := a.store.GetProductByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "K1 Pro", updated.Name)
	assert.Equal(t, 12.5, updated.Price)

	doc = document(t, a.do(t, http.MethodGet, "/admin?product=missing", nil))
	assert.Contains(t, doc.Find("#message").Text(), "Producto no encontrado.")
}

func TestAdmin_DeleteRequiresConfirmation(t *testing.T) {
	a := newApp(t)
	ctx := context.Background()
	_, err := a.store.CreateCategory(ctx, &domain.Category{Name: "Teclados", ImageURL: "x"})
	require.NoError(t, err)
	p, err := a.store.CreateProduct(ctx, &domain.Product{Name: "K1", Price: 10, Category: "Teclados"})
	require.NoError(t, err)
	a.waitMirror(t, 1, 1)
	a.login(t)

	w := a.do(t, http.MethodPost, "/admin/products/"+p.ID+"/delete", url.Values{})
	require.Equal(t, http.StatusSeeOther, w.Code)
	confirmURL := "/admin/products/" + p.ID + "/delete"
	assert.Equal(t, confirmURL, w.Header().Get("Location"))

	w = a.do(t, http.MethodGet, confirmURL, nil)
	require.Equal(t, http.StatusOK, w.Code)
	doc := document(t, w)
	assert.Contains(t, doc.Text(), `"K1"`)
	confirm, _ := doc.Find(`input[name="confirm"]`).Attr("value")
	assert.Equal(t, "yes", confirm)

	w = a.do(t, http.MethodPost, confirmURL, url.Values{"confirm": {"yes"}})
	require.Equal(t, http.StatusSeeOther, w.Code)
	doc = document(t, a.do(t, http.MethodGet, "/admin", nil))
	assert.Empty(t, optionTexts(doc, render.TargetProductSelect))
	assert.Contains(t, doc.Find("#message").Text(), "Producto eliminado exitosamente.")
}

func TestAdmin_DeletedCategoryLeavesFlaggedOrphans(t *testing.T) {
	a := newApp(t)
	ctx := context.Background()
	c, err := a.store.CreateCategory(ctx, &domain.Category{Name: "Teclados", ImageURL: "x"})
	require.NoError(t, err)
	_, err = a.store.CreateProduct(ctx, &domain.Product{Name: "K1", Price: 10, Category: "Teclados"})
	require.NoError(t, err)
	a.waitMirror(t, 1, 1)
	a.login(t)

	a.do(t, http.MethodPost, "/admin/categories/"+c.ID+"/delete", url.Values{"confirm": {"yes"}})
	doc := document(t, a.do(t, http.MethodGet, "/admin", nil))
	assert.Empty(t, optionTexts(doc, render.TargetCategorySelect))
	assert.Equal(t, []string{"K1 (sin categoría)"}, optionTexts(doc, render.TargetProductSelect))
}

func TestLogout(t *testing.T) {
	a := newApp(t)
	a.login(t)
	token := a.jar[sessionCookie].Value

	w := a.do(t, http.MethodPost, "/logout", nil)
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/login", w.Header().Get("Location"))
	assert.NotContains(t, a.jar, sessionCookie)
	assert.NotContains(t, a.jar, loggedInCookie)

	_, err := a.provider.Verify(context.Background(), token)
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)

	w = a.do(t, http.MethodGet, "/admin", nil)
	assert.Equal(t, http.StatusFound, w.Code)
}

func TestAPI_RequiresAdminBearer(t *testing.T) {
	a := newApp(t)

	w, resp := a.api(t, http.MethodGet, "/api/categories", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Fail", resp.Status)

	anon, err := a.provider.SignInAnonymously(context.Background())
	require.NoError(t, err)
	w, _ = a.api(t, http.MethodGet, "/api/categories", anon.Token, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = a.api(t, http.MethodGet, "/api/categories", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAPI_CustomTokenExchangeAndCRUD(t *testing.T) {
	a := newApp(t)

	custom, err := a.provider.MintCustomToken("ops", true, time.Minute)
	require.NoError(t, err)
	w, resp := a.api(t, http.MethodPost, "/auth/token", "", TokenRequest{Token: custom})
	require.Equal(t, http.StatusOK, w.Code)
	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	token, _ := data["token"].(string)
	require.NotEmpty(t, token)
	assert.Equal(t, true, data["admin"])

	w, _ = a.api(t, http.MethodPost, "/auth/token", "", TokenRequest{Token: "bogus"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, resp = a.api(t, http.MethodPost, "/api/categories", token, usecase.CategoryForm{Name: "Teclados", ImageURL: "x"})
	require.Equal(t, http.StatusCreated, w.Code, resp.Message)

	w, resp = a.api(t, http.MethodPost, "/api/products", token, map[string]interface{}{"name": "K1", "price": 1234.5, "category": "Teclados"})
	require.Equal(t, http.StatusCreated, w.Code, resp.Message)
	created := resp.Data.(map[string]interface{})
	id := created["id"].(string)

	w, resp = a.api(t, http.MethodPost, "/api/products", token, map[string]interface{}{"name": "K2", "price": 0, "category": "Teclados"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, resp.Message, "mayor a 0")

	w, resp = a.api(t, http.MethodPost, "/api/products", token, map[string]interface{}{"name": "K3", "price": "5", "category": "Nada"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, resp = a.api(t, http.MethodGet, "/api/products?category=Teclados", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, resp.Data, 1)

	w, _ = a.api(t, http.MethodPut, "/api/products/"+id, token, map[string]interface{}{"name": "K1", "price": "99", "category": "Teclados"})
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = a.api(t, http.MethodDelete, "/api/products/"+id, token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w, _ = a.api(t, http.MethodGet, "/api/products/"+id, token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestReadyz(t *testing.T) {
	a := newApp(t)
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var st catalogsync.Status
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &st))
	assert.True(t, st.Ready)
	assert.True(t, st.SignedIn)
}

func TestMapErrorToStatus(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, mapErrorToStatus(domain.ErrNotFound))
	assert.Equal(t, http.StatusBadRequest, mapErrorToStatus(domain.NewValidationError("x")))
	assert.Equal(t, http.StatusUnauthorized, mapErrorToStatus(auth.ErrExpiredToken))
	assert.Equal(t, http.StatusPreconditionRequired, mapErrorToStatus(domain.ErrConfirmationRequired))
	assert.Equal(t, http.StatusInternalServerError, mapErrorToStatus(io.ErrUnexpectedEOF))
}
