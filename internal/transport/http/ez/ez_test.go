package ez

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"posto-admin/internal/core/validate"
	"posto-admin/internal/domain"
)

type echoIn struct {
	Name  string `json:"name" form:"name" binding:"required,min=3"`
	Count int    `json:"count" form:"count"`
}

type echoOut struct {
	Greeting string `json:"greeting"`
}

func newEngine() *gin.Engine {
	gin.SetMode(gin.TestMode)
	validate.UseForGin()
	r := gin.New()
	e := New(r.Group("/v1"), nil)

	RegisterAction(e, Action[echoIn, echoOut]{
		Method: http.MethodPost, Path: "/echo", Binder: BindJSON, Status: http.StatusCreated,
		Handler: func(c *gin.Context, in *echoIn) (echoOut, error) {
			return echoOut{Greeting: "hi " + in.Name}, nil
		},
	})
	RegisterAction(e, Action[echoIn, echoOut]{
		Method: http.MethodGet, Path: "/echo", Binder: BindQuery,
		Handler: func(c *gin.Context, in *echoIn) (echoOut, error) {
			return echoOut{Greeting: in.Name}, nil
		},
	})
	RegisterAction(e, Action[echoIn, echoOut]{
		Method: http.MethodPost, Path: "/optional", Binder: BindJSONOptional,
		Handler: func(c *gin.Context, in *echoIn) (echoOut, error) {
			return echoOut{Greeting: "got " + in.Name}, nil
		},
	})
	RegisterAction(e, Action[None, echoOut]{
		Method: http.MethodDelete, Path: "/boom", Binder: BindNone,
		Handler: func(c *gin.Context, _ *None) (echoOut, error) {
			return echoOut{}, domain.NotFound("thing not found")
		},
	})
	return r
}

func do(r *gin.Engine, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var out map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return w, out
}

func TestRegisterActionSuccess(t *testing.T) {
	r := newEngine()
	w, out := do(r, http.MethodPost, "/v1/echo", `{"name":"gopher"}`)
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.EqualValues(t, 0, out["code"])
	assert.Equal(t, "hi gopher", out["data"].(map[string]any)["greeting"])

	w, out = do(r, http.MethodGet, "/v1/echo?name=query", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "query", out["data"].(map[string]any)["greeting"])
}

func TestRegisterActionValidation(t *testing.T) {
	r := newEngine()
	w, out := do(r, http.MethodPost, "/v1/echo", `{"name":"go"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	errs := out["errors"].([]any)
	require.Len(t, errs, 1)
	assert.Equal(t, "name", errs[0].(map[string]any)["path"])

	w, out = do(r, http.MethodPost, "/v1/echo", `{"name":`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "Malformed request body", out["msg"])

	w, out = do(r, http.MethodPost, "/v1/echo", `{"name":"gopher","count":"many"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "count", out["errors"].([]any)[0].(map[string]any)["path"])
}

func TestOptionalBody(t *testing.T) {
	r := newEngine()
	w, out := do(r, http.MethodPost, "/v1/optional", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "got ", out["data"].(map[string]any)["greeting"])
}

func TestHandlerErrorMapped(t *testing.T) {
	r := newEngine()
	w, out := do(r, http.MethodDelete, "/v1/boom", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "thing not found", out["msg"])
}

func TestBindErrorKinds(t *testing.T) {
	assert.NoError(t, bindError(nil))
	err := bindError(&http.MaxBytesError{Limit: 10})
	assert.True(t, domain.IsKind(err, domain.KindValidation))
	assert.Equal(t, "Request body too large", err.Error())
	assert.True(t, domain.IsKind(bindError(errors.New("odd")), domain.KindValidation))
}
