package transport

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func normalizeRequest(t *testing.T, r *http.Request) *Request {
	t.Helper()
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = r
	req, err := NewAdapter("").Normalize(c)
	require.NoError(t, err)
	return req
}

func TestNormalize_JSONBody(t *testing.T) {
	body := `{"grant_type":"authorization_code","code":"abc","count":3,"ok":true}`
	r := httptest.NewRequest(http.MethodPost, "http://auth.local/api/oauth/token?client_id=c1", strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	r.AddCookie(&http.Cookie{Name: "return", Value: "/app"})

	req := normalizeRequest(t, r)
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "auth.local", req.Host)
	assert.Equal(t, "/api/oauth/token", req.Path)
	assert.Equal(t, "authorization_code", req.Form.Get("grant_type"))
	assert.Equal(t, "3", req.Form.Get("count"))
	assert.Equal(t, "true", req.Form.Get("ok"))
	assert.Equal(t, "c1", req.Query.Get("client_id"))
	assert.Equal(t, "/app", req.Cookies["return"])
	assert.Equal(t, body, req.Raw)
}

func TestNormalize_FormBody(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "http://auth.local/api/oauth/token",
		strings.NewReader("grant_type=refresh_token&refresh_token=rt-1"))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	req := normalizeRequest(t, r)
	assert.Equal(t, "refresh_token", req.Form.Get("grant_type"))
	assert.Equal(t, "rt-1", req.Form.Get("refresh_token"))
}

func TestNormalize_RawBodyFallback(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "http://auth.local/api/oauth", strings.NewReader("plain text payload"))

	req := normalizeRequest(t, r)
	assert.Empty(t, req.Form)
	assert.Equal(t, "plain text payload", req.Raw)
}

func TestRequestParam_BodyWinsOverQuery(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "http://auth.local/api/oauth/token?scope=query-scope",
		strings.NewReader("scope=body-scope"))

	req := normalizeRequest(t, r)
	assert.Equal(t, "body-scope", req.Param("scope"))
	assert.Equal(t, "query-scope", req.Query.Get("scope"))
	assert.Empty(t, req.Param("missing"))
}
