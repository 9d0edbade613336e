package transport

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/ecole-connect/authhub/internal/common/cnst"
)

func writeResponse(t *testing.T, accept string, resp *Response, setup func(c *gin.Context)) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "http://auth.local/", nil)
	if accept != "" {
		c.Request.Header.Set("Accept", accept)
	}
	if setup != nil {
		setup(c)
	}
	a := NewAdapter("")
	req, err := a.Normalize(c)
	require.NoError(t, err)
	a.Write(c, req, resp)
	return w
}

func TestWrite_RedirectAsLocation(t *testing.T) {
	resp := NewResponse()
	resp.Redirect = "http://app/cb?code=abc"

	w := writeResponse(t, "text/html", resp, nil)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "http://app/cb?code=abc", w.Header().Get("Location"))
}

func TestWrite_RedirectAsJSONWhenAccepted(t *testing.T) {
	resp := NewResponse()
	resp.Redirect = "http://app/cb?code=abc"

	w := writeResponse(t, "application/json, text/plain", resp, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Location"))
	assert.Equal(t, "http://app/cb?code=abc", gjson.Get(w.Body.String(), "url").String())
}

func TestWrite_RedirectAsJSONAcceptCaseInsensitive(t *testing.T) {
	resp := NewResponse()
	resp.Redirect = "http://app/cb?code=abc"

	w := writeResponse(t, "Application/JSON", resp, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Location"))
	assert.Equal(t, "http://app/cb?code=abc", gjson.Get(w.Body.String(), "url").String())
}

func TestWrite_RedirectAsJSONStatus(t *testing.T) {
	// a redirect status is replaced by the JSON rendition
	resp := NewResponse()
	resp.Status = http.StatusTemporaryRedirect
	resp.Redirect = "/api/auth/signin"

	w := writeResponse(t, "application/json", resp, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "/api/auth/signin", gjson.Get(w.Body.String(), "url").String())

	// any other explicit status passes through
	resp = NewResponse()
	resp.Status = http.StatusCreated
	resp.Redirect = "/done"

	w = writeResponse(t, "application/json", resp, nil)
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "/done", gjson.Get(w.Body.String(), "url").String())
}

func TestWrite_ExplicitRedirectStatusKept(t *testing.T) {
	resp := NewResponse()
	resp.Status = http.StatusTemporaryRedirect
	resp.Redirect = "/api/auth/signin"

	w := writeResponse(t, "", resp, nil)
	assert.Equal(t, http.StatusTemporaryRedirect, w.Code)
}

func TestWrite_JSONBody(t *testing.T) {
	resp := NewResponse()
	resp.Body = map[string]string{"access_token": "at-1"}
	resp.SetHeader("Cache-Control", "no-store")

	w := writeResponse(t, "", resp, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	assert.Equal(t, "at-1", gjson.Get(w.Body.String(), "access_token").String())
}

func TestWrite_StringBody(t *testing.T) {
	resp := NewResponse()
	resp.Body = "OK"

	w := writeResponse(t, "", resp, nil)
	assert.Equal(t, "OK", w.Body.String())
}

func TestWrite_SessionCookieReplacesQueued(t *testing.T) {
	resp := NewResponse()
	resp.AddCookie(&http.Cookie{Name: cnst.SessionCookieName, Value: "fresh", Path: "/"})

	var handlerCtx *gin.Context
	w := writeResponse(t, "", resp, func(c *gin.Context) {
		handlerCtx = c
		// the session bridge queues its cookie before the handler runs
		http.SetCookie(c.Writer, &http.Cookie{Name: cnst.SessionCookieName, Value: "stale", Path: "/"})
		http.SetCookie(c.Writer, &http.Cookie{Name: "other", Value: "kept"})
	})

	cookies := w.Header().Values("Set-Cookie")
	require.Len(t, cookies, 2)
	var sessionValues []string
	for _, v := range cookies {
		if strings.HasPrefix(v, cnst.SessionCookieName+"=") {
			sessionValues = append(sessionValues, v)
		}
	}
	require.Len(t, sessionValues, 1)
	assert.Contains(t, sessionValues[0], "fresh")

	set, ok := handlerCtx.Get(cnst.CtxSessionCookieSet)
	require.True(t, ok)
	assert.Equal(t, true, set)
}
