package transport

import (
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ecole-connect/authhub/internal/common/cnst"
)

// Request is a framework-neutral view of an incoming HTTP request. The
// OAuth server and session engine consume it instead of *gin.Context so
// their logic stays independent of the router.
type Request struct {
	Method  string
	Host    string
	Path    string
	Headers http.Header
	Cookies map[string]string
	Query   url.Values
	Form    url.Values
	Raw     string
}

// Param returns the first value for name, preferring the parsed body
// over the query string.
func (r *Request) Param(name string) string {
	if v := r.Form.Get(name); v != "" {
		return v
	}
	return r.Query.Get(name)
}

// Adapter converts between gin and the neutral request/response types.
type Adapter struct {
	sessionCookieName string
}

func NewAdapter(sessionCookieName string) *Adapter {
	if sessionCookieName == "" {
		sessionCookieName = cnst.SessionCookieName
	}
	return &Adapter{sessionCookieName: sessionCookieName}
}

// Normalize builds a Request from the gin context. The body is kept raw
// and additionally parsed into Form when it looks like JSON or a
// urlencoded form.
func (a *Adapter) Normalize(c *gin.Context) (*Request, error) {
	req := &Request{
		Method:  c.Request.Method,
		Host:    c.Request.Host,
		Path:    c.Request.URL.Path,
		Headers: c.Request.Header,
		Cookies: make(map[string]string),
		Query:   c.Request.URL.Query(),
		Form:    url.Values{},
	}
	for _, ck := range c.Request.Cookies() {
		req.Cookies[ck.Name] = ck.Value
	}
	if c.Request.Body != nil {
		raw, err := io.ReadAll(c.Request.Body)
		if err != nil {
			return nil, err
		}
		req.Raw = string(raw)
	}
	if req.Raw != "" {
		req.Form = parseBody(req.Raw)
	}
	return req, nil
}

// parseBody tries JSON first, then a urlencoded form. Anything else
// yields an empty set and the caller falls back to Request.Raw.
func parseBody(raw string) url.Values {
	var obj map[string]any
	if err := json.Unmarshal([]byte(raw), &obj); err == nil {
		form := url.Values{}
		for k, v := range obj {
			form.Set(k, stringifyParam(v))
		}
		return form
	}
	if strings.Contains(raw, "=") {
		if form, err := url.ParseQuery(raw); err == nil {
			return form
		}
	}
	return url.Values{}
}

func stringifyParam(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case nil:
		return ""
	default:
		b, _ := json.Marshal(t)
		return string(b)
	}
}
