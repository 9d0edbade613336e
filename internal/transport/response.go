package transport

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ecole-connect/authhub/internal/common/cnst"
)

// Response is the framework-neutral result of an OAuth or session
// operation. Redirect takes precedence over Body when set.
type Response struct {
	Status   int
	Headers  http.Header
	Cookies  []*http.Cookie
	Body     any
	Redirect string
}

func NewResponse() *Response {
	return &Response{Status: http.StatusOK, Headers: http.Header{}}
}

func (r *Response) SetHeader(key, value string) {
	if r.Headers == nil {
		r.Headers = http.Header{}
	}
	r.Headers.Set(key, value)
}

func (r *Response) AddCookie(ck *http.Cookie) {
	r.Cookies = append(r.Cookies, ck)
}

// ExpectsJSON reports whether the caller asked for a JSON rendition of
// redirects via the Accept header. The match is case-insensitive.
func ExpectsJSON(req *Request) bool {
	return strings.Contains(strings.ToLower(req.Headers.Get("Accept")), "application/json")
}

// Write renders resp onto the gin context. A JSON-accepting caller gets
// redirects as a 200 with a {"url": ...} body instead of a Location
// header. Handler cookies win over any session cookie the bridge queued
// earlier in the middleware chain.
func (a *Adapter) Write(c *gin.Context, req *Request, resp *Response) {
	for key, values := range resp.Headers {
		for _, v := range values {
			c.Writer.Header().Add(key, v)
		}
	}
	for _, ck := range resp.Cookies {
		if ck.Name == a.sessionCookieName {
			a.dropQueuedSessionCookie(c)
			c.Set(cnst.CtxSessionCookieSet, true)
		}
		http.SetCookie(c.Writer, ck)
	}
	status := resp.Status
	if resp.Redirect != "" {
		if ExpectsJSON(req) {
			// a 3xx status only encoded the transport redirect the JSON
			// body replaces; anything else passes through
			if status == 0 || (status >= http.StatusMultipleChoices && status <= http.StatusPermanentRedirect) {
				status = http.StatusOK
			}
			c.JSON(status, gin.H{"url": resp.Redirect})
			return
		}
		if status < http.StatusMultipleChoices || status > http.StatusPermanentRedirect {
			status = http.StatusFound
		}
		c.Redirect(status, resp.Redirect)
		return
	}
	if status == 0 {
		status = http.StatusOK
	}
	switch body := resp.Body.(type) {
	case nil:
		c.Status(status)
	case string:
		c.String(status, "%s", body)
	default:
		c.JSON(status, body)
	}
}

// dropQueuedSessionCookie removes Set-Cookie headers for the session
// token that were added before the handler produced its own.
func (a *Adapter) dropQueuedSessionCookie(c *gin.Context) {
	header := c.Writer.Header()
	queued := header.Values("Set-Cookie")
	if len(queued) == 0 {
		return
	}
	header.Del("Set-Cookie")
	prefix := a.sessionCookieName + "="
	for _, v := range queued {
		if strings.HasPrefix(v, prefix) {
			continue
		}
		header.Add("Set-Cookie", v)
	}
}
