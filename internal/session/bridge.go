package session

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ecole-connect/authhub/internal/common/cnst"
	"github.com/ecole-connect/authhub/internal/transport"
)

// Middleware is the session bridge. It normalizes the request once, resolves
// the caller's session, and injects both into the gin context before the
// handler runs. Cookies returned by the resolver are queued immediately; the
// adapter drops the queued session cookie again if the handler emits its own,
// so a response never carries two Set-Cookie headers for the same name.
func Middleware(logger *zap.Logger, resolver Resolver, adapter *transport.Adapter) gin.HandlerFunc {
	log := logger.Named("session.bridge")
	return func(c *gin.Context) {
		req, err := adapter.Normalize(c)
		if err != nil {
			log.Error("failed to normalize request", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
			return
		}
		c.Set(cnst.CtxRequest, req)

		sess, cookies, err := resolver.Resolve(c.Request.Context(), req)
		if err != nil {
			log.Error("session resolution failed",
				zap.String("path", c.Request.URL.Path),
				zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "server_error"})
			return
		}
		if sess != nil {
			c.Set(cnst.CtxSession, sess)
		}
		for _, ck := range cookies {
			http.SetCookie(c.Writer, ck)
		}

		c.Next()
	}
}

// FromContext returns the session the bridge resolved for this request.
func FromContext(c *gin.Context) (*Session, bool) {
	v, ok := c.Get(cnst.CtxSession)
	if !ok {
		return nil, false
	}
	sess, ok := v.(*Session)
	return sess, ok
}

// RequestFromContext returns the request the bridge normalized. The body can
// only be consumed once, so handlers must not call Normalize themselves.
func RequestFromContext(c *gin.Context) (*transport.Request, bool) {
	v, ok := c.Get(cnst.CtxRequest)
	if !ok {
		return nil, false
	}
	req, ok := v.(*transport.Request)
	return req, ok
}
