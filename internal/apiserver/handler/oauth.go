package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ecole-connect/authhub/internal/common/cnst"
	"github.com/ecole-connect/authhub/internal/common/errorx"
	"github.com/ecole-connect/authhub/internal/oauth"
	"github.com/ecole-connect/authhub/internal/session"
	"github.com/ecole-connect/authhub/internal/transport"
	"github.com/ecole-connect/authhub/pkg/metrics"
)

// OAuth exposes the authorization-server operations over HTTP.
type OAuth struct {
	logger  *zap.Logger
	srv     *oauth.Server
	adapter *transport.Adapter
	metrics *metrics.Metrics
}

// NewOAuth builds the handler set. metrics may be nil when collection is
// disabled.
func NewOAuth(logger *zap.Logger, srv *oauth.Server, adapter *transport.Adapter, m *metrics.Metrics) *OAuth {
	return &OAuth{
		logger:  logger.Named("apiserver.handler.oauth"),
		srv:     srv,
		adapter: adapter,
		metrics: m,
	}
}

// Authorize begins the authorization_code grant. An unauthenticated caller
// is bounced to the sign-in entry point with a return cookie remembering the
// original URL.
func (h *OAuth) Authorize(c *gin.Context) {
	req, ok := session.RequestFromContext(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error"})
		return
	}

	sess, ok := session.FromContext(c)
	if !ok {
		resp := transport.NewResponse()
		resp.Status = http.StatusTemporaryRedirect
		resp.Redirect = cnst.SignInPath
		resp.AddCookie(&http.Cookie{
			Name:     cnst.ReturnCookieName,
			Value:    c.Request.URL.RequestURI(),
			Path:     "/",
			MaxAge:   600,
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
		h.adapter.Write(c, req, resp)
		return
	}

	resp, err := h.srv.Authorize(c.Request.Context(), req, sess.User.Handle)
	if err != nil {
		h.writeError(c, "authorize", err)
		return
	}
	h.adapter.Write(c, req, resp)
}

// Token is the back-channel token endpoint.
func (h *OAuth) Token(c *gin.Context) {
	req, ok := session.RequestFromContext(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error"})
		return
	}
	resp, err := h.srv.Token(c.Request.Context(), req)
	if h.metrics != nil {
		h.metrics.GrantProcessed(req.Param("grant_type"), err == nil)
	}
	if err != nil {
		h.writeError(c, "token", err)
		return
	}
	h.adapter.Write(c, req, resp)
}

// Authenticate validates a bearer token and returns the owning user id.
func (h *OAuth) Authenticate(c *gin.Context) {
	req, ok := session.RequestFromContext(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error"})
		return
	}
	token, err := h.srv.Authenticate(c.Request.Context(), req, "")
	if err != nil {
		h.writeError(c, "authenticate", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user_id": token.User.Handle})
}

// Inspect is a plain-text probe of bearer validity.
func (h *OAuth) Inspect(c *gin.Context) {
	req, ok := session.RequestFromContext(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error"})
		return
	}
	token, err := h.srv.Authenticate(c.Request.Context(), req, "")
	if err != nil {
		h.writeError(c, "inspect", err)
		return
	}
	h.logger.Debug("bearer token inspected",
		zap.String("client_id", token.ClientID),
		zap.String("user", token.User.Handle))
	resp := transport.NewResponse()
	resp.Body = "OK"
	h.adapter.Write(c, req, resp)
}

// Revoke deletes a refresh token on behalf of its client.
func (h *OAuth) Revoke(c *gin.Context) {
	req, ok := session.RequestFromContext(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error"})
		return
	}
	resp, err := h.srv.Revoke(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, "revoke", err)
		return
	}
	h.adapter.Write(c, req, resp)
}

func (h *OAuth) writeError(c *gin.Context, op string, err error) {
	oauthErr := errorx.ConvertToOAuth2Error(err)
	h.logger.Warn("oauth request rejected",
		zap.String("op", op),
		zap.String("path", c.Request.URL.Path),
		zap.Error(err))
	c.JSON(oauthErr.HTTPStatus, oauthErr)
}
