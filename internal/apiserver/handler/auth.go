package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ecole-connect/authhub/internal/common/cnst"
	"github.com/ecole-connect/authhub/internal/common/errorx"
	"github.com/ecole-connect/authhub/internal/session"
	"github.com/ecole-connect/authhub/internal/transport"
	"github.com/ecole-connect/authhub/pkg/metrics"
)

// Auth routes the delegated sign-in actions to the session engine.
type Auth struct {
	logger  *zap.Logger
	engine  *session.Engine
	adapter *transport.Adapter
	metrics *metrics.Metrics
}

// NewAuth builds the handler. metrics may be nil when collection is
// disabled.
func NewAuth(logger *zap.Logger, engine *session.Engine, adapter *transport.Adapter, m *metrics.Metrics) *Auth {
	return &Auth{
		logger:  logger.Named("apiserver.handler.auth"),
		engine:  engine,
		adapter: adapter,
		metrics: m,
	}
}

// Actions handles GET|POST /api/auth/{action}[/{provider}].
func (a *Auth) Actions(c *gin.Context) {
	req, ok := session.RequestFromContext(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error"})
		return
	}

	action, provider := splitAction(c.Param("action"))
	if action == "" {
		resp := transport.NewResponse()
		resp.Status = http.StatusTemporaryRedirect
		resp.Redirect = cnst.SignInPath
		a.adapter.Write(c, req, resp)
		return
	}

	resp, err := a.engine.Handle(c.Request.Context(), req, action, provider)
	if a.metrics != nil {
		a.metrics.SessionAction(action, err == nil)
	}
	if err != nil {
		if errors.Is(err, session.ErrUnknownAction) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
			return
		}
		oauthErr := errorx.ConvertToOAuth2Error(err)
		a.logger.Warn("auth action failed",
			zap.String("action", action),
			zap.Error(err))
		c.JSON(oauthErr.HTTPStatus, oauthErr)
		return
	}
	a.adapter.Write(c, req, resp)
}

// Home bounces the caller back to the URL remembered in the return cookie,
// consuming it. The cookie holds a same-origin path, so the redirect cannot
// leave the service.
func (a *Auth) Home(c *gin.Context) {
	req, ok := session.RequestFromContext(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error"})
		return
	}

	_, signedIn := session.FromContext(c)
	target := req.Cookies[cnst.ReturnCookieName]
	if target != "" {
		resp := transport.NewResponse()
		resp.Status = http.StatusTemporaryRedirect
		resp.Redirect = target
		resp.AddCookie(&http.Cookie{
			Name:     cnst.ReturnCookieName,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
		})
		a.adapter.Write(c, req, resp)
		return
	}

	c.JSON(http.StatusOK, gin.H{"service": cnst.AppName, "authenticated": signedIn})
}

// splitAction parses the wildcard segment of /api/auth/*action into the
// action name and an optional provider.
func splitAction(wildcard string) (string, string) {
	parts := strings.SplitN(strings.Trim(wildcard, "/"), "/", 2)
	action := parts[0]
	provider := ""
	if len(parts) == 2 {
		provider = parts[1]
	}
	return action, provider
}
