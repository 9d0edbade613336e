package apiserver

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"github.com/ecole-connect/authhub/internal/apiserver/handler"
	"github.com/ecole-connect/authhub/internal/common/cnst"
	"github.com/ecole-connect/authhub/internal/common/config"
	"github.com/ecole-connect/authhub/internal/oauth"
	"github.com/ecole-connect/authhub/internal/session"
	"github.com/ecole-connect/authhub/internal/transport"
	"github.com/ecole-connect/authhub/pkg/metrics"
)

// NewRouter assembles the gin engine: instrumentation, the session bridge,
// and the auth and oauth handler sets.
func NewRouter(logger *zap.Logger, cfg *config.Config, srv *oauth.Server, engine *session.Engine) *gin.Engine {
	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(accessLog(logger.Named("apiserver")))
	if cfg.Tracing.Enabled {
		r.Use(otelgin.Middleware(cnst.AppName))
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New(cfg.Metrics)
		r.Use(m.Middleware())
		r.GET("/metrics", gin.WrapH(m.Handler()))
	}

	adapter := transport.NewAdapter(cfg.Session.CookieName)
	r.Use(session.Middleware(logger, engine, adapter))

	authHandler := handler.NewAuth(logger, engine, adapter, m)
	oauthHandler := handler.NewOAuth(logger, srv, adapter, m)

	r.GET("/", authHandler.Home)
	r.GET(cnst.AuthPathPrefix+"/*action", authHandler.Actions)
	r.POST(cnst.AuthPathPrefix+"/*action", authHandler.Actions)

	api := r.Group("/api/oauth")
	{
		api.GET("", oauthHandler.Inspect)
		api.POST("", oauthHandler.Inspect)
		api.GET("/authorize", oauthHandler.Authorize)
		api.POST("/token", oauthHandler.Token)
		api.POST("/authenticate", oauthHandler.Authenticate)
		api.POST("/revoke", oauthHandler.Revoke)
	}

	return r
}

// accessLog emits one line per request: method, path, status, elapsed.
func accessLog(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("elapsed", time.Since(start)))
	}
}
