package cnst

const (
	// AppName is the application name used for logging and metrics namespaces.
	AppName = "authhub"

	// SessionCookieName is the default name of the signed session-token cookie.
	SessionCookieName = "authhub.session-token"

	// StateCookieName carries the anti-forgery state during the delegated
	// sign-in round trip.
	StateCookieName = "authhub.state"

	// ReturnCookieName remembers the URL to bounce back to after sign-in.
	ReturnCookieName = "return"
)

const (
	// SignInPath is where unauthenticated callers are sent.
	SignInPath = "/api/auth/signin"

	// AuthPathPrefix is the mount point of the session engine actions.
	AuthPathPrefix = "/api/auth"
)

const (
	// CtxSession is the gin context key holding the resolved *session.Session.
	CtxSession = "authhub.session"

	// CtxRequest is the gin context key holding the normalized neutral
	// request. The bridge consumes the body once; handlers reuse this value.
	CtxRequest = "authhub.request"

	// CtxSessionCookieSet is the gin context key flagged by the HTTP adapter
	// when a handler emits its own session-token cookie. The session bridge
	// reads it to avoid double-setting the cookie.
	CtxSessionCookieSet = "authhub.sessionCookieSet"
)
