package errorx

import (
	"encoding/json"
	"errors"
	"net/http"
)

// OAuth2Error is the error shape surfaced by the OAuth2 core. It marshals to
// the RFC 6749 JSON error body and carries the HTTP status handlers should
// respond with.
type OAuth2Error struct {
	ErrorType        string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
	ErrorCode        string `json:"error_code,omitempty"`
	HTTPStatus       int    `json:"-"`
}

func (e *OAuth2Error) Error() string {
	out, _ := json.Marshal(e)
	return string(out)
}

var (
	ErrInvalidRequest = &OAuth2Error{
		ErrorType:  "invalid_request",
		HTTPStatus: http.StatusBadRequest,
	}

	// ErrInvalidClient covers both an unknown client id and a secret
	// mismatch. Callers must not be able to tell the two apart.
	ErrInvalidClient = &OAuth2Error{
		ErrorType:  "invalid_client",
		HTTPStatus: http.StatusUnauthorized,
	}

	ErrInvalidGrant = &OAuth2Error{
		ErrorType:  "invalid_grant",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrUnauthorizedClient = &OAuth2Error{
		ErrorType:  "unauthorized_client",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrUnsupportedGrantType = &OAuth2Error{
		ErrorType:  "unsupported_grant_type",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrInvalidScope = &OAuth2Error{
		ErrorType:  "invalid_scope",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrInvalidRedirectURI = &OAuth2Error{
		ErrorType:  "invalid_request",
		ErrorCode:  "invalid_redirect_uri",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrCodeNotFound = &OAuth2Error{
		ErrorType:  "invalid_grant",
		ErrorCode:  "invalid_code",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrCodeExpired = &OAuth2Error{
		ErrorType:  "invalid_grant",
		ErrorCode:  "code_expired",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrTokenNotFound = &OAuth2Error{
		ErrorType:  "invalid_token",
		ErrorCode:  "invalid_token",
		HTTPStatus: http.StatusUnauthorized,
	}

	ErrTokenExpired = &OAuth2Error{
		ErrorType:  "invalid_token",
		ErrorCode:  "token_expired",
		HTTPStatus: http.StatusUnauthorized,
	}

	ErrAccessDenied = &OAuth2Error{
		ErrorType:  "access_denied",
		HTTPStatus: http.StatusForbidden,
	}

	ErrUpstreamFailure = &OAuth2Error{
		ErrorType:  "server_error",
		ErrorCode:  "upstream_failure",
		HTTPStatus: http.StatusBadGateway,
	}
)

// ConvertToOAuth2Error converts any error to an OAuth2Error. An error that
// already is one is returned as-is; anything else is wrapped as a server
// error carrying the original message.
func ConvertToOAuth2Error(err error) *OAuth2Error {
	var oauthErr *OAuth2Error
	if errors.As(err, &oauthErr) {
		return oauthErr
	}

	return &OAuth2Error{
		ErrorType:        "server_error",
		ErrorDescription: err.Error(),
		HTTPStatus:       http.StatusInternalServerError,
	}
}
