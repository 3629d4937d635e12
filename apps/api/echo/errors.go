package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/fetc/proposals/core"
	"github.com/fetc/proposals/core/attachment"
	"github.com/fetc/proposals/core/proposal"
	"github.com/fetc/proposals/core/review"
	"github.com/fetc/proposals/core/user"
	"github.com/fetc/proposals/storage/files"
)

var (
	errUnauthorized         = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errAuthenticationFailed = echo.NewHTTPError(http.StatusBadRequest, "authentication failed")
	errAccountDeactivated   = echo.NewHTTPError(http.StatusForbidden, "account deactivated")
	errRefreshExpired       = echo.NewHTTPError(http.StatusForbidden, "refresh has expired")
	errHttpForbidden        = echo.NewHTTPError(http.StatusForbidden, "permission denied")
)

// statusCodes maps the domain errors to their response code.
var statusCodes = map[error]int{
	review.ErrForbidden:            http.StatusForbidden,
	review.ErrNotEditable:          http.StatusConflict,
	review.ErrWrongStatus:          http.StatusConflict,
	review.ErrPractice:             http.StatusConflict,
	review.ErrNoParent:             http.StatusNotFound,
	review.ErrIncomplete:           http.StatusUnprocessableEntity,
	proposal.ErrNotFound:           http.StatusNotFound,
	proposal.ErrMalformedReference: http.StatusBadRequest,
	proposal.ErrReferenceExists:    http.StatusConflict,
	attachment.ErrNotFound:         http.StatusNotFound,
	attachment.ErrUnknownKind:      http.StatusBadRequest,
	user.ErrNotFound:               http.StatusNotFound,
	files.ErrInvalidKey:            http.StatusNotFound,
}

// incompleteResponse lists the steps keeping a proposal from being submitted.
type incompleteResponse struct {
	Error string   `json:"error"`
	Steps []string `json:"steps"`
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		cause := errors.Cause(err)
		var incomplete *review.IncompleteError

		switch origErr := cause.(type) {
		case *echo.HTTPError:
			if origErr == middleware.ErrJWTMissing {
				code = http.StatusUnauthorized
				message = origErr.Message
				break
			}
			if origErr.Internal != nil {
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
			}
			code = origErr.Code
			message = origErr.Message
		case validator.ValidationErrors:
			fldErrs := make(map[string]string, len(origErr))
			for _, vErr := range origErr {
				fldErrs[vErr.Field()] = vErr.Translate(translator)
			}
			code = http.StatusBadRequest
			message = fldErrs
		case *core.ValidationError:
			if len(origErr.Fields) > 0 {
				message = origErr.FieldMap()
			} else {
				message = origErr.Error()
			}
			code = http.StatusBadRequest
		default:
			if errors.As(err, &incomplete) {
				code = http.StatusUnprocessableEntity
				message = incompleteResponse{Error: review.ErrIncomplete.Error(), Steps: incomplete.Steps}
				break
			}
			if c, ok := statusCodes[cause]; ok {
				code = c
				message = cause.Error()
				break
			}

			// any other error is a server error
			code = http.StatusInternalServerError
			msg := http.StatusText(http.StatusInternalServerError)
			message = msg

			var usr user.User
			if claims, cErr := getContextClaims(ctx); cErr == nil {
				usr.ID = claims.Subject
				usr.Username = claims.Username
				usr.Email = claims.Email
			}
			logger.Error(msg, errors.Wrap(err, msg), usr)

			// shutting down...
			if core.IsShutdown(err) {
				signalShutdown()
			}
		}

		if ctx.Echo().Debug && code == http.StatusInternalServerError {
			message = err.Error()
		}
		if m, ok := message.(string); ok {
			message = echo.Map{"error": m}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, message)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}
