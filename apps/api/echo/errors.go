package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	ut "github.com/go-playground/universal-translator"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/tsanzi/ratiba/core"
	"github.com/tsanzi/ratiba/core/directory"
	"github.com/tsanzi/ratiba/core/exam"
	"github.com/tsanzi/ratiba/core/schedule"
)

var errHttpNotFound = echo.NewHTTPError(http.StatusNotFound, "not found")

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		switch origErr := errors.Cause(err).(type) {
		case *echo.HTTPError:
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
			if origErr.Fields != nil {
				fldErrs := make(map[string]string, len(origErr.Fields))
				for _, fErr := range origErr.Fields {
					fldErrs[fErr.Field] = fErr.Error
				}
				message = fldErrs
			} else {
				message = origErr.Error()
			}
			code = http.StatusBadRequest
		case *schedule.ConflictError:
			code = http.StatusConflict
			message = echo.Map{
				"error":     origErr.Error(),
				"conflicts": origErr.Conflicts,
			}
		case *exam.InsufficientCapacityError:
			code = http.StatusBadRequest
			message = echo.Map{
				"error": origErr.Error(),
				"short": origErr.Short,
			}
		case *exam.CapacityExceededError:
			code = http.StatusBadRequest
			message = origErr.Error()
		default:
			switch origErr {
			case schedule.ErrNotFound, exam.ErrNotFound, directory.ErrNotFound:
				code = http.StatusNotFound
				message = errHttpNotFound.Message
			case schedule.ErrConcurrentModification, exam.ErrConcurrentModification:
				code = http.StatusConflict
				message = origErr.Error()
			default: // any other error is a server error
				code = http.StatusInternalServerError
				msg := http.StatusText(http.StatusInternalServerError)
				message = msg

				logger.Error(msg, errors.Wrap(err, msg))

				// shutting down...
				if core.IsShutdown(err) {
					signalShutdown()
				}
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
