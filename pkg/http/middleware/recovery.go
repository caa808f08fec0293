package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"MacroPulse/pkg/logger"

	"github.com/labstack/echo/v4"
)

// Recover turns a handler panic into a 500 envelope. Nothing is written when
// the response was already committed, as with a hijacked websocket.
func Recover(l *logger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				perr, ok := r.(error)
				if !ok {
					perr = fmt.Errorf("%v", r)
				}
				l.Error("panic recovered",
					logger.Error(perr),
					logger.String("route", c.Path()),
					logger.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
					logger.String("stack", string(debug.Stack())),
				)
				if c.Response().Committed {
					return
				}
				err = c.JSON(http.StatusInternalServerError, map[string]interface{}{
					"status":  http.StatusInternalServerError,
					"message": http.StatusText(http.StatusInternalServerError),
					"data":    "Something went wrong",
				})
			}()
			return next(c)
		}
	}
}
