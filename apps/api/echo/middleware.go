package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

// committeeMiddleware lets committee members with any of roles through; with no
// roles any committee member passes.
func committeeMiddleware(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			if claims.IsCommittee && contextHasAnyRole(ctx, roles) {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}
