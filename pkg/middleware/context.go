package middleware

import (
	"github.com/William9701/blockchain-hr-platform/pkg/context"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const (
	// HeaderPartyAddress is the header key for the caller's wallet address
	HeaderPartyAddress = "X-Party-Address"
)

func Context() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			req := c.Request()

			// get request id from header
			requestID := req.Header.Get(echo.HeaderXRequestID)
			if requestID == "" {
				requestID = uuid.New().String()
			}

			partyAddress := req.Header.Get(HeaderPartyAddress)

			ctx := req.Context()
			ctx = context.SetRequestID(ctx, requestID)
			ctx = context.SetMethod(ctx, req.Method)
			ctx = context.SetRoute(ctx, req.URL.Path)
			ctx = context.SetRemoteIP(ctx, c.RealIP())
			ctx = context.SetReferer(ctx, req.Referer())
			ctx = context.SetPartyAddress(ctx, partyAddress)

			c.SetRequest(req.WithContext(ctx))

			return next(c)
		}
	}
}
