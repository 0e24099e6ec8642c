package http

import "github.com/labstack/echo/v4"

// Handler mounts a group of routes, e.g. the signal API or the websocket feed,
// on the shared echo server.
type Handler interface {
	RegisterRoutes(e *echo.Echo)
}
