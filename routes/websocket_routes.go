package routes

import (
	"safeher/pkg/websocket"

	"github.com/gin-gonic/gin"
)

// SetupWebSocketRoutes mounts the per-session realtime channel behind the given middleware
func SetupWebSocketRoutes(r *gin.Engine, path string, ws *websocket.Handler, middleware ...gin.HandlerFunc) {
	if path == "" {
		path = "/ws"
	}
	chain := append(append([]gin.HandlerFunc{}, middleware...), ws.HandleWebSocket)
	r.GET(path+"/:id", chain...)
}
