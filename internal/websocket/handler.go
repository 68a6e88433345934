package websocket

import (
	"net/http"

	ws "github.com/coder/websocket"
)

// HandleWebSocket serves GET /ws. With no originPatterns only same-origin
// pages may connect.
func HandleWebSocket(hub *Hub, originPatterns []string) http.HandlerFunc {
	opts := &ws.AcceptOptions{OriginPatterns: originPatterns}
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := ws.Accept(w, r, opts)
		if err != nil {
			// Accept has already written the error response.
			hub.logger.Warn("reject screen connection",
				"remote", r.RemoteAddr,
				"origin", r.Header.Get("Origin"),
				"error", err,
			)
			return
		}
		NewClient(hub, conn, r.RemoteAddr).Run(r.Context())
	}
}
