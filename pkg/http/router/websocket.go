package router

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gobwas/ws"
	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"
)

// serveWebsocket upgrades the request and serves a nearby-events session on it until the client
// goes away. Query parameters filter and limit apply for the whole connection.
func (api *API) serveWebsocket(nearbyLimit int) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		limit := nearbyLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			v, err := strconv.Atoi(raw)
			if err != nil || v < 1 || v > 100 {
				http.Error(w, "limit must be an int between 1 and 100", http.StatusBadRequest)
				return
			}
			limit = v
		}

		conn, _, hs, err := ws.UpgradeHTTP(r, w)
		if err != nil {
			api.log.Info("upgrade error", zap.Error(err), zap.String("remote_addr", r.RemoteAddr))
			return
		}
		// the http server's deadlines would otherwise cut long lived sockets
		_ = conn.SetDeadline(time.Time{})

		api.log.Info("established websocket connection", zap.String("remote_addr", r.RemoteAddr),
			zap.String("protocol", hs.Protocol))

		user := api.hub.Register(conn, r.URL.Query()["filter"], limit)
		defer api.hub.Remove(user)

		if err := user.Run(r.Context()); err != nil {
			api.log.Warn("websocket session ended with error", zap.Error(err),
				zap.String("remote_addr", r.RemoteAddr))
			return
		}
		api.log.Info("user disconnected from websocket server", zap.String("remote_addr", r.RemoteAddr))
	}
}
