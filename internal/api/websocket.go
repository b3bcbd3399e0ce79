package api

import (
	"net/http"

	"fieldserve/internal/auth"
	"fieldserve/internal/model"
	"fieldserve/internal/ws"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// wsHandler upgrades the connection and subscribes it to the actor's
// channels. Clients get their own channel, technicians theirs, admins the
// shared admin feed.
func (d Dependencies) wsHandler(w http.ResponseWriter, r *http.Request) {
	if d.Hub == nil {
		http.Error(w, "WebSocket hub not initialized", http.StatusInternalServerError)
		return
	}

	actor, ok := auth.ActorFrom(r.Context())
	if !ok {
		http.Error(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	var channels []string
	switch actor.Role {
	case model.RoleClient:
		channels = []string{"client:" + actor.ID}
	case model.RoleTechnician:
		channels = []string{"technician:" + actor.ID}
	case model.RoleAdmin:
		channels = []string{"admins"}
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		d.Log.Error("Failed to upgrade connection", zap.Error(err))
		return
	}

	d.Log.Info("WebSocket connected",
		zap.String("actor_id", actor.ID),
		zap.String("role", string(actor.Role)))

	wsConn := ws.NewConn(conn, d.Hub, actor.ID, channels)
	d.Hub.Register(wsConn)

	go wsConn.WritePump()
	go wsConn.ReadPump()
}
