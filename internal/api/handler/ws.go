package handler

import (
	"complaintdesk/backend/internal/changefeed"
	"complaintdesk/backend/internal/config"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Browsers connect from the dashboard origin; the session token is the access check.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWebSocket upgrades the connection and streams complaint changes.
// Students only see their own rows; administrators see all rows unless
// they narrow the feed with ?owner=.
func (h *Handler) ServeWebSocket(c *gin.Context) {
	id := identity(c)
	filter := changefeed.Filter{Table: changefeed.TableComplaints, OwnerID: id.UserID}
	if id.IsAdmin() {
		filter.OwnerID = c.Query("owner")
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the error response.
		return
	}

	clientID := id.UserID + ":" + uuid.NewString()
	changefeed.NewWebSocketClient(clientID, filter, conn, h.Hub, config.ChangeFeedBuffer).Run()
}
