package changefeed_test

import (
	"complaintdesk/backend/internal/changefeed"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebSocketClient_StreamsMatchingEvents(t *testing.T) {
	hub := startHub(t)
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		filter := changefeed.Filter{Table: changefeed.TableComplaints, OwnerID: "student-a"}
		changefeed.NewWebSocketClient("ws-1", filter, conn, hub, 8).Run()
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	// Registration happens asynchronously; publish until the first event arrives.
	ctx := context.Background()
	got := make(chan changefeed.Event, 1)
	go func() {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var evt changefeed.Event
		if json.Unmarshal(data, &evt) == nil {
			got <- evt
		}
	}()

	deadline := time.After(2 * time.Second)
	for {
		require.NoError(t, hub.Broadcast(ctx, complaintEvent(changefeed.KindInsert, "c-other", "student-b")))
		require.NoError(t, hub.Broadcast(ctx, complaintEvent(changefeed.KindUpdate, "c-1", "student-a")))
		select {
		case evt := <-got:
			assert.Equal(t, "c-1", evt.ComplaintID)
			assert.Equal(t, changefeed.KindUpdate, evt.Kind)
			return
		case <-time.After(50 * time.Millisecond):
		case <-deadline:
			t.Fatal("no event received over the websocket")
		}
	}
}
