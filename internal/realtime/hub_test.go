package realtime

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskflow/internal/models"
)

func TestHubDeliversOnlyToReceiver(t *testing.T) {
	hub := NewHub()
	receiver := models.EmployeeActor(7)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := Upgrade(w, r)
		if err != nil {
			return
		}
		hub.Serve(receiver, conn)
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer client.Close()

	require.Eventually(t, func() bool { return hub.Subscribers(receiver) == 1 }, time.Second, 10*time.Millisecond)

	hub.Publish(
		models.Notification{ID: 1, Receiver: models.PMActor(7), Message: "not yours"},
		models.Notification{ID: 2, Receiver: receiver, Message: "yours"},
	)

	var got models.Notification
	require.NoError(t, client.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, client.ReadJSON(&got))
	assert.Equal(t, int64(2), got.ID)
	assert.Equal(t, "yours", got.Message)

	client.Close()
	assert.Eventually(t, func() bool { return hub.Subscribers(receiver) == 0 }, 2*time.Second, 10*time.Millisecond)
}
