package profile

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleLive_StreamsIngestSummaries(t *testing.T) {
	router, svc := newTestRouter(t)

	srv := httptest.NewServer(router)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/profile/live"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	// The handler registers the client once the upgrade completes, which
	// can be after Dial returns.
	require.Eventually(t, func() bool {
		return svc.hub.clientCount() == 1
	}, time.Second, 10*time.Millisecond)

	ingest := httptest.NewRequest(http.MethodPost, "/v1/profile/ingest", strings.NewReader(sampleBatch))
	ingest.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, ingest)
	require.Equal(t, http.StatusOK, w.Code)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var event LiveEvent
	require.NoError(t, conn.ReadJSON(&event))
	assert.Equal(t, "ingest", event.Type)
	require.NotNil(t, event.Summary)
	assert.Equal(t, 2, event.Summary.Records)
}

func TestLiveHub_BroadcastWithoutClientsIsNoOp(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hub := newLiveHub()

	// Broadcast with no clients is a no-op.
	hub.broadcast(LiveEvent{Type: "ingest"})
	assert.Equal(t, 0, hub.clientCount())
}
