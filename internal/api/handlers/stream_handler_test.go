package handlers

import (
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/oncall-agent/engine/internal/broadcast"
	"github.com/oncall-agent/engine/pkg/logger"
)

func TestMain(m *testing.M) {
	// Initialize logger for tests (required by the stream handler)
	_, err := logger.Init("info", "json")
	if err != nil {
		panic("failed to init logger: " + err.Error())
	}
	os.Exit(m.Run())
}

func TestStreamDeliversStepEvents(t *testing.T) {
	bcast := broadcast.New()
	r := chi.NewRouter()
	r.Get("/ws/investigations/{id}", NewStreamHandler(bcast).Stream)
	srv := httptest.NewServer(r)
	defer srv.Close()

	id := uuid.New()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/investigations/" + id.String()
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()
	defer func() { _ = resp.Body.Close() }()

	// connecting races the subscription registration inside the handler
	require.Eventually(t, func() bool {
		return bcast.SubscriberCount(id.String()) == 1
	}, time.Second, 10*time.Millisecond)

	bcast.Publish(id.String(), broadcast.StepEvent{
		Stage:   broadcast.StageAnalyzing,
		Message: "Analyzing incident...",
	})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev broadcast.StepEvent
	require.NoError(t, conn.ReadJSON(&ev))
	require.Equal(t, broadcast.StageAnalyzing, ev.Stage)
	require.Equal(t, id.String(), ev.InvestigationID)
}

func TestStreamClientDisconnectUnsubscribes(t *testing.T) {
	bcast := broadcast.New()
	r := chi.NewRouter()
	r.Get("/ws/investigations/{id}", NewStreamHandler(bcast).Stream)
	srv := httptest.NewServer(r)
	defer srv.Close()

	id := uuid.New()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/investigations/" + id.String()
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	require.Eventually(t, func() bool {
		return bcast.SubscriberCount(id.String()) == 1
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())

	require.Eventually(t, func() bool {
		return bcast.SubscriberCount(id.String()) == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestStreamRejectsBadID(t *testing.T) {
	bcast := broadcast.New()
	r := chi.NewRouter()
	r.Get("/ws/investigations/{id}", NewStreamHandler(bcast).Stream)
	srv := httptest.NewServer(r)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/investigations/not-a-uuid"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.Nil(t, conn)
	if resp != nil {
		defer func() { _ = resp.Body.Close() }()
	}
}
