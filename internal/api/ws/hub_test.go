package ws

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/your-org/idscan/internal/models"
	"github.com/your-org/idscan/pkg/dto"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func startHub(t *testing.T) (*Hub, string) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub()
	go hub.Run(ctx)

	r := gin.New()
	r.GET("/ws", hub.HandleWS)
	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitClients(t *testing.T, hub *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.Clients() != n {
		if time.Now().After(deadline) {
			t.Fatalf("clients = %d, want %d", hub.Clients(), n)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func readEvent(t *testing.T, conn *websocket.Conn) dto.WSEvent {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var evt dto.WSEvent
	if err := conn.ReadJSON(&evt); err != nil {
		t.Fatalf("read: %v", err)
	}
	return evt
}

func TestBroadcastScan(t *testing.T) {
	hub, url := startHub(t)
	conn := dial(t, url)
	waitClients(t, hub, 1)

	hub.BroadcastScan(models.ScanEvent{
		ID:     "scan-1",
		Source: "/dev/video0",
		Entry: models.ScanHistoryEntry{
			Timestamp: 1000,
			Results:   []models.MatchResult{{Label: "A", Distance: 0.1}},
		},
	})

	evt := readEvent(t, conn)
	if evt.Type != dto.WSScanCompleted {
		t.Fatalf("type = %q", evt.Type)
	}
	if evt.Scan == nil || evt.Scan.ID != "scan-1" || evt.Scan.Entry.Results[0].Label != "A" {
		t.Fatalf("scan = %+v", evt.Scan)
	}
}

func TestSourceFilter(t *testing.T) {
	hub, url := startHub(t)
	filtered := dial(t, url+"?source=cam-2")
	waitClients(t, hub, 1)

	hub.BroadcastScan(models.ScanEvent{ID: "other", Source: "cam-1"})
	hub.BroadcastScan(models.ScanEvent{ID: "mine", Source: "cam-2"})
	hub.BroadcastGallerySaved("local file", 3, time.Unix(0, 0))

	first := readEvent(t, filtered)
	if first.Scan == nil || first.Scan.ID != "mine" {
		t.Fatalf("first = %+v, want scan mine", first)
	}
	second := readEvent(t, filtered)
	if second.Type != dto.WSGallerySaved || second.Gallery.Records != 3 {
		t.Fatalf("second = %+v, want gallery notice", second)
	}
}

func TestDisconnectUnregisters(t *testing.T) {
	hub, url := startHub(t)
	conn := dial(t, url)
	waitClients(t, hub, 1)

	conn.Close()
	waitClients(t, hub, 0)

	// Broadcasting past the queue size with no clients must not block.
	for i := 0; i < 300; i++ {
		hub.BroadcastScan(models.ScanEvent{ID: "late"})
	}
}
