package relay

import (
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
	"go.uber.org/zap"
)

func startHub(t *testing.T) (*Relay, string) {
	t.Helper()
	r := New("test", zap.NewNop())
	hub := NewHub(r.Version, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	r.Subscribe(hub.Handle)

	// stands in for the auth middleware
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if u := req.URL.Query().Get("user"); u != "" {
			req = req.WithContext(WithViewer(req.Context(), u))
		}
		hub.ServeHTTP(w, req)
	}))
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return r, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var e Event
	require.NoError(t, json.Unmarshal(data, &e))
	return e
}

func TestHub_PushesEvents(t *testing.T) {
	r, url := startHub(t)
	_, _ = r.Publish(context.Background(), ProductAdded, ProductRef{ID: "0"})

	conn := dial(t, url+"?user=cust-1")
	hello := readEvent(t, conn)
	assert.Equal(t, Connected, hello.Type)
	assert.Equal(t, uint64(1), hello.Version)

	_, err := r.Publish(context.Background(), ProductRemoved, ProductRef{ID: "42"})
	require.NoError(t, err)

	e := readEvent(t, conn)
	assert.Equal(t, ProductRemoved, e.Type)
	assert.Equal(t, uint64(2), e.Version)
	var ref ProductRef
	require.NoError(t, e.Decode(&ref))
	assert.Equal(t, "42", ref.ID.String())
}

func TestHub_FiltersByType(t *testing.T) {
	r, url := startHub(t)

	conn := dial(t, url+"?user=cust-1&types=orderStatusUpdated")
	readEvent(t, conn)

	_, _ = r.Publish(context.Background(), ProductAdded, ProductRef{ID: "1"})
	_, _ = r.Publish(context.Background(), OrderStatusUpdated, OrderStatusChange{OrderID: "ORD-1", CustomerID: "cust-1", Status: "delivered"})

	e := readEvent(t, conn)
	assert.Equal(t, OrderStatusUpdated, e.Type)
}

func TestHub_RejectsAnonymousClients(t *testing.T) {
	_, url := startHub(t)

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHub_OrderEventsReachOnlyInvolvedUsers(t *testing.T) {
	r, url := startHub(t)
	ctx := context.Background()

	buyer := dial(t, url+"?user=cust-1")
	seller := dial(t, url+"?user=alpha-farm")
	other := dial(t, url+"?user=cust-2")
	for _, c := range []*websocket.Conn{buyer, seller, other} {
		readEvent(t, c)
	}

	_, err := r.Publish(ctx, NewOrderPlaced, OrderPlaced{OrderID: "ORD-1-alph", ParentID: "ORD-1", SellerID: "alpha-farm", CustomerID: "cust-1", Total: 216})
	require.NoError(t, err)
	_, err = r.Publish(ctx, CartUpdated, CartChange{OwnerID: "cust-1", Count: 0})
	require.NoError(t, err)
	_, err = r.Publish(ctx, ProductAdded, ProductRef{ID: "7"})
	require.NoError(t, err)

	assert.Equal(t, NewOrderPlaced, readEvent(t, buyer).Type)
	assert.Equal(t, CartUpdated, readEvent(t, buyer).Type)
	assert.Equal(t, ProductAdded, readEvent(t, buyer).Type)

	assert.Equal(t, NewOrderPlaced, readEvent(t, seller).Type)
	assert.Equal(t, ProductAdded, readEvent(t, seller).Type)

	// the next thing another customer sees is the public catalog event
	assert.Equal(t, ProductAdded, readEvent(t, other).Type)
}

func TestAudience(t *testing.T) {
	status, err := json.Marshal(OrderStatusChange{OrderID: "ORD-1", CustomerID: "cust-1", SellerIDs: []string{"alpha-farm", "bravo-dairy"}})
	require.NoError(t, err)

	users, public := audience(Event{Type: OrderStatusUpdated, Payload: status})
	assert.False(t, public)
	assert.ElementsMatch(t, []string{"cust-1", "", "alpha-farm", "bravo-dairy"}, users)

	_, public = audience(Event{Type: ProductPostedChanged})
	assert.True(t, public)

	users, public = audience(Event{Type: EventType("somethingNew")})
	assert.False(t, public)
	assert.Empty(t, users)
}
