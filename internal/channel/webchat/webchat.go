package webchat

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/relayhub/relay-gateway/internal/channel"
	"github.com/relayhub/relay-gateway/internal/dispatch"
)

// Adapter serves the browser chat over WebSocket. Each inbound frame runs the
// same routing pipeline as the HTTP boundary.
type Adapter struct {
	port     int
	incoming chan *channel.Message
	upgrader websocket.Upgrader
	conns    map[string]*wsConn
	connMux  sync.RWMutex
	stopCh   chan struct{}
	logger   *slog.Logger
}

// wsConn serializes writes: replies for one user may be produced by
// concurrent pipeline goroutines, and gorilla/websocket forbids concurrent
// writers on a connection.
type wsConn struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (c *wsConn) writeMessage(messageType int, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(messageType, data)
}

// WSMessage is the WebSocket wire frame in both directions.
type WSMessage struct {
	Type        string                `json:"type"`
	Content     string                `json:"content,omitempty"`
	UserID      string                `json:"user_id,omitempty"`
	Model       string                `json:"model,omitempty"`
	Reasoning   string                `json:"reasoning,omitempty"`
	Performance *dispatch.Performance `json:"performance,omitempty"`
}

// NewAdapter creates a webchat adapter listening on the given port.
func NewAdapter(port int, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{
		port:     port,
		incoming: make(chan *channel.Message, 100),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true }, // Allow all origins for now
		},
		conns:  make(map[string]*wsConn),
		stopCh: make(chan struct{}),
		logger: logger,
	}
}

func (a *Adapter) Name() string {
	return "webchat"
}

func (a *Adapter) IsEnabled() bool {
	return a.port > 0
}

func (a *Adapter) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", a.wsHandler)
	server := &http.Server{Addr: ":" + strconv.Itoa(a.port), Handler: mux}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.Error("webchat server error", "error", err)
		}
	}()

	go func() {
		<-ctx.Done()
		server.Shutdown(context.Background())
		close(a.stopCh)
		a.closeConns()
	}()

	return nil
}

func (a *Adapter) Stop() error {
	close(a.incoming)
	return nil
}

// closeConns unblocks every reader stuck in ReadJSON so handlers exit
// promptly on shutdown.
func (a *Adapter) closeConns() {
	a.connMux.Lock()
	defer a.connMux.Unlock()
	for userID, c := range a.conns {
		c.conn.Close()
		delete(a.conns, userID)
	}
}

// SendMessage delivers a routed reply to the user's connection. A missing
// connection is not an error; the user is simply gone.
func (a *Adapter) SendMessage(userID string, resp *channel.Response) error {
	a.connMux.RLock()
	c, exists := a.conns[userID]
	a.connMux.RUnlock()

	if !exists {
		return nil
	}

	msg := WSMessage{
		Type:        "message",
		Content:     resp.Reply,
		Model:       resp.Model,
		Reasoning:   resp.Reasoning,
		Performance: resp.Performance,
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return c.writeMessage(websocket.TextMessage, data)
}

func (a *Adapter) Incoming() <-chan *channel.Message {
	return a.incoming
}

func (a *Adapter) wsHandler(rw http.ResponseWriter, r *http.Request) {
	conn, err := a.upgrader.Upgrade(rw, r, nil)
	if err != nil {
		a.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		userID = "anonymous_" + strconv.FormatInt(time.Now().Unix(), 10)
	}

	a.connMux.Lock()
	a.conns[userID] = &wsConn{conn: conn}
	a.connMux.Unlock()

	defer func() {
		a.connMux.Lock()
		delete(a.conns, userID)
		a.connMux.Unlock()
		conn.Close()
	}()

	for {
		var msg WSMessage
		if err := conn.ReadJSON(&msg); err != nil {
			select {
			case <-a.stopCh:
				a.logger.Debug("websocket closed on shutdown", "user", userID)
			default:
				a.logger.Debug("websocket read ended", "user", userID, "error", err)
			}
			return
		}

		if msg.Type == "message" {
			a.incoming <- &channel.Message{
				ID:        uuid.NewString(),
				Channel:   "webchat",
				UserID:    userID,
				Content:   msg.Content,
				Timestamp: time.Now().Unix(),
			}
		}
	}
}
