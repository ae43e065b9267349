// Package ws provides the WebSocket transport: turn events pushed to the
// client and approval decisions accepted on the same socket.
package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/mindgate/mindgate/internal/domain"
	"github.com/mindgate/mindgate/internal/service"
)

const (
	writeTimeout   = 10 * time.Second
	pongTimeout    = 60 * time.Second
	pingInterval   = 54 * time.Second
	maxMessageSize = 1 << 20
)

// Message types on the socket.
const (
	TypeHello            = "hello"
	TypeHelloAck         = "hello_ack"
	TypeMessage          = "message"
	TypeTurnEvent        = "turn_event"
	TypeApprovalDecision = "approval_decision"
	TypeError            = "error"
)

type baseMessage struct {
	Type string `json:"type"`
	Ts   int64  `json:"ts,omitempty"`
}

type helloMessage struct {
	baseMessage
	UserID string `json:"user_id"`
}

type messageMessage struct {
	baseMessage
	Content   string `json:"content,omitempty"`
	Audio     []byte `json:"audio,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	Mode      string `json:"mode,omitempty"`
}

type approvalDecisionMessage struct {
	baseMessage
	ApprovalID string `json:"approval_id"`
	Decision   string `json:"decision"`
}

type turnEventMessage struct {
	baseMessage
	Event domain.TurnEvent `json:"event"`
}

type errorMessage struct {
	baseMessage
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Server handles WebSocket connections.
type Server struct {
	service  *service.Service
	upgrader websocket.Upgrader
}

// NewServer creates a new WebSocket server.
func NewServer(svc *service.Service) *Server {
	return &Server{
		service: svc,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

type connection struct {
	ws     *websocket.Conn
	send   chan []byte
	userID string
}

// HandleWebSocket upgrades the request and runs the connection lifecycle.
func (s *Server) HandleWebSocket(c echo.Context) error {
	ws, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		log.Printf("ERROR: failed to upgrade WebSocket: %v", err)
		return err
	}

	conn := &connection{ws: ws, send: make(chan []byte, 64)}
	ws.SetReadLimit(maxMessageSize)

	// The request context dies when this handler returns, so the
	// connection gets its own lifetime, ended by either pump.
	ctx, cancel := context.WithCancel(context.Background())
	go s.writePump(conn, cancel)
	go s.readPump(ctx, conn, cancel)

	return nil
}

func (s *Server) readPump(ctx context.Context, conn *connection, cancel context.CancelFunc) {
	defer func() {
		cancel()
		conn.ws.Close()
	}()

	conn.ws.SetReadDeadline(time.Now().Add(pongTimeout))
	conn.ws.SetPongHandler(func(string) error {
		conn.ws.SetReadDeadline(time.Now().Add(pongTimeout))
		return nil
	})

	for {
		_, data, err := conn.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WARN: websocket read error: %v", err)
			}
			return
		}
		s.handleMessage(ctx, conn, data)
	}
}

func (s *Server) writePump(conn *connection, cancel context.CancelFunc) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		cancel()
		conn.ws.Close()
	}()

	for {
		select {
		case message, ok := <-conn.send:
			conn.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				conn.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.ws.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("WARN: websocket write error: %v", err)
				return
			}

		case <-ticker.C:
			conn.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Server) handleMessage(ctx context.Context, conn *connection, data []byte) {
	var base baseMessage
	if err := json.Unmarshal(data, &base); err != nil {
		s.sendError(conn, "invalid_message", "invalid JSON message")
		return
	}

	switch base.Type {
	case TypeHello:
		s.handleHello(conn, data)
	case TypeMessage:
		s.handleUserMessage(ctx, conn, data)
	case TypeApprovalDecision:
		s.handleApprovalDecision(conn, data)
	default:
		s.sendError(conn, "invalid_message", "unknown message type: "+base.Type)
	}
}

func (s *Server) handleHello(conn *connection, data []byte) {
	var msg helloMessage
	if err := json.Unmarshal(data, &msg); err != nil || msg.UserID == "" {
		s.sendError(conn, "invalid_message", "hello requires user_id")
		return
	}

	conn.userID = msg.UserID
	s.sendJSON(conn, helloMessage{
		baseMessage: baseMessage{Type: TypeHelloAck, Ts: time.Now().UnixMilli()},
		UserID:      msg.UserID,
	})
}

func (s *Server) handleUserMessage(ctx context.Context, conn *connection, data []byte) {
	var msg messageMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.sendError(conn, "invalid_message", "invalid message payload")
		return
	}
	if conn.userID == "" {
		s.sendError(conn, "hello_required", "must send hello first")
		return
	}
	if msg.Content == "" && len(msg.Audio) == 0 {
		s.sendError(conn, "invalid_message", "content or audio is required")
		return
	}

	req := &domain.ProcessMessageRequest{
		UserID:      conn.userID,
		Content:     []byte(msg.Content),
		ContentType: domain.MessageTypeText,
		SessionID:   msg.SessionID,
	}
	if len(msg.Audio) > 0 {
		req.Content = msg.Audio
		req.ContentType = domain.MessageTypeVoice
	}
	if msg.Mode != "" {
		mode, err := domain.ParseMode(msg.Mode)
		if err != nil {
			s.sendError(conn, "invalid_message", err.Error())
			return
		}
		req.Mode = mode
	}

	// Run the turn off the read loop so approval decisions arriving on the
	// same socket can resolve the turn's own pending approvals.
	go func() {
		for ev := range s.service.ProcessMessage(ctx, req) {
			s.sendJSON(conn, turnEventMessage{
				baseMessage: baseMessage{Type: TypeTurnEvent, Ts: time.Now().UnixMilli()},
				Event:       ev,
			})
		}
	}()
}

func (s *Server) handleApprovalDecision(conn *connection, data []byte) {
	var msg approvalDecisionMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.sendError(conn, "invalid_message", "invalid approval_decision message")
		return
	}
	if conn.userID == "" {
		s.sendError(conn, "hello_required", "must send hello first")
		return
	}

	if err := s.service.ResolveApproval(msg.ApprovalID, msg.Decision); err != nil {
		log.Printf("INFO: approval decision for %s failed: %v", msg.ApprovalID, err)
		s.sendError(conn, "approval_decision_failed", err.Error())
	}
}

func (s *Server) sendJSON(conn *connection, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("ERROR: failed to marshal ws message: %v", err)
		return
	}
	select {
	case conn.send <- data:
	default:
		log.Printf("WARN: dropping ws message for slow consumer")
	}
}

func (s *Server) sendError(conn *connection, code, message string) {
	s.sendJSON(conn, errorMessage{
		baseMessage: baseMessage{Type: TypeError, Ts: time.Now().UnixMilli()},
		Code:        code,
		Message:     message,
	})
}
