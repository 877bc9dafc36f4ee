package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/idater/idater-backend/internal/auth"
	"github.com/idater/idater-backend/internal/db"
	apperrors "github.com/idater/idater-backend/internal/errors"
	"github.com/idater/idater-backend/internal/utils/retry"
)

const (
	dispatchTimeout  = 10 * time.Second
	presenceAttempts = 3
	presenceDelay    = time.Second
)

// ChatAPI is the slice of the chat service the gateway drives.
type ChatAPI interface {
	AppendMessage(ctx context.Context, conversationID, senderID uint64, content, msgType string) (*db.Message, error)
	MarkRead(ctx context.Context, conversationID, userID uint64) error
}

// Directory is the slice of the user service the gateway drives.
type Directory interface {
	SetPresence(ctx context.Context, userID uint64, online bool) error
	RecordProfileView(ctx context.Context, viewedID, viewerID uint64) error
}

// Gateway upgrades authenticated HTTP requests to websocket sessions and
// routes inbound events to the chat and user services.
type Gateway struct {
	hub      *Hub
	verifier auth.Verifier
	chat     ChatAPI
	users    Directory
	log      *slog.Logger
	upgrader websocket.Upgrader
}

func NewGateway(hub *Hub, verifier auth.Verifier, chat ChatAPI, users Directory, log *slog.Logger) *Gateway {
	return &Gateway{
		hub:      hub,
		verifier: verifier,
		chat:     chat,
		users:    users,
		log:      log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// Register mounts the websocket endpoint.
func (g *Gateway) Register(engine *gin.Engine) {
	engine.GET("/ws", g.handleWS)
}

func (g *Gateway) handleWS(c *gin.Context) {
	// browsers cannot set headers on websocket requests, so the token may
	// arrive as a query parameter instead
	token := auth.BearerToken(c.GetHeader("Authorization"))
	if token == "" {
		token = c.Query("token")
	}
	principal, err := g.verifier.Verify(token)
	if token == "" || err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "invalid or missing token"})
		return
	}

	conn, err := g.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		g.log.Warn("websocket upgrade failed", "user_id", principal.UserID, "error", err)
		return
	}

	client := newClient(g, conn, principal.UserID, principal.Role)
	g.hub.add(client)
	g.log.Info("websocket connected", "user_id", client.userID)

	go client.writePump()
	go g.markOnline(client.userID)

	client.readPump()
}

// markOnline persists the presence flip with retries, then announces it. The
// database can be briefly unavailable without costing the session.
func (g *Gateway) markOnline(userID uint64) {
	ctx, cancel := context.WithTimeout(context.Background(), presenceAttempts*2*presenceDelay+dispatchTimeout)
	defer cancel()

	err := retry.Do(ctx, presenceAttempts, presenceDelay, func() error {
		return g.users.SetPresence(ctx, userID, true)
	})
	if err != nil {
		g.log.Error("presence online update failed", "user_id", userID, "error", err)
	}
	g.hub.Broadcast("user:online", map[string]interface{}{"userId": userID})
}

// disconnect runs when a connection's read pump exits: room and typing
// cleanup always, presence teardown only when it was the user's last
// connection.
func (g *Gateway) disconnect(c *Client) {
	wasLast := g.hub.remove(c)

	for convID, typingUsers := range g.hub.purgeTyping(c.userID) {
		g.hub.emitToRoom(convID, "chat:typing", map[string]interface{}{
			"conversationId": convID,
			"userId":         c.userID,
			"isTyping":       false,
			"typingUsers":    typingUsers,
		}, nil)
	}

	if !wasLast {
		return
	}
	g.log.Info("websocket disconnected", "user_id", c.userID)

	ctx, cancel := context.WithTimeout(context.Background(), presenceAttempts*2*presenceDelay+dispatchTimeout)
	defer cancel()

	err := retry.Do(ctx, presenceAttempts, presenceDelay, func() error {
		return g.users.SetPresence(ctx, c.userID, false)
	})
	if err != nil {
		g.log.Error("presence offline update failed", "user_id", c.userID, "error", err)
	}
	g.hub.Broadcast("user:offline", map[string]interface{}{
		"userId":   c.userID,
		"lastSeen": time.Now().UnixMilli(),
	})
}

type inboundMessage struct {
	ConversationID uint64 `json:"conversationId"`
	Content        string `json:"content"`
	Type           string `json:"type"`
}

type inboundTyping struct {
	ConversationID uint64 `json:"conversationId"`
	IsTyping       bool   `json:"isTyping"`
}

type inboundRef struct {
	ConversationID uint64 `json:"conversationId"`
	TargetUserID   uint64 `json:"targetUserId"`
}

func (g *Gateway) dispatch(c *Client, raw []byte) {
	var env struct {
		Event string          `json:"event"`
		Data  json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		g.sendError(c, "malformed event")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
	defer cancel()

	switch env.Event {
	case "chat:join":
		var ref inboundRef
		if err := json.Unmarshal(env.Data, &ref); err != nil || ref.ConversationID == 0 {
			g.sendError(c, "conversationId is required")
			return
		}
		g.hub.JoinRoom(c, ref.ConversationID)

	case "chat:message":
		var in inboundMessage
		if err := json.Unmarshal(env.Data, &in); err != nil || in.ConversationID == 0 {
			g.sendError(c, "conversationId and content are required")
			return
		}
		msg, err := g.chat.AppendMessage(ctx, in.ConversationID, c.userID, in.Content, in.Type)
		if err != nil {
			g.sendError(c, apperrors.Map(err).Message)
			return
		}
		// ack to the sender; other participants are notified by the service
		g.hub.send(c, marshal("chat:message", map[string]interface{}{
			"conversationId": in.ConversationID,
			"message":        msg,
		}))

	case "chat:typing":
		var in inboundTyping
		if err := json.Unmarshal(env.Data, &in); err != nil || in.ConversationID == 0 {
			g.sendError(c, "conversationId is required")
			return
		}
		if typingUsers, changed := g.hub.setTyping(in.ConversationID, c.userID, in.IsTyping); changed {
			g.hub.emitToRoom(in.ConversationID, "chat:typing", map[string]interface{}{
				"conversationId": in.ConversationID,
				"userId":         c.userID,
				"isTyping":       in.IsTyping,
				"typingUsers":    typingUsers,
			}, c)
		}

	case "chat:read":
		var ref inboundRef
		if err := json.Unmarshal(env.Data, &ref); err != nil || ref.ConversationID == 0 {
			g.sendError(c, "conversationId is required")
			return
		}
		if err := g.chat.MarkRead(ctx, ref.ConversationID, c.userID); err != nil {
			g.sendError(c, apperrors.Map(err).Message)
		}

	case "profile:view":
		var ref inboundRef
		if err := json.Unmarshal(env.Data, &ref); err != nil || ref.TargetUserID == 0 {
			g.sendError(c, "targetUserId is required")
			return
		}
		if err := g.users.RecordProfileView(ctx, ref.TargetUserID, c.userID); err != nil {
			g.log.Warn("profile view failed", "user_id", c.userID, "target", ref.TargetUserID, "error", err)
			g.sendError(c, apperrors.Map(err).Message)
		}

	default:
		g.log.Debug("unknown websocket event", "event", env.Event, "user_id", c.userID)
	}
}

func (g *Gateway) sendError(c *Client, message string) {
	g.hub.send(c, marshal("chat:error", map[string]interface{}{"message": message}))
}
