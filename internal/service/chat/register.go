package chat

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/idater/idater-backend/internal/auth"
	apperrors "github.com/idater/idater-backend/internal/errors"
	"github.com/idater/idater-backend/internal/server"
)

// Registrar wires the conversation routes onto the HTTP engine.
type Registrar struct {
	svc      *Service
	verifier auth.Verifier
}

func NewRegistrar(svc *Service, verifier auth.Verifier) *Registrar {
	return &Registrar{svc: svc, verifier: verifier}
}

func (r *Registrar) Register(engine *gin.Engine) {
	g := engine.Group("/chat", auth.Middleware(r.verifier))
	g.GET("", r.list)
	g.POST("/admin", r.createWithAdmin)
	g.POST("/createOrRetrieve/:userId", r.createOrRetrieve)
	g.GET("/getByid/:chatId", r.getByID)
	g.GET("/message-cost", r.messageCost)
	g.GET("/:chatId/messages", r.messages)
	g.POST("/:chatId/messages", r.sendMessage)
	g.POST("/:chatId/read", r.markRead)
}

func (r *Registrar) list(c *gin.Context) {
	principal, _ := auth.PrincipalFrom(c)
	views, err := r.svc.ListForUser(c.Request.Context(), principal.UserID)
	if err != nil {
		server.Fail(c, err)
		return
	}
	server.OK(c, views)
}

func (r *Registrar) createWithAdmin(c *gin.Context) {
	principal, _ := auth.PrincipalFrom(c)
	view, err := r.svc.CreateWithAdmin(c.Request.Context(), principal.UserID)
	if err != nil {
		server.Fail(c, err)
		return
	}
	server.OK(c, view)
}

func (r *Registrar) createOrRetrieve(c *gin.Context) {
	principal, _ := auth.PrincipalFrom(c)
	otherID, err := server.ParamUint(c, "userId")
	if err != nil {
		server.Fail(c, err)
		return
	}

	view, err := r.svc.CreateOrGet(c.Request.Context(), principal.UserID, otherID)
	if err != nil {
		server.Fail(c, err)
		return
	}
	server.OK(c, view)
}

func (r *Registrar) getByID(c *gin.Context) {
	principal, _ := auth.PrincipalFrom(c)
	chatID, err := server.ParamUint(c, "chatId")
	if err != nil {
		server.Fail(c, err)
		return
	}

	view, err := r.svc.GetByID(c.Request.Context(), chatID, principal.UserID)
	if err != nil {
		server.Fail(c, err)
		return
	}
	server.OK(c, view)
}

func (r *Registrar) messages(c *gin.Context) {
	principal, _ := auth.PrincipalFrom(c)
	chatID, err := server.ParamUint(c, "chatId")
	if err != nil {
		server.Fail(c, err)
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		limit, _ = strconv.Atoi(raw)
	}
	var token *string
	if raw := c.Query("paginationToken"); raw != "" {
		token = &raw
	}

	msgs, next, err := r.svc.Messages(c.Request.Context(), chatID, principal.UserID, token, limit)
	if err != nil {
		server.Fail(c, err)
		return
	}
	server.OK(c, gin.H{"messages": msgs, "paginationToken": next})
}

type sendMessageRequest struct {
	Content string `json:"content"`
	Type    string `json:"type"`
}

func (r *Registrar) sendMessage(c *gin.Context) {
	principal, _ := auth.PrincipalFrom(c)
	chatID, err := server.ParamUint(c, "chatId")
	if err != nil {
		server.Fail(c, err)
		return
	}

	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		server.Fail(c, apperrors.Validation("invalid request body"))
		return
	}

	msg, err := r.svc.AppendMessage(c.Request.Context(), chatID, principal.UserID, req.Content, req.Type)
	if err != nil {
		server.Fail(c, err)
		return
	}
	server.Created(c, msg)
}

func (r *Registrar) markRead(c *gin.Context) {
	principal, _ := auth.PrincipalFrom(c)
	chatID, err := server.ParamUint(c, "chatId")
	if err != nil {
		server.Fail(c, err)
		return
	}

	if err := r.svc.MarkRead(c.Request.Context(), chatID, principal.UserID); err != nil {
		server.Fail(c, err)
		return
	}
	server.OK(c, gin.H{"message": "messages marked as read"})
}

func (r *Registrar) messageCost(c *gin.Context) {
	principal, _ := auth.PrincipalFrom(c)
	info, err := r.svc.MessageCost(c.Request.Context(), principal.UserID)
	if err != nil {
		server.Fail(c, err)
		return
	}
	server.OK(c, info)
}
