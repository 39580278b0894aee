package server

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/ant0n-grachev/telegram-reservation-bot/agent"
	"github.com/ant0n-grachev/telegram-reservation-bot/types"
)

type messageRequest struct {
	Text string `json:"text" binding:"required"`
}

type messageResponse struct {
	Message string      `json:"message"`
	Phase   types.Phase `json:"phase"`
	Event   string      `json:"event,omitempty"`
}

type conversationResponse struct {
	Key        string            `json:"key"`
	Phase      types.Phase       `json:"phase"`
	Form       types.Reservation `json:"form"`
	Submitting bool              `json:"submitting"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

type Handler struct {
	flow *agent.FormFlow
}

// New returns the HTTP router for flow.
func New(flow *agent.FormFlow) *gin.Engine {
	h := &Handler{flow: flow}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger())
	r.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type"},
		ExposeHeaders:   []string{"Content-Length"},
		MaxAge:          12 * time.Hour,
	}))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/v1/conversations/:key")
	{
		api.POST("/messages", h.PostMessage)
		api.GET("", h.GetConversation)
		api.DELETE("", h.DeleteConversation)
	}
	return r
}

// PostMessage feeds one inbound message to the conversation and returns the reply.
func (h *Handler) PostMessage(c *gin.Context) {
	var req messageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "text is required"})
		return
	}
	ctx := agent.WithStateKey(c.Request.Context(), c.Param("key"))
	resp, err := h.flow.Invoke(ctx, &agent.Request{UserInput: req.Text})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, messageResponse{
		Message: resp.Message,
		Phase:   resp.State.Phase,
		Event:   resp.Metadata["event"],
	})
}

func (h *Handler) GetConversation(c *gin.Context) {
	key := c.Param("key")
	state, ok, err := h.flow.Snapshot(agent.WithStateKey(c.Request.Context(), key))
	if err != nil {
		h.fail(c, err)
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
		return
	}
	c.JSON(http.StatusOK, conversationResponse{
		Key:        key,
		Phase:      state.Phase,
		Form:       state.Form,
		Submitting: state.Submitting,
		UpdatedAt:  state.UpdatedAt,
	})
}

func (h *Handler) DeleteConversation(c *gin.Context) {
	cleared, err := h.flow.Reset(agent.WithStateKey(c.Request.Context(), c.Param("key")))
	if err != nil {
		h.fail(c, err)
		return
	}
	if !cleared {
		c.JSON(http.StatusConflict, gin.H{"error": "reservation is being submitted"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) fail(c *gin.Context, err error) {
	if errors.Is(err, agent.ErrKeyNotFound) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "conversation key is required"})
		return
	}
	slog.Error("Conversation request failed", "path", c.FullPath(), "key", c.Param("key"), "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		slog.Debug("HTTP request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
