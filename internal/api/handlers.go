package api

import (
	"encoding/base64"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"chatgate/internal/chat"
	"chatgate/internal/config"
	"chatgate/internal/guard"
	"chatgate/internal/provider"
	"chatgate/internal/session"
	"chatgate/internal/storage"
)

// sessionCookie carries the caller's active session id between requests.
// Handlers read it, pass it explicitly into the core, and rewrite it when
// the active session changes.
const sessionCookie = "chat_session"

// Handler wires the HTTP routes to the session store and chat orchestrator.
type Handler struct {
	store     *session.Store
	chat      *chat.Orchestrator
	cfg       *config.Config
	window    guard.Window
	whitelist *guard.WhitelistPolicy
	audit     *storage.AuditLog

	baseChain *guard.Chain
	chatChain *guard.Chain
}

// NewHandler constructs a Handler. audit may be nil when the audit store is
// disabled.
func NewHandler(
	store *session.Store,
	orchestrator *chat.Orchestrator,
	cfg *config.Config,
	window guard.Window,
	whitelist *guard.WhitelistPolicy,
	audit *storage.AuditLog,
	baseChain, chatChain *guard.Chain,
) *Handler {
	return &Handler{
		store:     store,
		chat:      orchestrator,
		cfg:       cfg,
		window:    window,
		whitelist: whitelist,
		audit:     audit,
		baseChain: baseChain,
		chatChain: chatChain,
	}
}

// RegisterRoutes attaches all HTTP routes to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api")
	api.GET("/models", h.listModels)

	authed := api.Group("", h.baseChain.Middleware())
	authed.GET("/sessions", h.listSessions)
	authed.POST("/sessions", h.createSession)
	authed.POST("/sessions/:id/switch", h.switchSession)
	authed.DELETE("/sessions/:id", h.deleteSession)
	authed.GET("/messages", h.getMessages)
	authed.GET("/security/status", h.securityStatus)

	guarded := api.Group("", h.chatChain.Middleware())
	guarded.POST("/chat", h.sendChat)
	guarded.POST("/upload", h.uploadImage)
}

func (h *Handler) identity(c *gin.Context) (string, bool) {
	identity, ok := guard.IdentityFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
		return "", false
	}
	return identity, true
}

func (h *Handler) activeSessionID(c *gin.Context) string {
	id, err := c.Cookie(sessionCookie)
	if err != nil {
		return ""
	}
	return id
}

func (h *Handler) setActiveSession(c *gin.Context, id string) {
	c.SetCookie(sessionCookie, id, 0, "/", "", false, true)
}

func (h *Handler) listSessions(c *gin.Context) {
	user, ok := h.identity(c)
	if !ok {
		return
	}
	infos, activeID := h.store.List(user, h.activeSessionID(c))
	h.setActiveSession(c, activeID)
	c.JSON(http.StatusOK, gin.H{
		"sessions":           infos,
		"current_session_id": activeID,
	})
}

func (h *Handler) createSession(c *gin.Context) {
	user, ok := h.identity(c)
	if !ok {
		return
	}
	se := h.store.Create(user)
	h.setActiveSession(c, se.ID)
	c.JSON(http.StatusOK, gin.H{"session_id": se.ID})
}

func (h *Handler) switchSession(c *gin.Context) {
	user, ok := h.identity(c)
	if !ok {
		return
	}
	id := c.Param("id")
	turns, err := h.store.Switch(user, id)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found or not yours"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	h.setActiveSession(c, id)
	c.JSON(http.StatusOK, gin.H{"session_id": id, "messages": turns})
}

func (h *Handler) deleteSession(c *gin.Context) {
	user, ok := h.identity(c)
	if !ok {
		return
	}
	id := c.Param("id")
	newActiveID, replaced, err := h.store.Delete(user, id, h.activeSessionID(c))
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found or not yours"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if replaced {
		h.setActiveSession(c, newActiveID)
		c.JSON(http.StatusOK, gin.H{"deleted": id, "new_session_id": newActiveID})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

func (h *Handler) getMessages(c *gin.Context) {
	user, ok := h.identity(c)
	if !ok {
		return
	}
	sessionID := h.store.EnsureActive(user, h.activeSessionID(c))
	turns, err := h.store.History(user, sessionID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	h.setActiveSession(c, sessionID)
	c.JSON(http.StatusOK, gin.H{"messages": turns})
}

type chatRequest struct {
	Message string `json:"message"`
	Model   string `json:"model"`
}

func (h *Handler) sendChat(c *gin.Context) {
	user, ok := h.identity(c)
	if !ok {
		return
	}
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	res, err := h.chat.SendText(c.Request.Context(), user, h.activeSessionID(c), req.Message, req.Model)
	if err != nil {
		h.writeChatError(c, err)
		return
	}
	h.setActiveSession(c, res.SessionID)
	c.JSON(http.StatusOK, gin.H{
		"response":   res.Reply,
		"session_id": res.SessionID,
	})
}

func (h *Handler) uploadImage(c *gin.Context) {
	user, ok := h.identity(c)
	if !ok {
		return
	}
	file, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no image uploaded"})
		return
	}
	if file.Filename == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no file selected"})
		return
	}
	if !h.allowedFile(file.Filename) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported file type"})
		return
	}
	if file.Size > h.cfg.Upload.MaxBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
		return
	}

	if err := os.MkdirAll(h.cfg.Upload.Dir, 0o755); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create upload directory failed"})
		return
	}
	tempPath := filepath.Join(h.cfg.Upload.Dir, uuid.NewString()+"_"+filepath.Base(file.Filename))
	if err := c.SaveUploadedFile(file, tempPath); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "save file failed"})
		return
	}
	// The temp file is removed on every exit path from here on.
	defer os.Remove(tempPath)

	raw, err := os.ReadFile(tempPath)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "image processing failed"})
		return
	}
	imageB64 := base64.StdEncoding.EncodeToString(raw)

	res, err := h.chat.SendImage(c.Request.Context(), user, h.activeSessionID(c),
		c.PostForm("message"), imageB64, c.PostForm("model"))
	if err != nil {
		h.writeChatError(c, err)
		return
	}
	h.setActiveSession(c, res.SessionID)
	c.JSON(http.StatusOK, gin.H{
		"response":        res.Reply,
		"session_id":      res.SessionID,
		"image_processed": true,
	})
}

func (h *Handler) allowedFile(filename string) bool {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	if ext == "" {
		return false
	}
	for _, allowed := range h.cfg.Upload.AllowedExtensions {
		if ext == strings.ToLower(allowed) {
			return true
		}
	}
	return false
}

func (h *Handler) writeChatError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, chat.ErrEmptyMessage):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, session.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func (h *Handler) listModels(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"models": provider.Catalog()})
}

func (h *Handler) securityStatus(c *gin.Context) {
	clientIP := guard.ClientIPFromContext(c)
	status := gin.H{
		"client_ip": clientIP,
		"security_features": gin.H{
			"authentication": h.cfg.Auth.Enabled,
			"rate_limiting":  h.cfg.RateLimit.Enabled,
			"ip_whitelist":   h.cfg.IPWhitelist.Enabled,
		},
	}
	if h.cfg.RateLimit.Enabled {
		count, err := h.window.Count(c.Request.Context(), clientIP, time.Now())
		if err != nil {
			count = 0
		}
		status["rate_limit_config"] = gin.H{
			"requests_per_window": h.cfg.RateLimit.Ceiling,
			"window_seconds":      h.cfg.RateLimit.WindowSeconds,
			"current_requests":    count,
		}
	}
	if h.cfg.IPWhitelist.Enabled {
		status["ip_whitelist_config"] = gin.H{
			"whitelist_ips":  h.cfg.IPWhitelist.IPs,
			"is_whitelisted": h.whitelist.Allowed(clientIP),
		}
	}
	if h.audit != nil {
		if recent, err := h.audit.Recent(c.Request.Context(), 20); err == nil {
			status["recent_access"] = recent
		}
	}
	c.JSON(http.StatusOK, status)
}
