package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"

	"chatgate/internal/models"
	"chatgate/internal/prompt"
	"chatgate/internal/session"
)

// ErrEmptyMessage rejects blank or whitespace-only user text.
var ErrEmptyMessage = errors.New("message cannot be empty")

// defaultImagePrompt stands in when an upload arrives without text.
const defaultImagePrompt = "Please analyze this image"

// ModelProvider is the external model client the orchestrator calls.
type ModelProvider interface {
	Generate(ctx context.Context, modelID string, messages []*schema.Message) (string, error)
}

// Result is a completed exchange.
type Result struct {
	Reply     string
	SessionID string
}

// Orchestrator coordinates one chat turn: resolve the active session, build
// the provider messages from history, call the provider, and persist the
// exchange. History is read before the provider call and appended after it;
// no store lock is held while the call is in flight, and a failed call
// leaves history unchanged.
type Orchestrator struct {
	store    *session.Store
	provider ModelProvider
	logger   *slog.Logger
}

func NewOrchestrator(store *session.Store, provider ModelProvider, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{store: store, provider: provider, logger: logger}
}

// SendText handles a plain text message for the caller's active session.
func (o *Orchestrator) SendText(ctx context.Context, user, activeID, text, modelID string) (*Result, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyMessage
	}
	return o.send(ctx, user, activeID, text, "", modelID)
}

// SendImage handles a message carrying a base64-encoded image. Blank text
// falls back to a fixed analysis prompt.
func (o *Orchestrator) SendImage(ctx context.Context, user, activeID, text, imageB64, modelID string) (*Result, error) {
	if strings.TrimSpace(text) == "" {
		text = defaultImagePrompt
	}
	return o.send(ctx, user, activeID, text, imageB64, modelID)
}

func (o *Orchestrator) send(ctx context.Context, user, activeID, text, imageB64, modelID string) (*Result, error) {
	sessionID := o.store.EnsureActive(user, activeID)
	history, err := o.store.History(user, sessionID)
	if err != nil {
		return nil, err
	}

	messages := prompt.Assemble(history, text, imageB64)
	reply, err := o.provider.Generate(ctx, modelID, messages)
	if err != nil {
		o.logger.ErrorContext(ctx, "provider call failed",
			"user", user, "session_id", sessionID, "model", modelID, "error", err)
		return nil, fmt.Errorf("process message: %w", err)
	}

	now := time.Now().UTC()
	userTurn := models.Turn{Role: models.RoleUser, Content: text, Image: imageB64, CreatedAt: now}
	assistantTurn := models.Turn{Role: models.RoleAssistant, Content: reply, CreatedAt: now}
	if err := o.store.AppendExchange(user, sessionID, userTurn, assistantTurn); err != nil {
		return nil, err
	}
	return &Result{Reply: reply, SessionID: sessionID}, nil
}
