// ABOUTME: HTTP API handlers for agent listing, session creation, and chat
// ABOUTME: Blocking chat returns JSON; streaming chat pushes SSE data frames

package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/2389/crew-gateway/internal/agent"
	"github.com/2389/crew-gateway/internal/event"
	"github.com/2389/crew-gateway/internal/turn"
)

// AgentInfo is the JSON representation of one registered agent.
type AgentInfo struct {
	AgentID     string `json:"agent_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ChatRequest is the JSON request body for the chat endpoints.
type ChatRequest struct {
	Message   string `json:"message"`
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id,omitempty"`
}

// ChatResponse is the JSON response for blocking chat.
type ChatResponse struct {
	AgentID   string `json:"agent_id"`
	Response  string `json:"response"`
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
	UserName  string `json:"user_name,omitempty"`
}

// SessionInfo is the JSON response for session creation.
type SessionInfo struct {
	AgentID   string `json:"agent_id"`
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
}

// handleRoot handles GET / requests.
func (g *Gateway) handleRoot(w http.ResponseWriter, r *http.Request) {
	g.writeJSON(w, http.StatusOK, map[string]any{
		"service":          "crew-gateway",
		"version":          Version,
		"available_agents": g.registry.IDs(),
	})
}

// handleHealth handles GET /health requests.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	ids := g.registry.IDs()
	g.writeJSON(w, http.StatusOK, map[string]any{
		"status":           "healthy",
		"agents_loaded":    len(ids),
		"available_agents": ids,
	})
}

// handleListAgents handles GET /agents requests.
func (g *Gateway) handleListAgents(w http.ResponseWriter, r *http.Request) {
	descriptors := g.registry.List()
	response := make([]AgentInfo, 0, len(descriptors))
	for _, d := range descriptors {
		response = append(response, AgentInfo{
			AgentID:     d.ID,
			Name:        d.Name,
			Description: d.Description,
		})
	}
	g.writeJSON(w, http.StatusOK, response)
}

// handleGetAgent handles GET /agents/{agent_id} requests.
func (g *Gateway) handleGetAgent(w http.ResponseWriter, r *http.Request) {
	agentID := r.PathValue("agent_id")
	desc, err := g.registry.Lookup(agentID)
	if err != nil {
		g.sendJSONError(w, http.StatusNotFound, fmt.Sprintf("找不到 Agent '%s'", agentID))
		return
	}
	g.writeJSON(w, http.StatusOK, AgentInfo{
		AgentID:     desc.ID,
		Name:        desc.Name,
		Description: desc.Description,
	})
}

// handleCreateSession handles POST /agents/{agent_id}/sessions requests.
func (g *Gateway) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	agentID := r.PathValue("agent_id")
	if _, err := g.registry.Lookup(agentID); err != nil {
		g.agentNotFound(w, agentID)
		return
	}

	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		userID = "default_user"
	}

	sessionID, _, err := g.sessions.GetOrCreate(r.Context(), agentID, userID, "")
	if err != nil {
		g.logger.Error("failed to create session", "agent_id", agentID, "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	g.writeJSON(w, http.StatusOK, SessionInfo{
		AgentID:   agentID,
		SessionID: sessionID,
		UserID:    userID,
	})
}

// handleChat handles POST /agents/{agent_id}/chat requests.
func (g *Gateway) handleChat(w http.ResponseWriter, r *http.Request) {
	g.chat(w, r, r.PathValue("agent_id"))
}

// handleQuickChat handles POST /chat?agent_id= requests, a convenience
// alias for the blocking chat endpoint.
func (g *Gateway) handleQuickChat(w http.ResponseWriter, r *http.Request) {
	agentID := r.URL.Query().Get("agent_id")
	if agentID == "" {
		g.sendJSONError(w, http.StatusBadRequest, "agent_id query parameter is required")
		return
	}
	g.chat(w, r, agentID)
}

// chat runs one blocking turn and returns the aggregated response.
func (g *Gateway) chat(w http.ResponseWriter, r *http.Request, agentID string) {
	req, ok := g.parseChatRequest(w, r)
	if !ok {
		return
	}
	desc, err := g.registry.Lookup(agentID)
	if err != nil {
		g.agentNotFound(w, agentID)
		return
	}

	ctx := r.Context()
	sessionID, ident, err := g.sessions.GetOrCreate(ctx, agentID, req.UserID, req.SessionID)
	if err != nil {
		g.logger.Error("session resolution failed", "agent_id", agentID, "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	unlock := g.sessions.Serialize(agentID, req.UserID, sessionID)
	defer unlock()

	state, err := g.sessions.Load(ctx, agentID, req.UserID, sessionID)
	if err != nil {
		g.logger.Error("session load failed", "session_id", sessionID, "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	started := time.Now()
	g.trace.Header(agentID, req.UserID, sessionID)
	g.trace.Request(req.Message)

	events, err := desc.Runner.Run(ctx, &agent.Turn{
		AgentID:   agentID,
		UserID:    req.UserID,
		SessionID: sessionID,
		Message:   req.Message,
		State:     state,
		Guard:     desc.Guard,
	})
	if err != nil {
		g.turnFailed(w, agentID, err)
		return
	}

	text, err := turn.Aggregate(ctx, events, g.observer())
	if err != nil {
		g.turnFailed(w, agentID, err)
		return
	}

	// Persist tool side effects before answering.
	if err := g.sessions.Save(ctx, agentID, req.UserID, sessionID, state); err != nil {
		g.logger.Error("session save failed", "session_id", sessionID, "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	g.trace.Response(text)
	g.trace.Footer(time.Since(started))

	g.writeJSON(w, http.StatusOK, ChatResponse{
		AgentID:   agentID,
		Response:  text,
		SessionID: sessionID,
		UserID:    req.UserID,
		UserName:  ident.Name,
	})
}

// handleChatStream handles POST /agents/{agent_id}/chat/stream requests.
// Response fragments are pushed as SSE data frames as the turn produces
// them; the stream ends with a [DONE] sentinel, or a single error frame on
// failure. Failures after fragments were sent leave the partial output in
// place.
func (g *Gateway) handleChatStream(w http.ResponseWriter, r *http.Request) {
	agentID := r.PathValue("agent_id")

	req, ok := g.parseChatRequest(w, r)
	if !ok {
		return
	}
	desc, err := g.registry.Lookup(agentID)
	if err != nil {
		g.agentNotFound(w, agentID)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		g.logger.Error("streaming not supported")
		g.sendJSONError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	ctx := r.Context()
	sink := &sseSink{w: w, flusher: flusher}

	sessionID, _, err := g.sessions.GetOrCreate(ctx, agentID, req.UserID, req.SessionID)
	if err != nil {
		sink.Error(err)
		return
	}

	unlock := g.sessions.Serialize(agentID, req.UserID, sessionID)
	defer unlock()

	state, err := g.sessions.Load(ctx, agentID, req.UserID, sessionID)
	if err != nil {
		sink.Error(err)
		return
	}

	events, err := desc.Runner.Run(ctx, &agent.Turn{
		AgentID:   agentID,
		UserID:    req.UserID,
		SessionID: sessionID,
		Message:   req.Message,
		State:     state,
		Guard:     desc.Guard,
	})
	if err != nil {
		sink.Error(err)
		return
	}

	// State is persisted before the sentinel: a save failure becomes the
	// stream's error frame instead of a [DONE] after lost writes.
	sink.beforeDone = func() error {
		return g.sessions.Save(ctx, agentID, req.UserID, sessionID, state)
	}

	if err := turn.Stream(ctx, events, sink, g.observer()); err != nil {
		g.logger.Error("streaming turn failed", "agent_id", agentID, "error", err)
	}
}

// observer routes canonical events into the console trace.
func (g *Gateway) observer() turn.Observer {
	return func(ce event.Canonical) {
		switch v := ce.(type) {
		case event.ToolCall:
			g.trace.ToolCall(v.Name, v.Args)
		case event.ToolResult:
			g.trace.ToolResult(v.Name, v.Result)
		}
	}
}

func (g *Gateway) parseChatRequest(w http.ResponseWriter, r *http.Request) (*ChatRequest, bool) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return nil, false
	}
	if req.Message == "" {
		g.sendJSONError(w, http.StatusBadRequest, "message is required")
		return nil, false
	}
	if req.UserID == "" {
		g.sendJSONError(w, http.StatusBadRequest, "user_id is required")
		return nil, false
	}
	return &req, true
}

func (g *Gateway) agentNotFound(w http.ResponseWriter, agentID string) {
	g.sendJSONError(w, http.StatusNotFound,
		fmt.Sprintf("找不到 Agent '%s'。可用的 Agent: %v", agentID, g.registry.IDs()))
}

func (g *Gateway) turnFailed(w http.ResponseWriter, agentID string, err error) {
	g.trace.Error(err)
	g.logger.Error("turn execution failed", "agent_id", agentID, "error", err)
	if errors.Is(err, agent.ErrAgentNotFound) {
		g.agentNotFound(w, agentID)
		return
	}
	g.sendJSONError(w, http.StatusInternalServerError, err.Error())
}

func (g *Gateway) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		g.logger.Error("failed to encode response", "error", err)
	}
}

func (g *Gateway) sendJSONError(w http.ResponseWriter, status int, message string) {
	g.writeJSON(w, status, map[string]string{"error": message})
}

// sseSink writes turn output as SSE data frames. Exactly one terminal frame
// is written per stream: [DONE] on success, an error frame otherwise.
type sseSink struct {
	w          http.ResponseWriter
	flusher    http.Flusher
	beforeDone func() error
}

func (s *sseSink) Text(text string) error {
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", text); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

func (s *sseSink) Done() error {
	if s.beforeDone != nil {
		if err := s.beforeDone(); err != nil {
			s.Error(err)
			return err
		}
	}
	if _, err := fmt.Fprint(s.w, "data: [DONE]\n\n"); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

func (s *sseSink) Error(err error) error {
	if _, werr := fmt.Fprintf(s.w, "data: Error: %s\n\n", err.Error()); werr != nil {
		return werr
	}
	s.flusher.Flush()
	return nil
}
