package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"sync"

	"github.com/labstack/echo/v4"

	"github.com/Kris4js/WildGooseAgent/internal/agent"
	"github.com/Kris4js/WildGooseAgent/internal/contextstore"
	"github.com/Kris4js/WildGooseAgent/internal/store"
)

// ChatHandler runs the agent for a query and streams progress and the
// answer back over Server-Sent Events.
type ChatHandler struct {
	Store  *store.Store
	Agent  *agent.Agent
	Logger *log.Logger
}

type chatRequest struct {
	Query     string `json:"query"`
	SessionID string `json:"session_id"`
}

// sseWriter serializes event emission; agent callbacks fire from
// concurrent task goroutines.
type sseWriter struct {
	mu      sync.Mutex
	resp    *echo.Response
	flusher http.Flusher
}

func (w *sseWriter) emit(event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := w.resp.Write([]byte("event: " + event + "\n")); err != nil {
		return
	}
	if _, err := w.resp.Write([]byte("data: " + string(data) + "\n\n")); err != nil {
		return
	}
	w.flusher.Flush()
}

func (h *ChatHandler) Register(g *echo.Group, secret []byte) {
	g.Use(authMiddleware(secret))
	g.POST("/stream", h.stream)
}

func (h *ChatHandler) stream(c echo.Context) error {
	var req chatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if strings.TrimSpace(req.Query) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query is required")
	}
	userID := c.Get("user_id").(string)
	ctx := c.Request().Context()

	sessionID := req.SessionID
	if sessionID == "" {
		id, err := h.Store.CreateSession(ctx, userID, truncateTitle(req.Query))
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		sessionID = id
	} else if _, err := h.Store.GetSession(ctx, userID, sessionID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "session not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	history, err := h.Store.ListMessages(ctx, sessionID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	conversation := formatHistory(history)

	if _, err := h.Store.AppendMessage(ctx, sessionID, "user", req.Query); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, "text/event-stream")
	resp.Header().Set(echo.HeaderCacheControl, "no-cache")
	resp.Header().Set("Connection", "keep-alive")
	resp.WriteHeader(http.StatusOK)
	flusher, ok := resp.Writer.(http.Flusher)
	if !ok {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "streaming unsupported")
	}
	w := &sseWriter{resp: resp, flusher: flusher}

	var answer strings.Builder
	var answerMu sync.Mutex
	cb := &agent.Callbacks{
		OnPhaseStart: func(p agent.Phase) {
			w.emit("phase", map[string]string{"phase": string(p), "status": "start"})
		},
		OnPhaseComplete: func(p agent.Phase) {
			w.emit("phase", map[string]string{"phase": string(p), "status": "complete"})
		},
		OnUnderstandingComplete: func(u agent.Understanding) {
			w.emit("understanding", map[string]interface{}{"intent": u.Intent, "entities": u.Entities})
		},
		OnIterationStart: func(iteration int) {
			w.emit("iteration", map[string]int{"iteration": iteration})
		},
		OnPlanCreated: func(plan *agent.Plan, iteration int) {
			w.emit("plan", map[string]interface{}{"iteration": iteration, "summary": plan.Summary, "tasks": plan.Tasks})
		},
		OnTaskStart: func(task *agent.Task) {
			w.emit("task", map[string]string{"id": task.ID, "status": string(agent.StatusInProgress), "description": task.Description})
		},
		OnTaskComplete: func(task *agent.Task, result agent.TaskResult) {
			w.emit("task", map[string]string{"id": task.ID, "status": string(agent.StatusCompleted)})
		},
		OnTaskFailed: func(task *agent.Task, err error) {
			w.emit("task", map[string]string{"id": task.ID, "status": string(agent.StatusFailed), "error": err.Error()})
		},
		OnToolCallUpdate: func(taskID string, toolIndex int, status agent.TaskStatus, output, errMsg string) {
			w.emit("tool_call", map[string]interface{}{"task_id": taskID, "index": toolIndex, "status": string(status), "error": errMsg})
		},
		OnReflectionComplete: func(r agent.ReflectionResult, iteration int) {
			w.emit("reflection", map[string]interface{}{"iteration": iteration, "is_complete": r.IsComplete, "reasoning": r.Reasoning})
		},
		OnAnswerStream: func(chunk string) {
			answerMu.Lock()
			answer.WriteString(chunk)
			answerMu.Unlock()
			w.emit("answer", map[string]string{"delta": chunk})
		},
	}

	runID, err := h.Store.CreateRun(ctx, sessionID, contextstore.HashQuery(req.Query), req.Query)
	if err != nil {
		h.Logger.Printf("create run: %v", err)
	}

	result, runErr := h.Agent.Run(ctx, req.Query, conversation, cb)
	if runErr != nil {
		w.emit("error", map[string]string{"error": runErr.Error()})
		if runID != "" {
			_ = h.Store.CompleteRun(ctx, runID, "failed", "", nil, 0, 0)
		}
		return nil
	}

	answerMu.Lock()
	final := answer.String()
	answerMu.Unlock()

	if _, err := h.Store.AppendMessage(ctx, sessionID, "assistant", final); err != nil {
		h.Logger.Printf("append assistant message: %v", err)
	}
	_ = h.Store.TouchSession(ctx, sessionID)
	if runID != "" {
		plans, _ := json.Marshal(result.Plans)
		if err := h.Store.CompleteRun(ctx, runID, "completed", final, plans, result.Iterations, result.Duration); err != nil {
			h.Logger.Printf("complete run: %v", err)
		}
	}

	w.emit("done", map[string]interface{}{
		"run_id":      runID,
		"query_id":    result.QueryID,
		"session_id":  sessionID,
		"iterations":  result.Iterations,
		"duration_ms": result.Duration.Milliseconds(),
	})
	return nil
}

func truncateTitle(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 60 {
		return s[:60]
	}
	return s
}

func formatHistory(msgs []store.Message) string {
	if len(msgs) == 0 {
		return ""
	}
	var b strings.Builder
	for _, m := range msgs {
		b.WriteString(m.Role)
		b.WriteString(": ")
		b.WriteString(m.Content)
		b.WriteString("\n")
	}
	return b.String()
}
