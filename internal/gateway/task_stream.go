package gateway

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/framefoundry/media-studio/gen-orchestrator/internal/auth"
	"github.com/framefoundry/media-studio/gen-orchestrator/internal/models"
	"github.com/framefoundry/media-studio/gen-orchestrator/internal/store"
)

// TaskStreamer pushes generation task progress over WebSocket. It reads
// the task store on an interval rather than tapping into the poller, so
// a stream observes exactly what the rest of the system observes.
type TaskStreamer struct {
	tasks      store.TaskStore
	jwtManager *auth.JWTManager
	interval   time.Duration
	tracer     trace.Tracer
	upgrader   websocket.Upgrader
}

// NewTaskStreamer creates a new generation task streamer
func NewTaskStreamer(tasks store.TaskStore, jwtManager *auth.JWTManager) *TaskStreamer {
	return &TaskStreamer{
		tasks:      tasks,
		jwtManager: jwtManager,
		interval:   2 * time.Second,
		tracer:     otel.Tracer("task-streamer"),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// TODO: restrict origins once the admin frontend domain is fixed
				origin := r.Header.Get("Origin")
				log.Printf("WebSocket connection from origin: %s", origin)
				return true
			},
			HandshakeTimeout: 10 * time.Second,
		},
	}
}

// TaskEvent is a single frame sent to a streaming client
type TaskEvent struct {
	EventType string      `json:"event_type"`
	Task      *store.Task `json:"task,omitempty"`
	Error     string      `json:"error,omitempty"`
}

// StreamGeneration handles WebSocket /api/ws/generations/:id
// @Summary Stream generation task progress
// @Description WebSocket endpoint streaming task status until it reaches a terminal state
// @Tags generations
// @Param id path string true "Task ID"
// @Param token query string false "JWT token"
// @Success 101 "Switching Protocols"
// @Failure 401 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /ws/generations/{id} [get]
func (s *TaskStreamer) StreamGeneration(c *gin.Context) {
	ctx, span := s.tracer.Start(c.Request.Context(), "task_streamer.stream_generation")
	defer span.End()

	taskID := c.Param("id")
	span.SetAttributes(attribute.String("task.id", taskID))

	userID, err := s.validateJWTAndGetUserID(c)
	if err != nil {
		span.RecordError(err)
		log.Printf("JWT validation failed: %v", err)
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "Unauthorized", Code: models.ErrCodeUnauthorized})
		return
	}
	span.SetAttributes(attribute.String("user.id", userID))

	task, err := s.tasks.GetTask(ctx, taskID)
	if err != nil {
		if errors.Is(err, store.ErrTaskNotFound) {
			c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "Generation not found", Code: models.ErrCodeTaskNotFound})
			return
		}
		span.RecordError(err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "Failed to fetch generation", Code: models.ErrCodeInternalError})
		return
	}
	if task.UserID != userID {
		span.SetAttributes(attribute.Bool("access_denied", true))
		log.Printf("Access denied for user %s to task %s", userID, taskID)
		c.JSON(http.StatusForbidden, models.ErrorResponse{Error: "Forbidden", Code: models.ErrCodeForbidden})
		return
	}

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		span.RecordError(err)
		log.Printf("Failed to upgrade connection: %v", err)
		return
	}
	defer conn.Close()

	log.Printf("WebSocket stream opened for task: %s, user: %s", taskID, userID)
	s.streamUntilTerminal(context.Background(), conn, task)
}

// validateJWTAndGetUserID validates JWT token and returns user ID
func (s *TaskStreamer) validateJWTAndGetUserID(c *gin.Context) (string, error) {
	// Query parameter first (WebSocket standard), then Authorization header
	token := c.Query("token")
	if token == "" {
		authHeader := c.GetHeader("Authorization")
		if authHeader != "" && len(authHeader) > 7 && authHeader[:7] == "Bearer " {
			token = authHeader[7:]
		}
	}

	if token == "" {
		return "", fmt.Errorf("missing JWT token")
	}

	claims, err := s.jwtManager.ValidateToken(c.Request.Context(), token)
	if err != nil {
		return "", fmt.Errorf("invalid JWT: %w", err)
	}

	return claims.UserID, nil
}

// streamUntilTerminal re-reads the task on an interval and pushes each
// observation to the client. Ends when the task turns terminal, is
// deleted, or the client disconnects.
func (s *TaskStreamer) streamUntilTerminal(ctx context.Context, conn *websocket.Conn, task *store.Task) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Client disconnect watcher; frames from the client are ignored.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					log.Printf("Client closed stream for task: %s", task.ID)
				}
				cancel()
				return
			}
		}
	}()

	if err := conn.WriteJSON(TaskEvent{EventType: "status_update", Task: task}); err != nil {
		log.Printf("Failed to send initial state for task %s: %v", task.ID, err)
		return
	}
	if task.Status.IsTerminal() {
		s.sendEnd(conn, task)
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		current, err := s.tasks.GetTask(ctx, task.ID)
		if err != nil {
			if errors.Is(err, store.ErrTaskNotFound) {
				_ = conn.WriteJSON(TaskEvent{EventType: "deleted"})
				return
			}
			log.Printf("Store read failed while streaming task %s: %v", task.ID, err)
			_ = conn.WriteJSON(TaskEvent{EventType: "error", Error: "internal error"})
			return
		}

		if err := conn.WriteJSON(TaskEvent{EventType: "status_update", Task: current}); err != nil {
			log.Printf("Failed to push update for task %s: %v", task.ID, err)
			return
		}

		if current.Status.IsTerminal() {
			s.sendEnd(conn, current)
			return
		}
	}
}

func (s *TaskStreamer) sendEnd(conn *websocket.Conn, task *store.Task) {
	if err := conn.WriteJSON(TaskEvent{EventType: "end", Task: task}); err != nil {
		log.Printf("Failed to send end event for task %s: %v", task.ID, err)
		return
	}
	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "task finished"))
	log.Printf("WebSocket stream ended for task: %s, status: %s", task.ID, task.Status)
}
