package api

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/managemate/mmrt/pkg/events"
	"github.com/managemate/mmrt/pkg/types"
	"github.com/samber/lo"
)

// NotificationRequest is the body of POST /api/v1/notifications
type NotificationRequest struct {
	UserID   string         `json:"userId"`
	Title    string         `json:"title" validate:"required"`
	Message  string         `json:"message"`
	Severity types.Severity `json:"severity" validate:"omitempty,oneof=low medium high critical"`
	Link     string         `json:"link"`
}

// ChatRequest is the body of POST /api/v1/chat/{moduleId}
type ChatRequest struct {
	SenderID string `json:"senderId"`
	Text     string `json:"text" validate:"required"`
}

// AssignRequest is the body of POST /api/v1/tasks/{taskId}/assign
type AssignRequest struct {
	AssigneeIDs []string `json:"assigneeIds" validate:"required,min=1,dive,required"`
}

// AcceptedResponse acknowledges a published event
type AcceptedResponse struct {
	ID string `json:"id,omitempty"`
}

// AssignResponse returns the updated task and who was notified
type AssignResponse struct {
	Task     *types.Task `json:"task"`
	Notified []string    `json:"notified"`
}

func (s *HTTPServer) handleNotification(w http.ResponseWriter, r *http.Request) {
	var req NotificationRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Severity == "" {
		req.Severity = types.SeverityMedium
	}

	n := &types.Notification{
		ID:        uuid.NewString(),
		UserID:    req.UserID,
		Title:     req.Title,
		Message:   req.Message,
		Severity:  req.Severity,
		Link:      req.Link,
		CreatedAt: s.now().UTC(),
	}

	if n.UserID != "" {
		if err := s.store.CreateNotification(n); err != nil {
			s.storeFailed(w, err)
			return
		}
	}
	if err := s.publishNotification(r, n); err != nil {
		s.publishFailed(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, AcceptedResponse{ID: n.ID})
}

func (s *HTTPServer) handleChat(w http.ResponseWriter, r *http.Request) {
	moduleID := r.PathValue("moduleId")
	if err := events.ValidateRoom(events.ChatRoom(moduleID)); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req ChatRequest
	if !s.decode(w, r, &req) {
		return
	}

	evt := &events.ChatMessageEvent{
		ModuleID: moduleID,
		SenderID: req.SenderID,
		Text:     req.Text,
	}
	if err := s.publisher.PublishChat(r.Context(), evt); err != nil {
		s.publishFailed(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, AcceptedResponse{})
}

func (s *HTTPServer) handleAssign(w http.ResponseWriter, r *http.Request) {
	taskID := r.PathValue("taskId")

	var req AssignRequest
	if !s.decode(w, r, &req) {
		return
	}
	assignees := lo.Uniq(req.AssigneeIDs)

	prev, err := s.store.GetTask(taskID)
	if err != nil {
		s.storeFailed(w, err)
		return
	}

	task, err := s.store.AssignTask(taskID, assignees)
	if err != nil {
		s.storeFailed(w, err)
		return
	}

	// Only users who were not already assigned hear about it
	added := lo.Without(assignees, prev.AssigneeIDs...)
	notified := make([]string, 0, len(added))
	for _, userID := range added {
		n := &types.Notification{
			ID:        uuid.NewString(),
			UserID:    userID,
			Title:     "Task assigned",
			Message:   task.Title,
			Severity:  types.SeverityMedium,
			Link:      "/tasks/" + task.ID,
			CreatedAt: s.now().UTC(),
		}
		if err := s.store.CreateNotification(n); err != nil {
			s.log.Error().Err(err).Str("task_id", task.ID).Str("user_id", userID).Msg("Failed to store assignment notification")
			continue
		}
		if err := s.publishNotification(r, n); err != nil {
			s.log.Error().Err(err).Str("task_id", task.ID).Str("user_id", userID).Msg("Failed to publish assignment notification")
			continue
		}
		notified = append(notified, userID)
	}

	writeJSON(w, http.StatusOK, AssignResponse{Task: task, Notified: notified})
}

func (s *HTTPServer) publishNotification(r *http.Request, n *types.Notification) error {
	return s.publisher.PublishNotification(r.Context(), &events.NotificationEvent{
		ID:        n.ID,
		UserID:    n.UserID,
		Title:     n.Title,
		Message:   n.Message,
		Severity:  string(n.Severity),
		Link:      n.Link,
		CreatedAt: n.CreatedAt,
	})
}

func (s *HTTPServer) storeFailed(w http.ResponseWriter, err error) {
	if errors.Is(err, types.ErrNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	s.log.Error().Err(err).Msg("Store operation failed")
	writeError(w, http.StatusInternalServerError, "internal error")
}
