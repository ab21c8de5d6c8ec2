package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/dolya-app/dolya/internal/lookup"
)

// memberFetcher — межсервисный запрос карточек участников (split.Service).
type memberFetcher interface {
	FetchGroupMembers(ctx context.Context, groupID string, userIDs []string) (map[string]lookup.MemberInfo, error)
}

// Handler — обработчик API split-сервиса.
type Handler struct {
	members memberFetcher
	logger  *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(members memberFetcher, logger *slog.Logger) *Handler {
	return &Handler{
		members: members,
		logger:  logger,
	}
}

// memberInfoRequest — тело запроса карточек участников.
type memberInfoRequest struct {
	UserIDs []string `json:"user_ids"`
}

// memberInfoResponse — ответ с карточками. Ненайденные id отсутствуют.
type memberInfoResponse struct {
	GroupID string                       `json:"group_id"`
	Members map[string]lookup.MemberInfo `json:"members"`
}

// GroupMemberInfo обрабатывает POST /api/v1/groups/{id}/member-info.
func (h *Handler) GroupMemberInfo(w http.ResponseWriter, r *http.Request) {
	groupID := r.PathValue("id")
	if groupID == "" {
		BadRequest(w, "group id is required")
		return
	}

	var req memberInfoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid JSON body")
		return
	}
	if len(req.UserIDs) == 0 {
		BadRequest(w, "user_ids is required")
		return
	}

	members, err := h.members.FetchGroupMembers(r.Context(), groupID, req.UserIDs)
	if err != nil {
		h.logger.Error("failed to fetch group members", "group_id", groupID, "error", err)
		InternalError(w)
		return
	}

	Success(w, memberInfoResponse{
		GroupID: groupID,
		Members: members,
	})
}
