// Package split — клиентская сторона межсервисных lookup-вызовов:
// split-сервис запрашивает у user-сервиса карточки участников группы.
package split

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dolya-app/dolya/internal/config"
	"github.com/dolya-app/dolya/internal/lookup"
	"github.com/dolya-app/dolya/internal/mq"
	"github.com/dolya-app/dolya/internal/telemetry"
)

// rpcCaller — синхронный RPC-вызов через брокер (mq.RPCClient).
type rpcCaller interface {
	Call(ctx context.Context, exchange, routingKey string, payload any, timeout time.Duration) (json.RawMessage, error)
}

// Service запрашивает информацию о пользователях у user-сервиса.
type Service struct {
	cfg    config.Rabbit
	rpc    rpcCaller
	logger *slog.Logger
}

// NewService создаёт сервис поверх RPC-клиента.
func NewService(cfg config.Rabbit, logger *slog.Logger) *Service {
	return &Service{
		cfg:    cfg,
		rpc:    mq.NewRPCClient(cfg, logger),
		logger: logger,
	}
}

// FetchGroupMembers возвращает карточки участников по набору user_id.
//
// Результат — map user_id → карточка; ненайденные id в map отсутствуют,
// ответ может быть короче запроса. Таймаут RPC трактуется как «ответа
// нет»: возвращается пустой map, не ошибка — вызывающий показывает
// группу без карточек, а не пятисотит.
func (s *Service) FetchGroupMembers(ctx context.Context, groupID string, userIDs []string) (map[string]lookup.MemberInfo, error) {
	unique := dedupe(userIDs)
	if len(unique) == 0 {
		return map[string]lookup.MemberInfo{}, nil
	}

	requestID := uuid.NewString()
	log := telemetry.WithRequestID(s.logger, requestID)

	req := lookup.BatchRequest{
		RequestID: requestID,
		GroupID:   groupID,
		UserIDs:   unique,
	}

	log.Info("sending batch user info rpc",
		"group_id", groupID,
		"user_count", len(unique),
	)

	raw, err := s.rpc.Call(ctx, s.cfg.UserInfoExchange, s.cfg.UserInfoRequestRoutingKey, req, s.cfg.RPCTimeout)
	if errors.Is(err, mq.ErrRPCTimeout) {
		log.Warn("no response for batch user info rpc", "group_id", groupID)
		return map[string]lookup.MemberInfo{}, nil
	}
	if err != nil {
		return nil, err
	}

	var resp lookup.BatchResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		// Малформированный ответ неотличим для вызывающего от таймаута:
		// тот же fallback на пустой результат.
		log.Error("failed to decode batch user info response", "error", err)
		return map[string]lookup.MemberInfo{}, nil
	}

	if resp.RequestID != requestID {
		log.Warn("response request_id mismatch", "got", resp.RequestID)
	}

	result := make(map[string]lookup.MemberInfo, len(resp.Users))
	for _, u := range resp.Users {
		result[u.UserID] = u
	}

	log.Info("batch user info rpc completed",
		"group_id", groupID,
		"requested", len(unique),
		"returned", len(result),
	)
	return result, nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
