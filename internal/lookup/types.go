package lookup

import (
	"time"

	"github.com/dolya-app/dolya/internal/domain"
)

// BatchRequest — батчевый запрос информации о пользователях группы.
type BatchRequest struct {
	RequestID string   `json:"request_id"`
	GroupID   string   `json:"group_id"`
	UserIDs   []string `json:"user_ids"`
}

// MemberInfo — публичная карточка участника группы.
type MemberInfo struct {
	UserID         string  `json:"user_id"`
	Name           string  `json:"name"`
	AvatarURL      *string `json:"avatar_url"`
	CardNumber     *string `json:"card_number"`
	CardHolderName *string `json:"card_holder_name"`
	CreatedAt      *string `json:"created_at"`
}

// BatchResponse — ответ на батчевый запрос. request_id и group_id
// эхом повторяют запрос.
type BatchResponse struct {
	RequestID string       `json:"request_id"`
	GroupID   string       `json:"group_id"`
	Users     []MemberInfo `json:"users"`
	Timestamp string       `json:"timestamp"`
}

// SingleRequest — запрос поиска одного пользователя по идентификатору.
type SingleRequest struct {
	RequestID    string `json:"request_id"`
	PhoneOrEmail string `json:"phone_or_email"`
	GroupSlug    string `json:"group_slug"`
}

// UserData — полная карточка пользователя для одиночного поиска.
type UserData struct {
	UserID         string  `json:"user_id"`
	Name           string  `json:"name"`
	PhoneNumber    *string `json:"phone_number"`
	Email          *string `json:"email"`
	Role           string  `json:"role"`
	AvatarURL      *string `json:"avatar_url"`
	CardNumber     *string `json:"card_number"`
	CardHolderName *string `json:"card_holder_name"`
	CreatedAt      *string `json:"created_at"`
	UpdatedAt      *string `json:"updated_at"`
}

// SingleResponse — ответ одиночного поиска: всегда ровно один ответ
// на запрос, ненайденный пользователь — это success=false с
// error_message, а не молчание.
type SingleResponse struct {
	RequestID    string    `json:"request_id"`
	Success      bool      `json:"success"`
	UserData     *UserData `json:"user_data"`
	ErrorMessage *string   `json:"error_message"`
	Timestamp    string    `json:"timestamp"`
}

func memberInfo(u *domain.User) MemberInfo {
	return MemberInfo{
		UserID:         u.ID,
		Name:           u.Name,
		AvatarURL:      u.AvatarURL,
		CardNumber:     u.CardNumber,
		CardHolderName: u.CardHolderName,
		CreatedAt:      isoTime(u.CreatedAt),
	}
}

func userData(u *domain.User) *UserData {
	return &UserData{
		UserID:         u.ID,
		Name:           u.Name,
		PhoneNumber:    u.PhoneNumber,
		Email:          u.Email,
		Role:           string(u.Role),
		AvatarURL:      u.AvatarURL,
		CardNumber:     u.CardNumber,
		CardHolderName: u.CardHolderName,
		CreatedAt:      isoTime(u.CreatedAt),
		UpdatedAt:      isoTime(u.UpdatedAt),
	}
}

func isoTime(t time.Time) *string {
	if t.IsZero() {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}

func nowISO() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// dedupe убирает дубликаты и пустые id, сохраняя порядок первого
// вхождения. Один и тот же id в запросе не порождает ни повторного
// похода в БД, ни повторной записи в ответе.
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
