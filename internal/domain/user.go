// Package domain содержит доменные модели Dolya.
package domain

import "time"

// Role — роль пользователя.
type Role string

const (
	RoleUser       Role = "user"
	RoleGroupAdmin Role = "group_admin"
)

// User — пользователь приложения.
//
// ID — строковый uuid: он ходит по проводу в lookup-запросах и ответах,
// поэтому хранится и сравнивается как строка.
type User struct {
	ID             string
	Name           string
	PhoneNumber    *string
	Email          *string
	Role           Role
	AvatarURL      *string
	CardNumber     *string
	CardHolderName *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// PendingUpdate — изменение профиля, ожидающее подтверждения OTP-кодом.
// Неподтверждённые изменения протухают и вычищаются janitor-ом.
type PendingUpdate struct {
	ID        string
	UserID    string
	Field     string
	NewValue  string
	CreatedAt time.Time
	ExpiresAt time.Time
}
