// Package domain contains entities without logic, just meta-data
package domain

import (
	"errors"

	"github.com/google/uuid"
)

const MaxNicknameLen = 36

var (
	ErrNicknameTooLong = errors.New("nickname too long")
	ErrNicknameEmpty   = errors.New("nickname empty")
)

type UserID string

// User is an account-level identity. A user belongs to at most one
// listening room at a time (ActiveRoomID); playlist room memberships
// are unbounded and live in their own relation.
type User struct {
	ID           UserID `json:"id"`
	Nickname     string `json:"nickname"`
	ActiveRoomID RoomID `json:"activeRoomID,omitempty"`
}

// NewUser is a tiny helper to avoid ad-hoc struct literals in adapters.
func NewUser(nickname string) (*User, error) {
	if len(nickname) == 0 {
		return nil, ErrNicknameEmpty
	}
	if len(nickname) > MaxNicknameLen {
		return nil, ErrNicknameTooLong
	}
	id := UserID(uuid.NewString())
	return &User{ID: id, Nickname: nickname}, nil
}

func (u *User) SetNickname(nickname string) error {
	if len(nickname) == 0 {
		return ErrNicknameEmpty
	}
	if len(nickname) > MaxNicknameLen {
		return ErrNicknameTooLong
	}
	u.Nickname = nickname
	return nil
}
