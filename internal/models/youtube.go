package models

import (
	"time"

	"github.com/google/uuid"
)

// YouTubeConnection хранит зашифрованные OAuth токены канала пользователя.
// После отключения токены стираются, строка остаётся с DisconnectedAt.
type YouTubeConnection struct {
	UserID          uuid.UUID  `db:"user_id" json:"user_id"`
	ChannelID       *string    `db:"channel_id" json:"channel_id,omitempty"`
	ChannelTitle    *string    `db:"channel_title" json:"channel_title,omitempty"`
	AccessTokenEnc  string     `db:"access_token_enc" json:"-"`
	RefreshTokenEnc *string    `db:"refresh_token_enc" json:"-"`
	Scope           *string    `db:"scope" json:"scope,omitempty"`
	ExpiresAt       time.Time  `db:"expires_at" json:"expires_at"`
	DisconnectedAt  *time.Time `db:"disconnected_at" json:"disconnected_at,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}

// IsConnected сообщает, действует ли подключение.
func (c *YouTubeConnection) IsConnected() bool {
	return c.DisconnectedAt == nil
}
