package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/cutflow/cutflow-backend/internal/models"
	"github.com/cutflow/cutflow-backend/internal/repository/common"
)

// ErrYouTubeNotConnected у пользователя нет подключённого канала.
var ErrYouTubeNotConnected = errors.New("youtube not connected")

// YouTubeRepository хранит зашифрованные токены подключённых каналов.
type YouTubeRepository struct {
	db sqlx.ExtContext
}

func NewYouTubeRepository(db sqlx.ExtContext) *YouTubeRepository {
	return &YouTubeRepository{db: db}
}

// Upsert сохраняет подключение и снимает отметку об отключении. Пустой refresh токен
// не затирает сохранённый: Google выдаёт его только при первом согласии.
func (r *YouTubeRepository) Upsert(ctx context.Context, conn *models.YouTubeConnection) error {
	query := `
		INSERT INTO youtube_connections (user_id, channel_id, channel_title, access_token_enc, refresh_token_enc, scope, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id) DO UPDATE
		SET channel_id = COALESCE(EXCLUDED.channel_id, youtube_connections.channel_id),
			channel_title = COALESCE(EXCLUDED.channel_title, youtube_connections.channel_title),
			access_token_enc = EXCLUDED.access_token_enc,
			refresh_token_enc = COALESCE(EXCLUDED.refresh_token_enc, youtube_connections.refresh_token_enc),
			scope = EXCLUDED.scope,
			expires_at = EXCLUDED.expires_at,
			disconnected_at = NULL,
			updated_at = NOW()
		RETURNING created_at, updated_at
	`
	if err := r.db.QueryRowxContext(ctx, query,
		conn.UserID, conn.ChannelID, conn.ChannelTitle, conn.AccessTokenEnc, conn.RefreshTokenEnc, conn.Scope, conn.ExpiresAt,
	).Scan(&conn.CreatedAt, &conn.UpdatedAt); err != nil {
		return fmt.Errorf("youtube repository: upsert %w", err)
	}
	return nil
}

// Get возвращает действующее подключение.
func (r *YouTubeRepository) Get(ctx context.Context, userID uuid.UUID) (*models.YouTubeConnection, error) {
	var conn models.YouTubeConnection
	if err := sqlx.GetContext(ctx, r.db, &conn, `
		SELECT * FROM youtube_connections WHERE user_id = $1 AND disconnected_at IS NULL
	`, userID); err != nil {
		return nil, notFoundOr(err, ErrYouTubeNotConnected, "youtube repository: get")
	}
	return &conn, nil
}

// Disconnect стирает токены и помечает подключение отключённым.
func (r *YouTubeRepository) Disconnect(ctx context.Context, userID uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE youtube_connections
		SET access_token_enc = '', refresh_token_enc = NULL, scope = NULL,
			disconnected_at = NOW(), updated_at = NOW()
		WHERE user_id = $1 AND disconnected_at IS NULL
	`, userID)
	if err != nil {
		return fmt.Errorf("youtube repository: disconnect %w", err)
	}
	return common.ExpectAffected(result, ErrYouTubeNotConnected)
}
