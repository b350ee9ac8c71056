package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/cutflow/cutflow-backend/internal/logger"
	"github.com/cutflow/cutflow-backend/internal/models"
	"github.com/cutflow/cutflow-backend/internal/pkg/apperror"
	"github.com/cutflow/cutflow-backend/internal/repository"
	"github.com/cutflow/cutflow-backend/internal/youtube"
)

const oauthStateTTL = 10 * time.Minute

// YouTubeRepository хранит OAuth подключения.
type YouTubeRepository interface {
	Upsert(ctx context.Context, conn *models.YouTubeConnection) error
	Get(ctx context.Context, userID uuid.UUID) (*models.YouTubeConnection, error)
	Disconnect(ctx context.Context, userID uuid.UUID) error
}

// YouTubeOAuth операции Google OAuth и YouTube API.
type YouTubeOAuth interface {
	Configured() bool
	AuthCodeURL(state string) (string, error)
	Exchange(ctx context.Context, code string) (*youtube.Token, error)
	Refresh(ctx context.Context, refreshToken string) (*youtube.Token, error)
	Revoke(ctx context.Context, token string) error
	MyChannel(ctx context.Context, accessToken string) (*youtube.Channel, error)
}

// TokenSealer шифрует OAuth токены перед сохранением.
type TokenSealer interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(encoded string) (string, error)
}

// YouTubeStatus состояние подключения канала.
type YouTubeStatus struct {
	Connected    bool       `json:"connected"`
	ChannelID    *string    `json:"channel_id,omitempty"`
	ChannelTitle *string    `json:"channel_title,omitempty"`
	TokenValid   bool       `json:"token_valid"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
}

// YouTubeService подключает канал YouTube пользователя через OAuth.
type YouTubeService struct {
	repo   YouTubeRepository
	oauth  YouTubeOAuth
	cipher TokenSealer
	tokens *TokenManager
	now    func() time.Time
	log    *logrus.Entry
}

func NewYouTubeService(repo YouTubeRepository, oauth YouTubeOAuth, cipher TokenSealer, tokens *TokenManager) *YouTubeService {
	return &YouTubeService{
		repo:   repo,
		oauth:  oauth,
		cipher: cipher,
		tokens: tokens,
		now:    time.Now,
		log:    logger.Component("youtube_service"),
	}
}

// ConnectURL возвращает ссылку на экран согласия Google с подписанным state.
func (s *YouTubeService) ConnectURL(userID uuid.UUID) (string, error) {
	if !s.oauth.Configured() {
		return "", apperror.New(apperror.ErrCodeUnavailable, "интеграция с YouTube не настроена")
	}
	state, err := s.tokens.IssueOAuthState(userID, oauthStateTTL)
	if err != nil {
		return "", apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось подписать state")
	}
	url, err := s.oauth.AuthCodeURL(state)
	if err != nil {
		return "", apperror.Wrap(err, apperror.ErrCodeUnavailable, "интеграция с YouTube не настроена")
	}
	return url, nil
}

// Callback завершает OAuth: меняет код на токены, шифрует их и сохраняет подключение.
func (s *YouTubeService) Callback(ctx context.Context, code, state string) (uuid.UUID, error) {
	userID, err := s.tokens.ParseOAuthState(state)
	if err != nil {
		return uuid.Nil, apperror.Wrap(err, apperror.ErrCodeUnauthorized, "state недействителен или истёк")
	}
	if code == "" {
		return userID, apperror.New(apperror.ErrCodeValidation, "код авторизации не передан")
	}

	tok, err := s.oauth.Exchange(ctx, code)
	if err != nil {
		return userID, apperror.Wrap(err, apperror.ErrCodeUnavailable, "Google отклонил код авторизации")
	}

	conn := &models.YouTubeConnection{UserID: userID, ExpiresAt: tok.Expiry(s.now()).UTC()}
	if tok.Scope != "" {
		conn.Scope = &tok.Scope
	}
	if err := s.seal(conn, tok); err != nil {
		return userID, err
	}

	channel, err := s.oauth.MyChannel(ctx, tok.AccessToken)
	switch {
	case err == nil:
		conn.ChannelID = &channel.ID
		conn.ChannelTitle = &channel.Title
	case errors.Is(err, youtube.ErrNoChannel):
		return userID, apperror.New(apperror.ErrCodeValidation, "у аккаунта Google нет канала YouTube")
	default:
		// канал подтянется при следующем подключении
		s.log.WithFields(logrus.Fields{"user_id": userID, "error": err.Error()}).Warn("не удалось получить канал")
	}

	if err := s.repo.Upsert(ctx, conn); err != nil {
		return userID, err
	}
	s.log.WithField("user_id", userID).Info("канал YouTube подключён")
	return userID, nil
}

// Status возвращает состояние подключения. Истёкший access токен обновляется.
func (s *YouTubeService) Status(ctx context.Context, userID uuid.UUID) (*YouTubeStatus, error) {
	conn, err := s.repo.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrYouTubeNotConnected) {
			return &YouTubeStatus{Connected: false}, nil
		}
		return nil, err
	}

	status := &YouTubeStatus{
		Connected:    true,
		ChannelID:    conn.ChannelID,
		ChannelTitle: conn.ChannelTitle,
	}
	if _, err := s.accessToken(ctx, conn); err != nil {
		s.log.WithFields(logrus.Fields{"user_id": userID, "error": err.Error()}).Warn("токен YouTube недействителен")
	} else {
		status.TokenValid = true
	}
	expires := conn.ExpiresAt
	status.ExpiresAt = &expires
	return status, nil
}

// Disconnect отзывает токены у Google и стирает их из подключения.
func (s *YouTubeService) Disconnect(ctx context.Context, userID uuid.UUID) error {
	conn, err := s.repo.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrYouTubeNotConnected) {
			return apperror.New(apperror.ErrCodeNotFound, "канал YouTube не подключён")
		}
		return err
	}

	sealed := conn.AccessTokenEnc
	if conn.RefreshTokenEnc != nil {
		sealed = *conn.RefreshTokenEnc
	}
	if token, err := s.cipher.Decrypt(sealed); err == nil {
		if err := s.oauth.Revoke(ctx, token); err != nil {
			s.log.WithFields(logrus.Fields{"user_id": userID, "error": err.Error()}).Warn("не удалось отозвать токен")
		}
	}
	return s.repo.Disconnect(ctx, userID)
}

// accessToken расшифровывает access токен и при необходимости обновляет его по refresh токену.
func (s *YouTubeService) accessToken(ctx context.Context, conn *models.YouTubeConnection) (string, error) {
	if s.now().Before(conn.ExpiresAt.Add(-time.Minute)) {
		token, err := s.cipher.Decrypt(conn.AccessTokenEnc)
		if err != nil {
			return "", apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось расшифровать токен")
		}
		return token, nil
	}
	if conn.RefreshTokenEnc == nil {
		return "", apperror.New(apperror.ErrCodeUnauthorized, "токен истёк, подключите канал заново")
	}

	refresh, err := s.cipher.Decrypt(*conn.RefreshTokenEnc)
	if err != nil {
		return "", apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось расшифровать токен")
	}
	tok, err := s.oauth.Refresh(ctx, refresh)
	if err != nil {
		return "", apperror.Wrap(err, apperror.ErrCodeUnavailable, "не удалось обновить токен YouTube")
	}

	conn.ExpiresAt = tok.Expiry(s.now()).UTC()
	if err := s.seal(conn, tok); err != nil {
		return "", err
	}
	if err := s.repo.Upsert(ctx, conn); err != nil {
		return "", err
	}
	return tok.AccessToken, nil
}

// seal шифрует токены в подключение. Пустой refresh токен оставляет прежний.
func (s *YouTubeService) seal(conn *models.YouTubeConnection, tok *youtube.Token) error {
	access, err := s.cipher.Encrypt(tok.AccessToken)
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось зашифровать токен")
	}
	conn.AccessTokenEnc = access

	if tok.RefreshToken != "" {
		refresh, err := s.cipher.Encrypt(tok.RefreshToken)
		if err != nil {
			return apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось зашифровать токен")
		}
		conn.RefreshTokenEnc = &refresh
	}
	return nil
}
