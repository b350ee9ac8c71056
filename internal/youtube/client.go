package youtube

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cutflow/cutflow-backend/internal/pkg/outbound"
)

const (
	defaultAuthURL  = "https://accounts.google.com/o/oauth2/v2/auth"
	defaultTokenURL = "https://oauth2.googleapis.com/token"
	defaultRevoke   = "https://oauth2.googleapis.com/revoke"
	defaultAPIBase  = "https://www.googleapis.com/youtube/v3"

	// ScopeReadonly достаточно, чтобы узнать канал и проверить публикацию.
	ScopeReadonly = "https://www.googleapis.com/auth/youtube.readonly"
)

var (
	ErrNotConfigured = errors.New("youtube: OAuth клиент не настроен")
	ErrNoChannel     = errors.New("youtube: у аккаунта нет канала")
)

// Config параметры OAuth приложения Google. URL эндпоинтов переопределяются в тестах.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	AuthURL      string
	TokenURL     string
	RevokeURL    string
	APIBaseURL   string
}

// Token ответ token эндпоинта Google.
type Token struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	Scope        string `json:"scope"`
	TokenType    string `json:"token_type"`
}

// Expiry возвращает момент истечения access токена относительно now.
func (t *Token) Expiry(now time.Time) time.Time {
	return now.Add(time.Duration(t.ExpiresIn) * time.Second)
}

// Channel канал YouTube пользователя.
type Channel struct {
	ID    string
	Title string
}

// Client общается с Google OAuth и YouTube Data API.
type Client struct {
	cfg  Config
	http *outbound.Client
}

func NewClient(cfg Config, opts outbound.Options) *Client {
	if cfg.AuthURL == "" {
		cfg.AuthURL = defaultAuthURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = defaultTokenURL
	}
	if cfg.RevokeURL == "" {
		cfg.RevokeURL = defaultRevoke
	}
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = defaultAPIBase
	}
	cfg.APIBaseURL = strings.TrimRight(cfg.APIBaseURL, "/")
	return &Client{cfg: cfg, http: outbound.New(opts, "youtube")}
}

// Configured сообщает, заданы ли client id и secret.
func (c *Client) Configured() bool {
	return c.cfg.ClientID != "" && c.cfg.ClientSecret != ""
}

// AuthCodeURL строит ссылку на экран согласия. access_type=offline и prompt=consent
// нужны, чтобы Google выдал refresh токен.
func (c *Client) AuthCodeURL(state string) (string, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}
	q := url.Values{}
	q.Set("client_id", c.cfg.ClientID)
	q.Set("redirect_uri", c.cfg.RedirectURL)
	q.Set("response_type", "code")
	q.Set("scope", ScopeReadonly)
	q.Set("access_type", "offline")
	q.Set("prompt", "consent")
	q.Set("include_granted_scopes", "true")
	q.Set("state", state)
	return c.cfg.AuthURL + "?" + q.Encode(), nil
}

// Exchange меняет код авторизации на токены.
func (c *Client) Exchange(ctx context.Context, code string) (*Token, error) {
	return c.token(ctx, url.Values{
		"code":         {code},
		"redirect_uri": {c.cfg.RedirectURL},
		"grant_type":   {"authorization_code"},
	})
}

// Refresh обновляет access токен.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*Token, error) {
	return c.token(ctx, url.Values{
		"refresh_token": {refreshToken},
		"grant_type":    {"refresh_token"},
	})
}

func (c *Client) token(ctx context.Context, form url.Values) (*Token, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	form.Set("client_id", c.cfg.ClientID)
	form.Set("client_secret", c.cfg.ClientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("youtube: запрос токена: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	body, _, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("youtube: token endpoint: %w", err)
	}

	var tok Token
	if err := json.Unmarshal(body, &tok); err != nil {
		return nil, fmt.Errorf("youtube: разбор токена: %w", err)
	}
	if tok.AccessToken == "" {
		return nil, errors.New("youtube: в ответе нет access_token")
	}
	return &tok, nil
}

// Revoke отзывает токен у Google.
func (c *Client) Revoke(ctx context.Context, token string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.RevokeURL,
		strings.NewReader(url.Values{"token": {token}}.Encode()))
	if err != nil {
		return fmt.Errorf("youtube: запрос отзыва: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	if _, _, err := c.http.Do(req); err != nil {
		return fmt.Errorf("youtube: отзыв токена: %w", err)
	}
	return nil
}

type channelsResponse struct {
	Items []struct {
		ID      string `json:"id"`
		Snippet struct {
			Title string `json:"title"`
		} `json:"snippet"`
	} `json:"items"`
}

// MyChannel возвращает канал владельца токена.
func (c *Client) MyChannel(ctx context.Context, accessToken string) (*Channel, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.APIBaseURL+"/channels?part=snippet&mine=true", nil)
	if err != nil {
		return nil, fmt.Errorf("youtube: запрос канала: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	body, _, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("youtube: channels: %w", err)
	}

	var resp channelsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("youtube: разбор канала: %w", err)
	}
	if len(resp.Items) == 0 {
		return nil, ErrNoChannel
	}
	return &Channel{ID: resp.Items[0].ID, Title: resp.Items[0].Snippet.Title}, nil
}
