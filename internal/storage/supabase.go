package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	storage_go "github.com/supabase-community/storage-go"
)

const DriverSupabase = "supabase"

// SupabaseStorage хранит материалы в бакете Supabase Storage. Бакет приватный,
// ссылки выдаются подписанными.
type SupabaseStorage struct {
	client         *storage_go.Client
	bucket         string
	maxUploadBytes int64
}

// NewSupabaseStorage создаёт клиент Supabase Storage.
func NewSupabaseStorage(supabaseURL, serviceKey, bucket string, maxUploadMB int64) (*SupabaseStorage, error) {
	if supabaseURL == "" || serviceKey == "" {
		return nil, errors.New("storage: не заданы SUPABASE_URL или SUPABASE_SERVICE_KEY")
	}
	baseURL := strings.TrimRight(supabaseURL, "/")

	return &SupabaseStorage{
		client:         storage_go.NewClient(baseURL+"/storage/v1", serviceKey, nil),
		bucket:         bucket,
		maxUploadBytes: maxUploadMB * 1024 * 1024,
	}, nil
}

func (s *SupabaseStorage) Driver() string { return DriverSupabase }

// Save загружает файл в бакет.
func (s *SupabaseStorage) Save(ctx context.Context, orderID uuid.UUID, originalName, contentType string, r io.Reader) (*Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path := objectPath(orderID, originalName)
	reader := &limitReader{r: r, limit: s.maxUploadBytes}
	upsert := false
	_, err := s.client.UploadFile(s.bucket, path, reader, storage_go.FileOptions{
		ContentType: &contentType,
		Upsert:      &upsert,
	})
	if reader.read > s.maxUploadBytes {
		_ = s.Delete(ctx, path)
		return nil, ErrTooLarge
	}
	if err != nil {
		return nil, fmt.Errorf("storage: загрузка в supabase: %w", err)
	}

	return &Object{Path: path, Size: reader.read}, nil
}

// Delete удаляет объект из бакета.
func (s *SupabaseStorage) Delete(ctx context.Context, path string) error {
	if _, err := s.client.RemoveFile(s.bucket, []string{path}); err != nil {
		return fmt.Errorf("storage: удаление из supabase: %w", err)
	}
	return nil
}

// Link выдаёт подписанную ссылку, действующую ttl.
func (s *SupabaseStorage) Link(ctx context.Context, path string, ttl time.Duration) (string, error) {
	seconds := int(ttl.Seconds())
	if seconds <= 0 {
		seconds = 3600
	}
	resp, err := s.client.CreateSignedUrl(s.bucket, path, seconds)
	if err != nil {
		return "", fmt.Errorf("storage: подписанная ссылка supabase: %w", err)
	}
	return resp.SignedURL, nil
}
