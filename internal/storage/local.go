package storage

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const DriverLocal = "local"

// defaultLinkTTL срок ссылки, если вызывающий не задал свой.
const defaultLinkTTL = time.Hour

// LocalStorage хранит материалы на диске. Ссылки ведут на publicPrefix и подписаны HMAC со сроком действия.
type LocalStorage struct {
	rootPath       string
	publicPrefix   string
	maxUploadBytes int64
	signingKey     []byte
	now            func() time.Time
}

// NewLocalStorage создаёт файловое хранилище.
func NewLocalStorage(rootPath, publicPrefix string, maxUploadMB int64, signingKey string) (*LocalStorage, error) {
	if signingKey == "" {
		return nil, errors.New("storage: не задан ключ подписи ссылок")
	}
	if err := os.MkdirAll(rootPath, 0o755); err != nil {
		return nil, fmt.Errorf("storage: не удалось создать каталог %s: %w", rootPath, err)
	}

	return &LocalStorage{
		rootPath:       rootPath,
		publicPrefix:   strings.TrimRight(publicPrefix, "/"),
		maxUploadBytes: maxUploadMB * 1024 * 1024,
		signingKey:     []byte(signingKey),
		now:            time.Now,
	}, nil
}

func (s *LocalStorage) Driver() string { return DriverLocal }

// Save сохраняет файл через временный файл и возвращает относительный путь.
func (s *LocalStorage) Save(ctx context.Context, orderID uuid.UUID, originalName, contentType string, r io.Reader) (*Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	relative := objectPath(orderID, originalName)
	targetPath := filepath.Join(s.rootPath, filepath.FromSlash(relative))
	if err := os.MkdirAll(filepath.Dir(targetPath), 0o755); err != nil {
		return nil, fmt.Errorf("storage: не удалось создать каталог заказа: %w", err)
	}

	tempPath := targetPath + ".tmp"
	f, err := os.Create(tempPath)
	if err != nil {
		return nil, fmt.Errorf("storage: не удалось создать файл: %w", err)
	}
	defer f.Close()

	written, err := io.Copy(f, &limitReader{r: r, limit: s.maxUploadBytes})
	if err != nil {
		_ = os.Remove(tempPath)
		if errors.Is(err, ErrTooLarge) {
			return nil, err
		}
		return nil, fmt.Errorf("storage: ошибка записи файла: %w", err)
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(tempPath)
		return nil, fmt.Errorf("storage: ошибка закрытия файла: %w", err)
	}
	if err := os.Rename(tempPath, targetPath); err != nil {
		_ = os.Remove(tempPath)
		return nil, fmt.Errorf("storage: не удалось переименовать файл: %w", err)
	}

	return &Object{Path: relative, Size: written}, nil
}

// Delete удаляет файл. Отсутствующий файл не считается ошибкой.
func (s *LocalStorage) Delete(ctx context.Context, relativePath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	target, err := s.resolve(relativePath)
	if err != nil {
		return err
	}
	if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("storage: не удалось удалить файл: %w", err)
	}
	return nil
}

// Link возвращает подписанную ссылку на файл, действующую ttl.
func (s *LocalStorage) Link(ctx context.Context, relativePath string, ttl time.Duration) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if _, err := s.resolve(relativePath); err != nil {
		return "", err
	}
	if ttl <= 0 {
		ttl = defaultLinkTTL
	}

	expires := strconv.FormatInt(s.now().Add(ttl).Unix(), 10)
	query := url.Values{}
	query.Set("expires", expires)
	query.Set("signature", s.sign(relativePath, expires))
	return s.publicPrefix + "/" + (&url.URL{Path: relativePath}).EscapedPath() + "?" + query.Encode(), nil
}

// Open проверяет подпись ссылки и возвращает путь к файлу на диске.
func (s *LocalStorage) Open(relativePath, expires, signature string) (string, error) {
	if relativePath == "" || signature == "" {
		return "", ErrInvalidLink
	}
	if !hmac.Equal([]byte(signature), []byte(s.sign(relativePath, expires))) {
		return "", ErrInvalidLink
	}
	deadline, err := strconv.ParseInt(expires, 10, 64)
	if err != nil {
		return "", ErrInvalidLink
	}
	if s.now().Unix() > deadline {
		return "", ErrLinkExpired
	}

	target, err := s.resolve(relativePath)
	if err != nil {
		return "", ErrInvalidLink
	}
	info, err := os.Stat(target)
	if err != nil || info.IsDir() {
		return "", ErrInvalidLink
	}
	return target, nil
}

func (s *LocalStorage) sign(relativePath, expires string) string {
	mac := hmac.New(sha256.New, s.signingKey)
	mac.Write([]byte(relativePath + "\n" + expires))
	return hex.EncodeToString(mac.Sum(nil))
}

// resolve не даёт выйти за пределы корня хранилища.
func (s *LocalStorage) resolve(relativePath string) (string, error) {
	target := filepath.Join(s.rootPath, filepath.FromSlash(relativePath))
	rel, err := filepath.Rel(s.rootPath, target)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("storage: некорректный путь %q", relativePath)
	}
	return target, nil
}
