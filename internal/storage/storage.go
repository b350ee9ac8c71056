package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrTooLarge возвращается, когда файл превышает лимит загрузки.
var ErrTooLarge = errors.New("storage: файл превышает лимит")

// Ошибки проверки подписанных ссылок локального хранилища.
var (
	ErrInvalidLink = errors.New("storage: ссылка недействительна")
	ErrLinkExpired = errors.New("storage: срок ссылки истёк")
)

// Object сохранённый файл.
type Object struct {
	Path string
	Size int64
}

// VideoStorage хранит материалы, сданные по заказам.
type VideoStorage interface {
	Driver() string
	Save(ctx context.Context, orderID uuid.UUID, originalName, contentType string, r io.Reader) (*Object, error)
	Delete(ctx context.Context, path string) error
	Link(ctx context.Context, path string, ttl time.Duration) (string, error)
}

// objectPath строит путь вида <order_id>/<unix_nano>_<имя>.
func objectPath(orderID uuid.UUID, originalName string) string {
	safeName := sanitizeFilename(originalName)
	return fmt.Sprintf("%s/%d_%s", orderID.String(), time.Now().UnixNano(), safeName)
}

// sanitizeFilename удаляет потенциально опасные символы.
func sanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.ReplaceAll(name, "..", "")
	name = strings.Map(func(r rune) rune {
		switch {
		case r == '/' || r == ' ' || r == '?' || r == '#' || r == '%':
			return '_'
		case r < 0x20:
			return -1
		}
		return r
	}, name)
	if name == "" || name == "." {
		name = "video"
	}
	return name
}

// limitReader считает прочитанные байты и возвращает ErrTooLarge при превышении лимита.
type limitReader struct {
	r     io.Reader
	limit int64
	read  int64
}

func (l *limitReader) Read(p []byte) (int, error) {
	n, err := l.r.Read(p)
	l.read += int64(n)
	if l.read > l.limit {
		return n, ErrTooLarge
	}
	return n, err
}
