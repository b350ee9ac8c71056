package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/h2non/filetype"
	"github.com/sirupsen/logrus"

	"github.com/cutflow/cutflow-backend/internal/domain/valueobject"
	"github.com/cutflow/cutflow-backend/internal/logger"
	"github.com/cutflow/cutflow-backend/internal/models"
	"github.com/cutflow/cutflow-backend/internal/pkg/apperror"
	"github.com/cutflow/cutflow-backend/internal/storage"
	"github.com/cutflow/cutflow-backend/internal/validation"
)

// sniffSize сколько байт нужно filetype для определения контейнера.
const sniffSize = 512

// Форматы видео, которые принимаются к сдаче.
var allowedVideoTypes = map[string]string{
	"mp4":  "video/mp4",
	"m4v":  "video/x-m4v",
	"mov":  "video/quicktime",
	"webm": "video/webm",
	"mkv":  "video/x-matroska",
	"avi":  "video/x-msvideo",
}

// DeliveryRepository чтение сданных материалов.
type DeliveryRepository interface {
	GetDelivery(ctx context.Context, id uuid.UUID) (*models.Delivery, error)
	ListDeliveriesByOrder(ctx context.Context, orderID uuid.UUID) ([]models.Delivery, error)
}

// DeliveryInput материал, который сдаёт монтажёр: файл или внешняя ссылка.
type DeliveryInput struct {
	Kind     string
	Note     string
	URL      string
	FileName string
	File     io.Reader
}

// DeliveryLink ссылка на материал.
type DeliveryLink struct {
	URL       string     `json:"url"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// DeliveryService принимает превью и финальные версии и выдаёт ссылки на них.
type DeliveryService struct {
	orders  *OrderService
	reader  OrderReader
	repo    DeliveryRepository
	storage storage.VideoStorage
	linkTTL time.Duration
	log     *logrus.Entry
}

func NewDeliveryService(orders *OrderService, reader OrderReader, repo DeliveryRepository, store storage.VideoStorage, linkTTL time.Duration) *DeliveryService {
	return &DeliveryService{
		orders:  orders,
		reader:  reader,
		repo:    repo,
		storage: store,
		linkTTL: linkTTL,
		log:     logger.Component("delivery_service"),
	}
}

// Submit сохраняет материал и переводит заказ в следующий статус. Если переход
// не удался, загруженный файл удаляется.
func (s *DeliveryService) Submit(ctx context.Context, editorID, orderID uuid.UUID, in DeliveryInput) (*models.Delivery, *models.Order, error) {
	kind := strings.ToUpper(strings.TrimSpace(in.Kind))
	if kind != models.DeliveryKindPreview && kind != models.DeliveryKindFinal {
		return nil, nil, apperror.New(apperror.ErrCodeValidation, "kind должен быть preview или final")
	}
	note := strings.TrimSpace(in.Note)
	if err := validation.ValidateNote(note); err != nil {
		return nil, nil, invalid(err)
	}
	if (in.File == nil) == (strings.TrimSpace(in.URL) == "") {
		return nil, nil, apperror.New(apperror.ErrCodeValidation, "нужно передать либо файл, либо ссылку")
	}

	// до загрузки проверяем, что сдача вообще возможна
	order, err := s.reader.GetOrder(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}
	if !order.IsAssignedEditor(editorID) {
		return nil, nil, apperror.New(apperror.ErrCodeForbidden, "сдавать работу может только назначенный исполнитель")
	}
	action := valueobject.ActionSubmitPreview
	if kind == models.DeliveryKindFinal {
		action = valueobject.ActionSubmitFinal
	}
	if _, err := valueobject.ResolveTransition(order.Status, action, valueobject.ActorEditor); err != nil {
		return nil, nil, err
	}

	delivery := &models.Delivery{Kind: kind}
	if note != "" {
		delivery.Note = &note
	}

	var stored *storage.Object
	if in.File != nil {
		body, contentType, err := sniffVideo(in.File, in.FileName)
		if err != nil {
			return nil, nil, err
		}
		stored, err = s.storage.Save(ctx, orderID, in.FileName, contentType, body)
		if err != nil {
			if errors.Is(err, storage.ErrTooLarge) {
				return nil, nil, apperror.New(apperror.ErrCodeValidation, "файл превышает допустимый размер")
			}
			return nil, nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось сохранить файл")
		}
		driver := s.storage.Driver()
		delivery.StorageDriver = &driver
		delivery.StoragePath = &stored.Path
		delivery.ContentType = &contentType
		delivery.SizeBytes = stored.Size
	} else {
		link := strings.TrimSpace(in.URL)
		if err := validation.ValidateExternalLink(link); err != nil {
			return nil, nil, invalid(err)
		}
		delivery.ExternalURL = &link
	}

	updated, err := s.orders.SubmitDelivery(ctx, editorID, orderID, delivery)
	if err != nil {
		if stored != nil {
			if delErr := s.storage.Delete(context.WithoutCancel(ctx), stored.Path); delErr != nil {
				s.log.WithFields(logrus.Fields{
					"path":  stored.Path,
					"error": delErr.Error(),
				}).Error("не удалось удалить файл после отката")
			}
		}
		return nil, nil, err
	}

	s.log.WithFields(logrus.Fields{
		"order_id":    orderID,
		"delivery_id": delivery.ID,
		"kind":        kind,
	}).Info("материал сдан")
	return delivery, updated, nil
}

// List возвращает материалы заказа его участникам.
func (s *DeliveryService) List(ctx context.Context, userID uuid.UUID, role string, orderID uuid.UUID) ([]models.Delivery, error) {
	if _, err := s.orders.participantOrder(ctx, userID, role, orderID); err != nil {
		return nil, err
	}
	return s.repo.ListDeliveriesByOrder(ctx, orderID)
}

// Link выдаёт ссылку на материал: подписанную для файлов в хранилище, исходную для внешних.
func (s *DeliveryService) Link(ctx context.Context, userID uuid.UUID, role string, deliveryID uuid.UUID) (*DeliveryLink, error) {
	delivery, err := s.repo.GetDelivery(ctx, deliveryID)
	if err != nil {
		return nil, err
	}
	if _, err := s.orders.participantOrder(ctx, userID, role, delivery.OrderID); err != nil {
		if apperror.IsNotFound(err) {
			return nil, apperror.ErrDeliveryNotFound
		}
		return nil, err
	}

	if delivery.ExternalURL != nil {
		return &DeliveryLink{URL: *delivery.ExternalURL}, nil
	}
	if delivery.StoragePath == nil {
		return nil, apperror.ErrDeliveryNotFound
	}
	if delivery.StorageDriver != nil && *delivery.StorageDriver != s.storage.Driver() {
		return nil, apperror.New(apperror.ErrCodeUnavailable, "хранилище материала недоступно")
	}

	url, err := s.storage.Link(ctx, *delivery.StoragePath, s.linkTTL)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось выдать ссылку")
	}
	expires := time.Now().Add(s.linkTTL).UTC()
	return &DeliveryLink{URL: url, ExpiresAt: &expires}, nil
}

// sniffVideo определяет контейнер по сигнатуре и возвращает поток, начинающийся с прочитанных байт.
func sniffVideo(r io.Reader, fileName string) (io.Reader, string, error) {
	head := make([]byte, sniffSize)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		if errors.Is(err, io.EOF) {
			return nil, "", apperror.New(apperror.ErrCodeValidation, "файл не может быть пустым")
		}
		return nil, "", apperror.Wrap(err, apperror.ErrCodeBadRequest, "не удалось прочитать файл")
	}
	head = head[:n]

	kind, err := filetype.Match(head)
	if err != nil || kind == filetype.Unknown {
		return nil, "", apperror.New(apperror.ErrCodeValidation, "не удалось определить тип файла. Разрешены только видео")
	}
	contentType, ok := allowedVideoTypes[kind.Extension]
	if !ok {
		return nil, "", apperror.Newf(apperror.ErrCodeValidation, "неподдерживаемый тип файла (%s)", kind.MIME.Value)
	}

	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(fileName)), ".")
	if ext != "" && ext != kind.Extension && !(kind.Extension == "mp4" && (ext == "m4v" || ext == "mov")) {
		return nil, "", apperror.Newf(apperror.ErrCodeValidation, "расширение файла (.%s) не соответствует реальному типу (.%s)", ext, kind.Extension)
	}

	return io.MultiReader(bytes.NewReader(head), r), contentType, nil
}
