package billing

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/erp/billing/internal/domain/billing"
	"github.com/erp/billing/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ObjectStorage stores attachment files.
// Implemented by the infrastructure layer (S3, MinIO, in-memory).
type ObjectStorage interface {
	Put(ctx context.Context, storageKey string, body io.Reader, size int64, contentType string) error
	GenerateDownloadURL(ctx context.Context, storageKey string, expiresIn time.Duration) (string, time.Time, error)
	DeleteObject(ctx context.Context, storageKey string) error
}

// AttachmentServiceConfig holds configuration for the attachment service
type AttachmentServiceConfig struct {
	MaxFileSize         int64
	DownloadURLExpiry   time.Duration
	AllowedContentTypes map[string]bool
}

// DefaultAttachmentServiceConfig returns the default configuration
func DefaultAttachmentServiceConfig() AttachmentServiceConfig {
	return AttachmentServiceConfig{
		MaxFileSize:       10 << 20,
		DownloadURLExpiry: 15 * time.Minute,
		AllowedContentTypes: map[string]bool{
			"application/pdf": true,
			"image/png":       true,
			"image/jpeg":      true,
			"image/webp":      true,
			"text/plain":      true,
			"text/csv":        true,
			"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":       true,
			"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
		},
	}
}

// UploadAttachmentInput describes a file being attached to a document
type UploadAttachmentInput struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
	UploadedBy  uuid.UUID
	Kind        billing.AttachmentKind
}

// DownloadLink is a time-limited URL to an attachment
type DownloadLink struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// AttachmentService stores document attachments in object storage
type AttachmentService struct {
	documents billing.DocumentRepository
	storage   ObjectStorage
	config    AttachmentServiceConfig
	logger    *zap.Logger
}

// NewAttachmentService creates a new AttachmentService
func NewAttachmentService(documents billing.DocumentRepository, storage ObjectStorage, config AttachmentServiceConfig, logger *zap.Logger) *AttachmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttachmentService{
		documents: documents,
		storage:   storage,
		config:    config,
		logger:    logger,
	}
}

// Upload stores a file and links it to the document
func (s *AttachmentService) Upload(ctx context.Context, documentID uuid.UUID, in UploadAttachmentInput) (*AttachmentResponse, error) {
	name := sanitizeFileName(in.Name)
	if name == "" {
		return nil, shared.NewDomainError(shared.CodeValidation, "File name is required")
	}
	if in.Size <= 0 {
		return nil, shared.NewDomainError(shared.CodeValidation, "File is empty")
	}
	if s.config.MaxFileSize > 0 && in.Size > s.config.MaxFileSize {
		return nil, shared.NewDomainError(shared.CodeValidation,
			fmt.Sprintf("File exceeds the %d byte limit", s.config.MaxFileSize))
	}
	contentType := strings.ToLower(strings.TrimSpace(strings.Split(in.ContentType, ";")[0]))
	if len(s.config.AllowedContentTypes) > 0 && !s.config.AllowedContentTypes[contentType] {
		return nil, shared.NewDomainError(shared.CodeValidation,
			fmt.Sprintf("Content type %q is not allowed", in.ContentType))
	}

	doc, err := s.documents.FindByID(ctx, documentID)
	if err != nil {
		return nil, err
	}

	attachment := billing.Attachment{
		ID:          uuid.New(),
		Name:        name,
		ContentType: contentType,
		Size:        in.Size,
		Kind:        in.Kind,
		UploadedBy:  in.UploadedBy,
		UploadedAt:  time.Now(),
	}
	attachment.ObjectKey = ObjectKey(doc.ID, attachment.ID, name)

	if err := doc.AddAttachment(attachment); err != nil {
		return nil, err
	}
	stored := doc.Attachments[len(doc.Attachments)-1]

	if err := s.storage.Put(ctx, stored.ObjectKey, in.Body, in.Size, contentType); err != nil {
		return nil, shared.WrapDomainError(shared.CodePersistence, "Failed to store attachment", err)
	}
	if err := s.documents.AddAttachment(ctx, &stored); err != nil {
		if delErr := s.storage.DeleteObject(ctx, stored.ObjectKey); delErr != nil {
			s.logger.Warn("Failed to remove orphaned attachment object",
				zap.String("key", stored.ObjectKey), zap.Error(delErr))
		}
		return nil, err
	}

	s.logger.Info("Attachment uploaded",
		zap.String("document", doc.Number),
		zap.String("attachment_id", stored.ID.String()),
		zap.Int64("size", stored.Size))

	return &AttachmentResponse{
		ID:          stored.ID,
		Name:        stored.Name,
		ContentType: stored.ContentType,
		Size:        stored.Size,
		Kind:        string(stored.Kind),
		UploadedAt:  stored.UploadedAt,
	}, nil
}

// DownloadURL returns a presigned URL for an attachment of the document
func (s *AttachmentService) DownloadURL(ctx context.Context, documentID, attachmentID uuid.UUID) (*DownloadLink, error) {
	doc, err := s.documents.FindByID(ctx, documentID)
	if err != nil {
		return nil, err
	}
	attachment, ok := doc.FindAttachment(attachmentID)
	if !ok {
		return nil, shared.NewDomainError(shared.CodeNotFound, "Attachment not found")
	}

	url, expiresAt, err := s.storage.GenerateDownloadURL(ctx, attachment.ObjectKey, s.config.DownloadURLExpiry)
	if err != nil {
		return nil, shared.WrapDomainError(shared.CodePersistence, "Failed to create download link", err)
	}
	return &DownloadLink{URL: url, ExpiresAt: expiresAt}, nil
}

// PurgeObjects deletes stored objects whose rows are already gone.
// Failures leave an orphan object and are only logged.
func (s *AttachmentService) PurgeObjects(ctx context.Context, objectKeys []string) {
	for _, key := range objectKeys {
		if err := s.storage.DeleteObject(ctx, key); err != nil {
			s.logger.Warn("Failed to remove attachment object", zap.String("key", key), zap.Error(err))
		}
	}
}

// ObjectKey builds the storage key of an attachment
func ObjectKey(documentID, attachmentID uuid.UUID, name string) string {
	return path.Join("documents", documentID.String(), attachmentID.String(), name)
}

func sanitizeFileName(name string) string {
	name = strings.TrimSpace(path.Base(strings.ReplaceAll(name, "\\", "/")))
	if name == "." || name == "/" {
		return ""
	}
	return strings.Map(func(r rune) rune {
		if r < 0x20 || r == '"' {
			return -1
		}
		return r
	}, name)
}
