package file

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/dept-site-api/internal/application/authz"
	"github.com/dept-site-api/internal/domain"
	s3infra "github.com/dept-site-api/internal/infrastructure/s3"
	"github.com/dept-site-api/internal/pkg/id"
)

type UploadInput struct {
	Reader      io.Reader
	Filename    string
	ContentType string
	Size        int64
	IsPrivate   bool
}

type Service interface {
	Upload(ctx context.Context, actor domain.Actor, input UploadInput) (*domain.File, error)
	Get(ctx context.Context, actor domain.Actor, fileID string) (*domain.File, error)
	ListMine(ctx context.Context, actor domain.Actor) ([]domain.File, error)
	Download(ctx context.Context, actor domain.Actor, fileID string) (io.ReadCloser, *domain.File, error)
	Delete(ctx context.Context, actor domain.Actor, fileID string) error
}

type objectStore interface {
	Upload(ctx context.Context, key string, r io.Reader, contentType string) error
	Download(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

type fileStore interface {
	Put(ctx context.Context, f *domain.File) error
	Get(ctx context.Context, fileID string) (*domain.File, error)
	SoftDelete(ctx context.Context, fileID string) error
	ListByUploader(ctx context.Context, accountID string) ([]domain.File, error)
}

type service struct {
	objects objectStore
	files   fileStore
	authz   *authz.Authorizer
}

func NewService(objects objectStore, files fileStore, authorizer *authz.Authorizer) Service {
	return &service{objects: objects, files: files, authz: authorizer}
}

func (s *service) Upload(ctx context.Context, actor domain.Actor, input UploadInput) (*domain.File, error) {
	if input.Reader == nil {
		return nil, fmt.Errorf("file body required: %w", domain.ErrBadRequest)
	}
	name := sanitizeFilename(input.Filename)
	contentType := input.ContentType
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = s3infra.ContentType(name)
	}
	fileID := id.New()
	key := s3infra.ObjectKey(actor.AccountID, fileID, name)

	hasher := sha256.New()
	counter := &countingReader{r: io.TeeReader(input.Reader, hasher)}
	if err := s.objects.Upload(ctx, key, counter, contentType); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	f := &domain.File{
		FileID:              fileID,
		Object:              key,
		Size:                counter.n,
		Type:                contentType,
		Name:                name,
		Hash:                hex.EncodeToString(hasher.Sum(nil)),
		IsPrivate:           input.IsPrivate,
		UploadedByAccountID: actor.AccountID,
		Enable:              true,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := s.files.Put(ctx, f); err != nil {
		if derr := s.objects.Delete(ctx, key); derr != nil {
			slog.Warn("orphaned upload", "key", key, "err", derr)
		}
		return nil, err
	}
	return f, nil
}

// Get returns metadata. Private files are visible to their owner and to
// elevated roles only.
func (s *service) Get(ctx context.Context, actor domain.Actor, fileID string) (*domain.File, error) {
	f, err := s.files.Get(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if !f.Enable {
		return nil, fmt.Errorf("file not found: %w", domain.ErrNotFound)
	}
	if f.IsPrivate && !s.authz.CanManageOwnedResource(actor.Role, actor.AccountID, f.UploadedByAccountID) {
		return nil, fmt.Errorf("access denied: %w", domain.ErrForbidden)
	}
	return f, nil
}

func (s *service) ListMine(ctx context.Context, actor domain.Actor) ([]domain.File, error) {
	return s.files.ListByUploader(ctx, actor.AccountID)
}

func (s *service) Download(ctx context.Context, actor domain.Actor, fileID string) (io.ReadCloser, *domain.File, error) {
	f, err := s.Get(ctx, actor, fileID)
	if err != nil {
		return nil, nil, err
	}
	rc, err := s.objects.Download(ctx, f.Object)
	if err != nil {
		return nil, nil, err
	}
	return rc, f, nil
}

func (s *service) Delete(ctx context.Context, actor domain.Actor, fileID string) error {
	f, err := s.files.Get(ctx, fileID)
	if err != nil {
		return err
	}
	if !f.Enable {
		return fmt.Errorf("file not found: %w", domain.ErrNotFound)
	}
	if !s.authz.CanManageOwnedResource(actor.Role, actor.AccountID, f.UploadedByAccountID) {
		return fmt.Errorf("access denied: %w", domain.ErrForbidden)
	}
	if err := s.files.SoftDelete(ctx, fileID); err != nil {
		return err
	}
	if err := s.objects.Delete(ctx, f.Object); err != nil {
		slog.Warn("object not removed after soft delete", "file_id", fileID, "key", f.Object, "err", err)
	}
	return nil
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// sanitizeFilename strips directory components and replaces anything outside
// [A-Za-z0-9._-] so the name is safe to echo back and to use as an extension source.
func sanitizeFilename(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	var b strings.Builder
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') || r == '.' || r == '-' || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	if result := b.String(); result != "" && result != "." && result != ".." {
		return result
	}
	return "_"
}
