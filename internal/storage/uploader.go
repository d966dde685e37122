package storage

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/skumar-dev/portfolio-chat-backend/internal/domain"
)

// File is the raw input to an upload: a name, declared size and MIME type,
// and the byte content. It matches what a multipart form part provides.
type File struct {
	Name        string
	Size        int64
	ContentType string
	Content     io.Reader
}

// Uploader writes files to a BlobStore and returns fully populated
// ChatAttachment descriptors. It owns key generation and MIME
// classification; persistence of the owning message stays with the caller.
type Uploader struct {
	Store BlobStore
}

// Upload writes one file and returns its descriptor. On any store failure
// the error propagates and the caller must not persist a message referencing
// the attachment.
func (u *Uploader) Upload(ctx context.Context, f File) (domain.ChatAttachment, error) {
	if f.Content == nil {
		return domain.ChatAttachment{}, fmt.Errorf("storage: nil file content for %q", f.Name)
	}
	key := attachmentKey(time.Now().UTC(), f.Name)
	url, err := u.Store.Put(ctx, key, f.ContentType, f.Content)
	if err != nil {
		return domain.ChatAttachment{}, err
	}
	return domain.ChatAttachment{
		Name: f.Name,
		URL:  url,
		Type: ClassifyMIME(f.ContentType),
		Size: f.Size,
	}, nil
}

// UploadAll uploads files in input order, aborting on the first failure so a
// message never references a partial attachment set.
func (u *Uploader) UploadAll(ctx context.Context, files []File) ([]domain.ChatAttachment, error) {
	if len(files) == 0 {
		return nil, nil
	}
	out := make([]domain.ChatAttachment, 0, len(files))
	for _, f := range files {
		att, err := u.Upload(ctx, f)
		if err != nil {
			return nil, err
		}
		out = append(out, att)
	}
	return out, nil
}

// ClassifyMIME maps a MIME type to the stored attachment classification:
// any image/* subtype is "image", application/pdf is "pdf", everything else
// (including an empty or malformed type) is "other". Parameters such as
// "; charset=utf-8" are ignored.
func ClassifyMIME(contentType string) string {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	switch {
	case strings.HasPrefix(ct, "image/"):
		return domain.AttachmentImage
	case ct == "application/pdf":
		return domain.AttachmentPDF
	default:
		return domain.AttachmentOther
	}
}

// unsafeKeyRE matches everything we strip from original filenames when
// building object keys.
var unsafeKeyRE = regexp.MustCompile(`[^A-Za-z0-9._\-]+`)

// attachmentKey builds a unique object key from the upload time and the
// original filename. The random component makes keys collision-free even
// for same-millisecond uploads of equally named files; the timestamp and
// name are kept for operator-friendly bucket listings.
func attachmentKey(now time.Time, name string) string {
	base := unsafeKeyRE.ReplaceAllString(name, "_")
	base = strings.Trim(base, "._")
	if base == "" {
		base = "file"
	}
	const maxNameLen = 120
	if len(base) > maxNameLen {
		base = base[len(base)-maxNameLen:]
	}
	return fmt.Sprintf("%d_%s_%s", now.UnixMilli(), uuid.NewString()[:8], base)
}
