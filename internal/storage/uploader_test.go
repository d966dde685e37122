package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/skumar-dev/portfolio-chat-backend/internal/domain"
)

// fakeStore records puts and can be told to fail after n successes.
type fakeStore struct {
	keys      []string
	failPut   bool
	failAfter int
}

func (f *fakeStore) Put(_ context.Context, key, _ string, r io.Reader) (string, error) {
	if f.failPut && len(f.keys) >= f.failAfter {
		return "", errors.New("boom")
	}
	if _, err := io.Copy(io.Discard, r); err != nil {
		return "", err
	}
	f.keys = append(f.keys, key)
	return "https://cdn.example.com/" + key, nil
}

func TestClassifyMIME(t *testing.T) {
	cases := []struct {
		ct   string
		want string
	}{
		{"image/png", domain.AttachmentImage},
		{"image/jpeg", domain.AttachmentImage},
		{"IMAGE/PNG", domain.AttachmentImage},
		{"image/png; charset=binary", domain.AttachmentImage},
		{"application/pdf", domain.AttachmentPDF},
		{"application/pdf; name=cv.pdf", domain.AttachmentPDF},
		{"text/plain", domain.AttachmentOther},
		{"application/zip", domain.AttachmentOther},
		{"", domain.AttachmentOther},
		{"garbage", domain.AttachmentOther},
	}
	for _, c := range cases {
		if got := ClassifyMIME(c.ct); got != c.want {
			t.Errorf("ClassifyMIME(%q) = %q, want %q", c.ct, got, c.want)
		}
	}
}

func TestUpload_PopulatesDescriptor(t *testing.T) {
	fs := &fakeStore{}
	u := &Uploader{Store: fs}

	att, err := u.Upload(context.Background(), File{
		Name:        "résumé final.pdf",
		Size:        1234,
		ContentType: "application/pdf",
		Content:     strings.NewReader("%PDF-"),
	})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if att.Name != "résumé final.pdf" || att.Size != 1234 || att.Type != domain.AttachmentPDF {
		t.Fatalf("unexpected attachment: %+v", att)
	}
	if !strings.HasPrefix(att.URL, "https://cdn.example.com/") {
		t.Fatalf("URL not derived from store: %q", att.URL)
	}
	if len(fs.keys) != 1 {
		t.Fatalf("expected 1 put, got %d", len(fs.keys))
	}
	// Sanitized key: no spaces, no non-ASCII.
	if strings.ContainsAny(fs.keys[0], " /\\é") {
		t.Fatalf("key not sanitized: %q", fs.keys[0])
	}
}

func TestUpload_NilContent(t *testing.T) {
	u := &Uploader{Store: &fakeStore{}}
	if _, err := u.Upload(context.Background(), File{Name: "a.txt"}); err == nil {
		t.Fatal("expected error for nil content")
	}
}

func TestUploadAll_AbortsOnFirstFailure(t *testing.T) {
	fs := &fakeStore{failPut: true, failAfter: 1}
	u := &Uploader{Store: fs}

	files := []File{
		{Name: "a.png", ContentType: "image/png", Content: strings.NewReader("a")},
		{Name: "b.png", ContentType: "image/png", Content: strings.NewReader("b")},
		{Name: "c.png", ContentType: "image/png", Content: strings.NewReader("c")},
	}
	atts, err := u.UploadAll(context.Background(), files)
	if err == nil {
		t.Fatal("expected failure")
	}
	if atts != nil {
		t.Fatalf("expected no attachments on failure, got %v", atts)
	}
	if len(fs.keys) != 1 {
		t.Fatalf("expected upload to stop after first failure, %d puts", len(fs.keys))
	}
}

func TestUploadAll_Empty(t *testing.T) {
	u := &Uploader{Store: &fakeStore{}}
	atts, err := u.UploadAll(context.Background(), nil)
	if err != nil || atts != nil {
		t.Fatalf("UploadAll(nil) = %v, %v", atts, err)
	}
}

func TestAttachmentKey_UniqueForSameInstant(t *testing.T) {
	now := time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC)
	a := attachmentKey(now, "photo.png")
	b := attachmentKey(now, "photo.png")
	if a == b {
		t.Fatalf("same-millisecond keys collide: %q", a)
	}
	if !strings.HasSuffix(a, "_photo.png") {
		t.Fatalf("original name lost from key: %q", a)
	}
}

func TestAttachmentKey_SanitizesAndCaps(t *testing.T) {
	now := time.Now()
	key := attachmentKey(now, "../../etc/passwd")
	if strings.ContainsAny(key, `/\`) {
		t.Fatalf("path separators survived: %q", key)
	}
	long := strings.Repeat("x", 500) + ".bin"
	key = attachmentKey(now, long)
	if len(key) > 200 {
		t.Fatalf("key not capped: %d bytes", len(key))
	}
	if key = attachmentKey(now, "###"); !strings.HasSuffix(key, "_file") {
		t.Fatalf("fully-stripped name should fall back to 'file': %q", key)
	}
}
