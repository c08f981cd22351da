package podcast

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"podcastr/internal/auth"
	"podcastr/internal/blob"
	"podcastr/internal/models"
	"podcastr/internal/quota"
)

// StoredBlob describes an uploaded file.
type StoredBlob struct {
	StorageID   string `json:"storageId"`
	URL         string `json:"url"`
	ContentType string `json:"contentType"`
}

const sniffLen = 3072

// UploadBlob stores an audio or image file for the authenticated caller and
// returns its storage id.
func (s *Service) UploadBlob(ctx context.Context, body io.Reader, size int64) (StoredBlob, error) {
	if auth.FromContext(ctx) == nil {
		return StoredBlob{}, ErrUnauthenticated
	}

	br := bufio.NewReaderSize(body, sniffLen)
	head, err := br.Peek(sniffLen)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return StoredBlob{}, opFailed("read upload", err)
	}
	if len(head) == 0 {
		return StoredBlob{}, invalid("empty upload")
	}

	mtype := mimetype.Detect(head)
	kind := strings.SplitN(mtype.String(), "/", 2)[0]
	if kind != "audio" && kind != "image" {
		return StoredBlob{}, invalid("unsupported content type %s", mtype.String())
	}

	ref := uuid.NewString() + mtype.Extension()
	if err := s.blobs.Put(ctx, ref, br, size, mtype.String()); err != nil {
		return StoredBlob{}, opFailed("store blob", err)
	}
	url, err := s.blobs.URL(ctx, ref)
	if err != nil {
		return StoredBlob{}, opFailed("blob url", err)
	}

	log.Info().Str("storage_id", ref).Str("content_type", mtype.String()).Msg("blob uploaded")
	return StoredBlob{StorageID: ref, URL: url, ContentType: mtype.String()}, nil
}

// BlobURL resolves a storage id to a fetchable URL.
func (s *Service) BlobURL(ctx context.Context, ref string) (string, error) {
	url, err := s.blobs.URL(ctx, ref)
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) || errors.Is(err, blob.ErrInvalidRef) {
			return "", ErrNotFound
		}
		return "", opFailed("blob url", err)
	}
	return url, nil
}

// SyncUser creates or updates a user from the identity provider or billing
// system. Usage counters are left untouched.
func (s *Service) SyncUser(ctx context.Context, in models.UserSync) (models.User, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if in.Email == "" {
		return models.User{}, invalid("email is required")
	}
	if in.Plan != nil {
		plan := quota.ParsePlan(*in.Plan).String()
		in.Plan = &plan
	}
	u, err := s.store.UpsertUser(ctx, in)
	if err != nil {
		return models.User{}, opFailed("upsert user", err)
	}
	log.Info().Str("email", u.Email).Str("plan", u.PlanName()).Msg("user synced")
	return u, nil
}
