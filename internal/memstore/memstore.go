// Package memstore is an in-process podcast store for local development and
// tests. It honours the same ordering, search and quota semantics as the
// Postgres store.
package memstore

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/google/uuid"

	"podcastr/internal/blob"
	"podcastr/internal/models"
	"podcastr/internal/quota"
)

type Store struct {
	mu       sync.Mutex
	seq      int64
	userSeq  int64
	users    map[int64]models.User
	podcasts map[uuid.UUID]models.Podcast
	refs     map[string]uuid.UUID
	pending  map[string]models.BlobDeletion
	now      func() time.Time
}

func New() *Store {
	return &Store{
		users:    map[int64]models.User{},
		podcasts: map[uuid.UUID]models.Podcast{},
		refs:     map[string]uuid.UUID{},
		pending:  map[string]models.BlobDeletion{},
		now:      time.Now,
	}
}

// PutUser stores u as-is, assigning an id when it has none.
func (s *Store) PutUser(u models.User) models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == 0 {
		s.userSeq++
		u.ID = s.userSeq
	}
	if u.QuotaPeriodStart.IsZero() {
		u.QuotaPeriodStart = time.Unix(0, 0).UTC()
	}
	s.users[u.ID] = u
	return u
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return models.User{}, sql.ErrNoRows
}

func (s *Store) UpsertUser(ctx context.Context, in models.UserSync) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	var u models.User
	for _, existing := range s.users {
		if strings.EqualFold(existing.Email, in.Email) {
			u = existing
			break
		}
	}
	if u.ID == 0 {
		s.userSeq++
		u = models.User{ID: s.userSeq, Email: in.Email, QuotaPeriodStart: time.Unix(0, 0).UTC(), CreatedAt: now}
	}
	u.Name = in.Name
	u.ImageURL = in.ImageURL
	u.ExternalID = in.ExternalID
	u.SubscriptionID = in.SubscriptionID
	u.SubscriptionEndsAt = in.SubscriptionEndsAt()
	u.Plan = in.Plan
	u.UpdatedAt = now
	s.users[u.ID] = u
	return u, nil
}

func (s *Store) CreatePodcast(ctx context.Context, p *models.Podcast, guard quota.Guard) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[p.UserID]
	if !ok {
		return sql.ErrNoRows
	}
	refs := claimable(p.StorageIDs())
	for _, ref := range refs {
		if _, taken := s.refs[ref]; taken {
			return fmt.Errorf("%w: %s", blob.ErrInUse, ref)
		}
		if _, doomed := s.pending[ref]; doomed {
			return fmt.Errorf("%w: %s", blob.ErrInUse, ref)
		}
	}
	if len(refs) == 2 && refs[0] == refs[1] {
		return fmt.Errorf("%w: %s", blob.ErrInUse, refs[0])
	}
	switch {
	case u.QuotaPeriodStart.Before(guard.PeriodStart):
		u.TotalPodcasts = 1
		u.QuotaPeriodStart = guard.PeriodStart
	case u.TotalPodcasts < guard.Ceiling:
		u.TotalPodcasts++
	default:
		return quota.ErrExceeded
	}
	s.users[u.ID] = u

	s.seq++
	p.Seq = s.seq
	p.Views = 0
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now().UTC()
	}
	s.podcasts[p.ID] = *p
	for _, ref := range refs {
		s.refs[ref] = p.ID
	}
	return nil
}

func claimable(refs []string) []string {
	out := make([]string, 0, len(refs))
	for _, ref := range refs {
		if ref != "" {
			out = append(out, ref)
		}
	}
	return out
}

func (s *Store) GetPodcast(ctx context.Context, id uuid.UUID) (models.Podcast, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.podcasts[id]
	if !ok {
		return models.Podcast{}, sql.ErrNoRows
	}
	return p, nil
}

// filter returns matching podcasts, newest first. Callers hold s.mu.
func (s *Store) filter(keep func(models.Podcast) bool) []models.Podcast {
	out := []models.Podcast{}
	for _, p := range s.podcasts {
		if keep(p) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq > out[j].Seq })
	return out
}

func all(models.Podcast) bool { return true }

func (s *Store) ListPodcasts(ctx context.Context) ([]models.Podcast, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filter(all), nil
}

func (s *Store) ListTrending(ctx context.Context, limit int) ([]models.Podcast, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.filter(all)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Views != out[j].Views {
			return out[i].Views > out[j].Views
		}
		return out[i].Seq < out[j].Seq
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) ListByVoiceType(ctx context.Context, voiceType string, exclude uuid.UUID) ([]models.Podcast, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filter(func(p models.Podcast) bool {
		return p.VoiceType == voiceType && p.ID != exclude
	}), nil
}

func (s *Store) ListByAuthor(ctx context.Context, authorID string) ([]models.Podcast, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.filter(func(p models.Podcast) bool { return p.AuthorID == authorID })
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out, nil
}

// Search matches when every term token is a prefix of some word in the
// indexed field, case-insensitively.
func (s *Store) Search(ctx context.Context, index models.SearchIndex, term string, limit int) ([]models.Podcast, error) {
	tokens := words(term)
	if len(tokens) == 0 {
		return []models.Podcast{}, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.filter(func(p models.Podcast) bool {
		return matches(words(field(p, index)), tokens)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func field(p models.Podcast, index models.SearchIndex) string {
	switch index {
	case models.SearchAuthor:
		return p.Author
	case models.SearchTitle:
		return p.Title
	default:
		return p.Description
	}
}

func words(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func matches(fieldWords, tokens []string) bool {
	for _, tok := range tokens {
		found := false
		for _, w := range fieldWords {
			if strings.HasPrefix(w, tok) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func (s *Store) IncrementViews(ctx context.Context, id uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.podcasts[id]
	if !ok {
		return 0, sql.ErrNoRows
	}
	p.Views++
	s.podcasts[id] = p
	return p.Views, nil
}

func (s *Store) DeletePodcast(ctx context.Context, id uuid.UUID, storageIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.podcasts[id]; !ok {
		return sql.ErrNoRows
	}
	delete(s.podcasts, id)
	for ref, owner := range s.refs {
		if owner == id {
			delete(s.refs, ref)
		}
	}
	now := s.now().UTC()
	for _, ref := range storageIDs {
		if _, ok := s.pending[ref]; ok {
			continue
		}
		s.pending[ref] = models.BlobDeletion{StorageID: ref, PodcastID: id, CreatedAt: now}
	}
	return nil
}

func (s *Store) CompleteBlobDeletion(ctx context.Context, storageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, storageID)
	return nil
}

func (s *Store) FailBlobDeletion(ctx context.Context, storageID string, cause string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.pending[storageID]
	if !ok {
		return nil
	}
	d.Attempts++
	d.LastError = &cause
	s.pending[storageID] = d
	return nil
}

func (s *Store) PendingBlobDeletions(ctx context.Context, olderThan time.Time, limit int) ([]models.BlobDeletion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.BlobDeletion{}
	for _, d := range s.pending {
		if d.CreatedAt.Before(olderThan) {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
