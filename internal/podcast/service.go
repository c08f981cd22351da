// Package podcast implements podcast creation, discovery, view counting and
// deletion on top of a Store, a blob store and a rate limiter.
package podcast

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"podcastr/internal/auth"
	"podcastr/internal/blob"
	"podcastr/internal/metrics"
	"podcastr/internal/models"
	"podcastr/internal/quota"
	"podcastr/internal/ratelimit"
	"podcastr/pkg/tasks"
)

const (
	DefaultVoice  = "alloy"
	TrendingLimit = 8
	SearchLimit   = 10
)

type Options struct {
	// DefaultVoice replaces the requested voice for non-subscribers.
	DefaultVoice string
	Period       quota.Period
}

type Service struct {
	store        Store
	blobs        blob.Store
	limiter      ratelimit.Limiter
	enqueuer     tasks.TaskEnqueuer
	period       quota.Period
	defaultVoice string
	now          func() time.Time
}

func NewService(store Store, blobs blob.Store, limiter ratelimit.Limiter, enqueuer tasks.TaskEnqueuer, opts Options) *Service {
	s := &Service{
		store:        store,
		blobs:        blobs,
		limiter:      limiter,
		enqueuer:     enqueuer,
		period:       opts.Period,
		defaultVoice: opts.DefaultVoice,
		now:          time.Now,
	}
	if s.period == nil {
		s.period = quota.Lifetime{}
	}
	if s.defaultVoice == "" {
		s.defaultVoice = DefaultVoice
	}
	return s
}

// CreateInput holds the caller-supplied podcast fields.
type CreateInput struct {
	Title          string  `json:"podcastTitle"`
	Description    string  `json:"podcastDescription"`
	AudioURL       string  `json:"audioUrl"`
	AudioStorageID string  `json:"audioStorageId"`
	ImageURL       string  `json:"imageUrl"`
	ImageStorageID string  `json:"imageStorageId"`
	VoicePrompt    string  `json:"voicePrompt"`
	ImagePrompt    string  `json:"imagePrompt"`
	VoiceType      string  `json:"voiceType"`
	AudioDuration  float64 `json:"audioDuration"`
}

func (in CreateInput) validate() error {
	if strings.TrimSpace(in.Title) == "" {
		return invalid("podcast title is required")
	}
	if in.AudioStorageID == "" || in.ImageStorageID == "" {
		return invalid("audio and image storage ids are required")
	}
	if in.AudioStorageID == in.ImageStorageID {
		return invalid("audio and image must be different blobs")
	}
	if in.AudioDuration < 0 {
		return invalid("audio duration must be >= 0")
	}
	return nil
}

// CreateResult is the stored podcast. VoiceDowngraded is set when the
// requested voice was replaced because the author has no active subscription.
type CreateResult struct {
	Podcast         models.Podcast
	VoiceDowngraded bool
}

// Create publishes a podcast for the authenticated caller, subject to the
// caller's plan quota.
func (s *Service) Create(ctx context.Context, in CreateInput) (CreateResult, error) {
	id := auth.FromContext(ctx)
	if id == nil {
		return CreateResult{}, ErrUnauthenticated
	}

	user, err := s.store.GetUserByEmail(ctx, strings.ToLower(id.Email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return CreateResult{}, ErrNotFound
		}
		return CreateResult{}, opFailed("get user", err)
	}

	if err := in.validate(); err != nil {
		return CreateResult{}, err
	}
	for _, ref := range []string{in.AudioStorageID, in.ImageStorageID} {
		if err := s.checkBlob(ctx, ref); err != nil {
			return CreateResult{}, err
		}
	}

	now := s.now()
	voice, downgraded := s.resolveVoice(user, in.VoiceType, now)

	plan := quota.ParsePlan(user.PlanName())
	periodStart := s.period.Start(now)
	decision := quota.Evaluate(plan, user.UsageAt(periodStart))
	if !decision.Allowed {
		metrics.QuotaDenials.WithLabelValues(plan.String()).Inc()
		log.Info().Str("email", user.Email).Str("plan", plan.String()).Int("used", decision.Used).Msg("podcast quota exceeded")
		return CreateResult{}, decision.Err()
	}

	p := models.Podcast{
		ID:             uuid.New(),
		UserID:         user.ID,
		Title:          strings.TrimSpace(in.Title),
		Description:    in.Description,
		AudioURL:       in.AudioURL,
		AudioStorageID: in.AudioStorageID,
		ImageURL:       in.ImageURL,
		ImageStorageID: in.ImageStorageID,
		Author:         user.Name,
		AuthorID:       user.ExternalID,
		AuthorImageURL: user.ImageURL,
		VoicePrompt:    in.VoicePrompt,
		ImagePrompt:    in.ImagePrompt,
		VoiceType:      voice,
		AudioDuration:  in.AudioDuration,
		CreatedAt:      now.UTC(),
	}

	guard := quota.Guard{Ceiling: plan.Ceiling(), PeriodStart: periodStart}
	if err := s.store.CreatePodcast(ctx, &p, guard); err != nil {
		if errors.Is(err, quota.ErrExceeded) {
			metrics.QuotaDenials.WithLabelValues(plan.String()).Inc()
			return CreateResult{}, err
		}
		if errors.Is(err, blob.ErrInUse) {
			return CreateResult{}, invalid("%v", err)
		}
		return CreateResult{}, opFailed("create podcast", err)
	}

	metrics.PodcastsCreated.WithLabelValues(plan.String()).Inc()
	if downgraded {
		metrics.VoiceDowngrades.Inc()
	}
	log.Info().Str("podcast_id", p.ID.String()).Str("author_id", p.AuthorID).Bool("voice_downgraded", downgraded).Msg("podcast created")

	return CreateResult{Podcast: p, VoiceDowngraded: downgraded}, nil
}

// checkBlob requires ref to name an uploaded blob.
func (s *Service) checkBlob(ctx context.Context, ref string) error {
	if _, err := s.blobs.URL(ctx, ref); err != nil {
		if errors.Is(err, blob.ErrInvalidRef) || errors.Is(err, blob.ErrNotFound) {
			return invalid("%v", err)
		}
		return opFailed("check blob", err)
	}
	return nil
}

func (s *Service) resolveVoice(user models.User, requested string, now time.Time) (string, bool) {
	if requested == "" {
		return s.defaultVoice, false
	}
	if user.IsSubscribed(now) {
		return requested, false
	}
	return s.defaultVoice, requested != s.defaultVoice
}

// Get returns one podcast. Malformed ids are reported as ErrNotFound.
func (s *Service) Get(ctx context.Context, rawID string) (models.Podcast, error) {
	id, err := uuid.Parse(rawID)
	if err != nil {
		return models.Podcast{}, ErrNotFound
	}
	return s.get(ctx, id)
}

func (s *Service) get(ctx context.Context, id uuid.UUID) (models.Podcast, error) {
	p, err := s.store.GetPodcast(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Podcast{}, ErrNotFound
		}
		return models.Podcast{}, opFailed("get podcast", err)
	}
	return p, nil
}

// ListAll returns every podcast, newest first.
func (s *Service) ListAll(ctx context.Context) ([]models.Podcast, error) {
	ps, err := s.store.ListPodcasts(ctx)
	if err != nil {
		return nil, opFailed("list podcasts", err)
	}
	return ps, nil
}

// ListTrending returns the most viewed podcasts. Ties keep insertion order.
func (s *Service) ListTrending(ctx context.Context) ([]models.Podcast, error) {
	ps, err := s.store.ListTrending(ctx, TrendingLimit)
	if err != nil {
		return nil, opFailed("list trending", err)
	}
	return ps, nil
}

// ListByVoiceType returns the other podcasts sharing the subject's voice type.
func (s *Service) ListByVoiceType(ctx context.Context, rawID string) ([]models.Podcast, error) {
	subject, err := s.Get(ctx, rawID)
	if err != nil {
		return nil, err
	}
	ps, err := s.store.ListByVoiceType(ctx, subject.VoiceType, subject.ID)
	if err != nil {
		return nil, opFailed("list by voice type", err)
	}
	return ps, nil
}

// ListByAuthor returns an author's podcasts and the sum of their views.
func (s *Service) ListByAuthor(ctx context.Context, authorID string) (models.AuthorPodcasts, error) {
	ps, err := s.store.ListByAuthor(ctx, authorID)
	if err != nil {
		return models.AuthorPodcasts{}, opFailed("list by author", err)
	}
	out := models.AuthorPodcasts{AuthorID: authorID, Podcasts: ps}
	for _, p := range ps {
		out.Listeners += p.Views
	}
	return out, nil
}

// Search consults the author, title and description indexes in that order and
// returns the first non-empty result. An empty term lists everything.
func (s *Service) Search(ctx context.Context, term string) ([]models.Podcast, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return s.ListAll(ctx)
	}

	for _, index := range models.SearchTiers {
		ps, err := s.store.Search(ctx, index, term, SearchLimit)
		if err != nil {
			return nil, opFailed("search "+string(index), err)
		}
		if len(ps) > 0 {
			return ps, nil
		}
	}
	return []models.Podcast{}, nil
}

type ViewOutcome int

const (
	ViewCounted ViewOutcome = iota
	// ViewSkipped means the rate limiter withheld the increment.
	ViewSkipped
)

func (o ViewOutcome) String() string {
	if o == ViewSkipped {
		return "skipped"
	}
	return "counted"
}

type ViewResult struct {
	Outcome ViewOutcome
	// Views is the new count; only set for ViewCounted.
	Views int64
}

// IncrementViews adds one view unless the per-podcast limiter denies it, in
// which case nothing changes and the result is ViewSkipped.
func (s *Service) IncrementViews(ctx context.Context, rawID string) (ViewResult, error) {
	p, err := s.Get(ctx, rawID)
	if err != nil {
		return ViewResult{}, err
	}

	key := p.ID.String()
	res, err := s.limiter.TryAcquire(ctx, ratelimit.IncrementPodcastViews, key)
	switch {
	case err != nil:
		metrics.RecordRateLimit(ratelimit.IncrementPodcastViews, "error")
		log.Warn().Err(err).Str("podcast_id", key).Msg("view rate limiter unavailable, skipping increment")
		return s.skipped(), nil
	case !res.OK:
		metrics.RecordRateLimit(ratelimit.IncrementPodcastViews, "denied")
		return s.skipped(), nil
	}
	metrics.RecordRateLimit(ratelimit.IncrementPodcastViews, "allowed")

	views, err := s.store.IncrementViews(ctx, p.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ViewResult{}, ErrNotFound
		}
		return ViewResult{}, opFailed("increment views", err)
	}
	metrics.ViewIncrements.WithLabelValues(ViewCounted.String()).Inc()
	return ViewResult{Outcome: ViewCounted, Views: views}, nil
}

func (s *Service) skipped() ViewResult {
	metrics.ViewIncrements.WithLabelValues(ViewSkipped.String()).Inc()
	return ViewResult{Outcome: ViewSkipped}
}
