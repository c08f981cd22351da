package models

import (
	"time"

	"github.com/google/uuid"
)

// Podcast is one published audio item.
type Podcast struct {
	ID             uuid.UUID `db:"id" json:"id"`
	Seq            int64     `db:"seq" json:"-"`
	UserID         int64     `db:"user_id" json:"-"`
	Title          string    `db:"title" json:"podcastTitle"`
	Description    string    `db:"description" json:"podcastDescription"`
	AudioURL       string    `db:"audio_url" json:"audioUrl"`
	AudioStorageID string    `db:"audio_storage_id" json:"audioStorageId"`
	ImageURL       string    `db:"image_url" json:"imageUrl"`
	ImageStorageID string    `db:"image_storage_id" json:"imageStorageId"`
	Author         string    `db:"author" json:"author"`
	AuthorID       string    `db:"author_id" json:"authorId"`
	AuthorImageURL string    `db:"author_image_url" json:"authorImageUrl"`
	VoicePrompt    string    `db:"voice_prompt" json:"voicePrompt"`
	ImagePrompt    string    `db:"image_prompt" json:"imagePrompt"`
	VoiceType      string    `db:"voice_type" json:"voiceType"`
	Views          int64     `db:"views" json:"views"`
	AudioDuration  float64   `db:"audio_duration" json:"audioDuration"`
	CreatedAt      time.Time `db:"created_at" json:"createdAt"`
}

// StorageIDs returns the blob references owned by the podcast, image first.
func (p Podcast) StorageIDs() []string {
	return []string{p.ImageStorageID, p.AudioStorageID}
}

// AuthorPodcasts is an author's catalogue with their total listener count.
type AuthorPodcasts struct {
	AuthorID  string    `json:"authorId"`
	Podcasts  []Podcast `json:"podcasts"`
	Listeners int64     `json:"listeners"`
}

// SearchIndex names a searchable podcast field.
type SearchIndex string

const (
	SearchAuthor      SearchIndex = "author"
	SearchTitle       SearchIndex = "title"
	SearchDescription SearchIndex = "description"
)

// SearchTiers lists the indexes in the order they are consulted.
var SearchTiers = []SearchIndex{SearchAuthor, SearchTitle, SearchDescription}
