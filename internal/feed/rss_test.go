package feed

import (
	"strings"
	"testing"
	"time"

	"github.com/eduncan911/podcast"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"podcastr/internal/models"
)

func TestGenerateRSS(t *testing.T) {
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	p1 := models.Podcast{
		ID:             uuid.New(),
		Title:          "First Light",
		Description:    "Morning thoughts",
		AudioURL:       "https://cdn.example.com/files/a1.mp3",
		AudioStorageID: "a1.mp3",
		ImageURL:       "https://cdn.example.com/files/i1.png",
		Author:         "Ada",
		AuthorID:       "user_ada",
		AuthorImageURL: "https://cdn.example.com/ada.png",
		AudioDuration:  125.7,
		CreatedAt:      created,
	}
	p2 := models.Podcast{
		ID:             uuid.New(),
		Title:          "Untitled Notes",
		AudioURL:       "https://cdn.example.com/files/a2.m4a",
		AudioStorageID: "a2.m4a",
		Author:         "Ada",
		AuthorID:       "user_ada",
		CreatedAt:      created.Add(time.Hour),
	}

	rss, err := GenerateRSS(models.AuthorPodcasts{AuthorID: "user_ada", Podcasts: []models.Podcast{p1, p2}}, "https://podcastr.example.com/")
	require.NoError(t, err)

	assert.Contains(t, rss, "<title>Ada&#39;s Podcasts</title>")
	assert.Contains(t, rss, "https://podcastr.example.com/api/authors/user_ada/podcasts")
	assert.Contains(t, rss, "https://podcastr.example.com/api/podcasts/"+p1.ID.String())
	assert.Contains(t, rss, `url="https://cdn.example.com/files/a1.mp3"`)
	assert.Contains(t, rss, `type="audio/mpeg"`)
	assert.Contains(t, rss, `type="audio/x-m4a"`)
	assert.Contains(t, rss, "2:05")
	// Empty descriptions fall back to the title.
	assert.GreaterOrEqual(t, strings.Count(rss, "Untitled Notes"), 2)
}

func TestGenerateRSSEmpty(t *testing.T) {
	_, err := GenerateRSS(models.AuthorPodcasts{AuthorID: "nobody"}, "https://podcastr.example.com")
	assert.ErrorIs(t, err, ErrEmptyFeed)
}

func TestEnclosureType(t *testing.T) {
	assert.Equal(t, podcast.MP3, enclosureType("x.mp3"))
	assert.Equal(t, podcast.M4A, enclosureType("x.M4A"))
	assert.Equal(t, podcast.MP4, enclosureType("x.mp4"))
	assert.Equal(t, podcast.MP3, enclosureType("x.wav"))
}
