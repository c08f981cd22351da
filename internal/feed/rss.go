// Package feed renders an author's podcasts as an iTunes-compatible RSS feed.
package feed

import (
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/eduncan911/podcast"

	"podcastr/internal/models"
)

var ErrEmptyFeed = errors.New("author has no podcasts")

func enclosureType(storageID string) podcast.EnclosureType {
	switch strings.ToLower(path.Ext(storageID)) {
	case ".m4a":
		return podcast.M4A
	case ".mp4":
		return podcast.MP4
	default:
		return podcast.MP3
	}
}

// GenerateRSS builds the feed for one author. Podcasts keep the order given.
func GenerateRSS(author models.AuthorPodcasts, baseURL string) (string, error) {
	if len(author.Podcasts) == 0 {
		return "", ErrEmptyFeed
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	first := author.Podcasts[0]
	name := first.Author
	if name == "" {
		name = author.AuthorID
	}

	var lastBuild time.Time
	for _, p := range author.Podcasts {
		if p.CreatedAt.After(lastBuild) {
			lastBuild = p.CreatedAt
		}
	}
	pubDate := first.CreatedAt

	p := podcast.New(
		fmt.Sprintf("%s's Podcasts", name),
		fmt.Sprintf("%s/api/authors/%s/podcasts", baseURL, author.AuthorID),
		fmt.Sprintf("AI-generated podcasts by %s.", name),
		&pubDate, &lastBuild,
	)
	p.IAuthor = name
	if first.AuthorImageURL != "" {
		p.AddImage(first.AuthorImageURL)
	}

	for _, ep := range author.Podcasts {
		description := ep.Description
		if strings.TrimSpace(description) == "" {
			description = ep.Title
		}
		createdAt := ep.CreatedAt
		item := podcast.Item{
			GUID:        ep.ID.String(),
			Title:       ep.Title,
			Link:        fmt.Sprintf("%s/api/podcasts/%s", baseURL, ep.ID),
			Description: description,
		}
		item.AddPubDate(&createdAt)
		item.AddEnclosure(ep.AudioURL, enclosureType(ep.AudioStorageID), 0)
		item.AddDuration(int64(ep.AudioDuration))
		if ep.ImageURL != "" {
			item.AddImage(ep.ImageURL)
		}
		if _, err := p.AddItem(item); err != nil {
			return "", fmt.Errorf("failed to add podcast %s to feed: %w", ep.ID, err)
		}
	}

	return p.String(), nil
}
