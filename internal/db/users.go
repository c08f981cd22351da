package db

import (
	"context"

	"github.com/rs/zerolog/log"

	"podcastr/internal/models"
)

func (s *Store) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	user := models.User{}
	err := s.db.GetContext(ctx, &user, "SELECT * FROM users WHERE email = $1", email)
	return user, err
}

// UpsertUser inserts a new user or updates an existing one based on the email.
// Usage counters are never touched.
func (s *Store) UpsertUser(ctx context.Context, in models.UserSync) (models.User, error) {
	query := `
		INSERT INTO users (email, name, image_url, external_id, subscription_id, subscription_ends_at, plan)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (email) DO UPDATE SET
			name = EXCLUDED.name,
			image_url = EXCLUDED.image_url,
			external_id = EXCLUDED.external_id,
			subscription_id = EXCLUDED.subscription_id,
			subscription_ends_at = EXCLUDED.subscription_ends_at,
			plan = EXCLUDED.plan,
			updated_at = NOW()
		RETURNING *
	`
	user := models.User{}
	err := s.db.GetContext(ctx, &user, query,
		in.Email, in.Name, in.ImageURL, in.ExternalID, in.SubscriptionID, in.SubscriptionEndsAt(), in.Plan)
	if err != nil {
		log.Error().Err(err).Str("email", in.Email).Msg("Error upserting user")
		return models.User{}, err
	}
	return user, nil
}
