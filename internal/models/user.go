package models

import "time"

// User represents an account in the database.
type User struct {
	ID                 int64      `db:"id" json:"-"`
	Email              string     `db:"email" json:"email"`
	Name               string     `db:"name" json:"name"`
	ImageURL           string     `db:"image_url" json:"imageUrl"`
	ExternalID         string     `db:"external_id" json:"externalId"`
	SubscriptionID     *string    `db:"subscription_id" json:"subscriptionId,omitempty"`
	SubscriptionEndsAt *time.Time `db:"subscription_ends_at" json:"-"`
	Plan               *string    `db:"plan" json:"plan,omitempty"`
	TotalPodcasts      int        `db:"total_podcasts" json:"totalPodcasts"`
	QuotaPeriodStart   time.Time  `db:"quota_period_start" json:"-"`
	CreatedAt          time.Time  `db:"created_at" json:"-"`
	UpdatedAt          time.Time  `db:"updated_at" json:"-"`
}

// IsSubscribed reports whether the user holds a subscription that has not
// expired at now.
func (u User) IsSubscribed(now time.Time) bool {
	if u.SubscriptionID == nil || *u.SubscriptionID == "" {
		return false
	}
	return u.SubscriptionEndsAt != nil && u.SubscriptionEndsAt.After(now)
}

// PlanName returns the stored plan or "" when none is set.
func (u User) PlanName() string {
	if u.Plan == nil {
		return ""
	}
	return *u.Plan
}

// UsageAt returns the podcasts counted against the period starting at
// periodStart. A counter recorded in an earlier period counts as zero.
func (u User) UsageAt(periodStart time.Time) int {
	if u.QuotaPeriodStart.Before(periodStart) {
		return 0
	}
	return u.TotalPodcasts
}

// UserSync is the identity/billing view of a user pushed by external sync.
type UserSync struct {
	Email          string  `json:"email"`
	Name           string  `json:"name"`
	ImageURL       string  `json:"imageUrl"`
	ExternalID     string  `json:"externalId"`
	SubscriptionID *string `json:"subscriptionId,omitempty"`
	EndsOn         *int64  `json:"endsOn,omitempty"`
	Plan           *string `json:"plan,omitempty"`
}

// SubscriptionEndsAt converts EndsOn epoch millis to a time.
func (s UserSync) SubscriptionEndsAt() *time.Time {
	if s.EndsOn == nil {
		return nil
	}
	t := time.UnixMilli(*s.EndsOn).UTC()
	return &t
}
