// Package events defines the domain event payloads published through the outbox.
package events

import (
	"time"

	"example.com/fitlog/internal/domain"
)

// Event types.
const (
	ProfileCreated  = "profile.created"
	ProfileUpdated  = "profile.updated"
	ProfileDeleted  = "profile.deleted"
	ActivityCreated = "activity.created"
	ActivityUpdated = "activity.updated"
	ActivityDeleted = "activity.deleted"
)

// Topics.
const (
	TopicProfileEvents  = "profile_events"
	TopicActivityEvents = "activity_events"
)

// Kafka record headers carried by every published event.
const (
	HeaderEventType     = "event_type"
	HeaderSchemaSubject = "schema_subject"
	HeaderAggregateID   = "aggregate_id"
)

// Aggregate types recorded on outbox rows.
const (
	AggregateProfile  = "profile"
	AggregateActivity = "activity"
)

// Route describes where an event type is published.
type Route struct {
	Topic         string
	SchemaSubject string
	AggregateType string
}

var catalog = map[string]Route{
	ProfileCreated:  {Topic: TopicProfileEvents, SchemaSubject: TopicProfileEvents + "-" + ProfileCreated, AggregateType: AggregateProfile},
	ProfileUpdated:  {Topic: TopicProfileEvents, SchemaSubject: TopicProfileEvents + "-" + ProfileUpdated, AggregateType: AggregateProfile},
	ProfileDeleted:  {Topic: TopicProfileEvents, SchemaSubject: TopicProfileEvents + "-" + ProfileDeleted, AggregateType: AggregateProfile},
	ActivityCreated: {Topic: TopicActivityEvents, SchemaSubject: TopicActivityEvents + "-" + ActivityCreated, AggregateType: AggregateActivity},
	ActivityUpdated: {Topic: TopicActivityEvents, SchemaSubject: TopicActivityEvents + "-" + ActivityUpdated, AggregateType: AggregateActivity},
	ActivityDeleted: {Topic: TopicActivityEvents, SchemaSubject: TopicActivityEvents + "-" + ActivityDeleted, AggregateType: AggregateActivity},
}

// Lookup returns the route for eventType.
func Lookup(eventType string) (Route, bool) {
	route, ok := catalog[eventType]
	return route, ok
}

// Types lists every known event type.
func Types() []string {
	return []string{ProfileCreated, ProfileUpdated, ProfileDeleted, ActivityCreated, ActivityUpdated, ActivityDeleted}
}

// ProfileChanged is emitted when a profile is created or updated.
type ProfileChanged struct {
	ProfileID  string    `json:"profile_id"`
	UserID     string    `json:"user_id"`
	Weight     int       `json:"weight"`
	Height     int       `json:"height"`
	Age        int       `json:"age"`
	Gender     string    `json:"gender"`
	OccurredAt time.Time `json:"occurred_at"`
}

// ProfileRemoved is emitted when a profile and its activities are deleted.
type ProfileRemoved struct {
	ProfileID  string    `json:"profile_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

// ActivityChanged is emitted when an activity is created or updated.
type ActivityChanged struct {
	ActivityID string    `json:"activity_id"`
	ProfileID  string    `json:"profile_id"`
	Date       string    `json:"date"`
	Duration   int       `json:"duration"`
	Distance   float64   `json:"distance"`
	Comment    string    `json:"comment"`
	OccurredAt time.Time `json:"occurred_at"`
}

// ActivityRemoved is emitted when an activity is deleted.
type ActivityRemoved struct {
	ActivityID string    `json:"activity_id"`
	ProfileID  string    `json:"profile_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewProfileChanged builds the payload for p.
func NewProfileChanged(p domain.Profile) ProfileChanged {
	return ProfileChanged{
		ProfileID:  p.ID,
		UserID:     p.UserID,
		Weight:     p.WeightKg,
		Height:     p.HeightCm,
		Age:        p.AgeYears,
		Gender:     string(p.Gender),
		OccurredAt: p.UpdatedAt,
	}
}

// NewActivityChanged builds the payload for a.
func NewActivityChanged(a domain.Activity) ActivityChanged {
	return ActivityChanged{
		ActivityID: a.ID,
		ProfileID:  a.ProfileID,
		Date:       a.Date.Format(domain.DateLayout),
		Duration:   a.DurationMin,
		Distance:   a.DistanceKm,
		Comment:    a.Comment,
		OccurredAt: a.UpdatedAt,
	}
}
