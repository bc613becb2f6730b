package outbox

import "example.com/fitlog/internal/events"

const profileChangedSchema = `{
  "type": "object",
  "title": "ProfileChanged",
  "properties": {
    "profile_id": {"type": "string"},
    "user_id": {"type": "string"},
    "weight": {"type": "integer", "minimum": 30},
    "height": {"type": "integer", "minimum": 100},
    "age": {"type": "integer", "minimum": 16},
    "gender": {"type": "string", "enum": ["Female", "Male"]},
    "occurred_at": {"type": "string", "format": "date-time"}
  },
  "required": ["profile_id", "user_id", "weight", "height", "age", "gender", "occurred_at"],
  "additionalProperties": false
}`

const profileRemovedSchema = `{
  "type": "object",
  "title": "ProfileRemoved",
  "properties": {
    "profile_id": {"type": "string"},
    "occurred_at": {"type": "string", "format": "date-time"}
  },
  "required": ["profile_id", "occurred_at"],
  "additionalProperties": false
}`

const activityChangedSchema = `{
  "type": "object",
  "title": "ActivityChanged",
  "properties": {
    "activity_id": {"type": "string"},
    "profile_id": {"type": "string"},
    "date": {"type": "string", "format": "date"},
    "duration": {"type": "integer", "exclusiveMinimum": 0},
    "distance": {"type": "number", "exclusiveMinimum": 0},
    "comment": {"type": "string", "maxLength": 120},
    "occurred_at": {"type": "string", "format": "date-time"}
  },
  "required": ["activity_id", "profile_id", "date", "duration", "distance", "comment", "occurred_at"],
  "additionalProperties": false
}`

const activityRemovedSchema = `{
  "type": "object",
  "title": "ActivityRemoved",
  "properties": {
    "activity_id": {"type": "string"},
    "profile_id": {"type": "string"},
    "occurred_at": {"type": "string", "format": "date-time"}
  },
  "required": ["activity_id", "profile_id", "occurred_at"],
  "additionalProperties": false
}`

// schemaCatalog maps each event type to the JSON schema registered for its subject.
var schemaCatalog = map[string]string{
	events.ProfileCreated:  profileChangedSchema,
	events.ProfileUpdated:  profileChangedSchema,
	events.ProfileDeleted:  profileRemovedSchema,
	events.ActivityCreated: activityChangedSchema,
	events.ActivityUpdated: activityChangedSchema,
	events.ActivityDeleted: activityRemovedSchema,
}
