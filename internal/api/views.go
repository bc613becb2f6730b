package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"time"

	"example.com/fitlog/internal/domain"
)

const maxBodyBytes = 64 << 10

// MeResponse describes the caller's identity and whether the profile step is pending.
type MeResponse struct {
	Authenticated   bool   `json:"authenticated"`
	Subject         string `json:"subject,omitempty"`
	ProfileRequired bool   `json:"profile_required"`
}

// ProfileView exposes the caller's profile.
type ProfileView struct {
	ID        string    `json:"id"`
	Weight    int       `json:"weight"`
	Height    int       `json:"height"`
	Age       int       `json:"age"`
	Gender    string    `json:"gender"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ActivityView is one row of the history.
type ActivityView struct {
	ID       string  `json:"id"`
	Date     string  `json:"date"`
	Duration int     `json:"duration"`
	Distance float64 `json:"distance"`
	Comment  string  `json:"comment"`
}

// ActivityDetailView adds the derived metrics to an activity.
type ActivityDetailView struct {
	ActivityView
	Calories int     `json:"calories"`
	Tempo    float64 `json:"tempo"`
}

// HistoryResponse packages the history query result.
type HistoryResponse struct {
	AsOf    string         `json:"as_of"`
	Items   []ActivityView `json:"items"`
	Message string         `json:"message,omitempty"`
}

// StatsView carries the aggregate numbers.
type StatsView struct {
	Count    int     `json:"count"`
	Calories int     `json:"calories"`
	Distance float64 `json:"distance"`
	Time     int     `json:"time"`
	AvgTempo float64 `json:"avg_tempo"`
}

// StatsResponse is the statistics payload. The numbers are omitted when nothing is
// available.
type StatsResponse struct {
	Available bool   `json:"available"`
	Message   string `json:"message,omitempty"`
	*StatsView
}

// ErrorResponse is the body of every non-2xx response. Fields maps each rejected field
// to its messages and is only set on validation failures.
type ErrorResponse struct {
	Type   string              `json:"type"`
	Detail string              `json:"detail"`
	Fields map[string][]string `json:"fields,omitempty"`
}

func toProfileView(p domain.Profile) ProfileView {
	return ProfileView{
		ID:        p.ID,
		Weight:    p.WeightKg,
		Height:    p.HeightCm,
		Age:       p.AgeYears,
		Gender:    string(p.Gender),
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

func toActivityView(a domain.Activity) ActivityView {
	return ActivityView{
		ID:       a.ID,
		Date:     a.Date.Format(domain.DateLayout),
		Duration: a.DurationMin,
		Distance: a.DistanceKm,
		Comment:  a.Comment,
	}
}

func toDetailView(d domain.ActivityDetail) ActivityDetailView {
	return ActivityDetailView{
		ActivityView: toActivityView(d.Activity),
		Calories:     d.Metrics.Calories,
		Tempo:        d.Metrics.Tempo,
	}
}

func toStatsView(s domain.Statistics) *StatsView {
	return &StatsView{
		Count:    s.Count,
		Calories: s.Calories,
		Distance: s.DistanceKm,
		Time:     s.DurationMin,
		AvgTempo: s.AvgTempo,
	}
}

var errMalformedBody = errors.New("unable to parse body")

// decodeFields reads the named text fields from a JSON object or a form-encoded body.
// JSON numbers and strings are both accepted so that type errors surface as field errors.
func decodeFields(r *http.Request, names ...string) (map[string]string, error) {
	out := make(map[string]string, len(names))
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	switch mediaType {
	case "application/x-www-form-urlencoded", "multipart/form-data":
		r.Body = http.MaxBytesReader(nil, r.Body, maxBodyBytes)
		var err error
		if mediaType == "multipart/form-data" {
			err = r.ParseMultipartForm(maxBodyBytes)
		} else {
			err = r.ParseForm()
		}
		if err != nil {
			return nil, errMalformedBody
		}
		for _, name := range names {
			out[name] = r.PostForm.Get(name)
		}
		return out, nil
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return nil, errMalformedBody
	}
	raw := make(map[string]json.RawMessage)
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &raw); err != nil {
			return nil, errMalformedBody
		}
	}
	for _, name := range names {
		out[name] = jsonText(raw[name])
	}
	return out, nil
}

func jsonText(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	// Numbers and booleans keep their literal text; objects and arrays will fail parsing.
	return string(raw)
}

func decodeActivity(r *http.Request) (domain.ActivityInput, error) {
	fields, err := decodeFields(r, "date", "duration", "distance", "comment")
	if err != nil {
		return domain.ActivityInput{}, err
	}
	return domain.ActivityForm{
		Date:     fields["date"],
		Duration: fields["duration"],
		Distance: fields["distance"],
		Comment:  fields["comment"],
	}.Parse()
}

func decodeProfile(r *http.Request) (domain.ProfileInput, error) {
	fields, err := decodeFields(r, "weight", "height", "age", "gender")
	if err != nil {
		return domain.ProfileInput{}, err
	}
	return domain.ProfileForm{
		Weight: fields["weight"],
		Height: fields["height"],
		Age:    fields["age"],
		Gender: fields["gender"],
	}.Parse()
}

func writeValidationError(w http.ResponseWriter, verr *domain.ValidationError) {
	resp := ErrorResponse{
		Type:   "validation_failed",
		Detail: verr.Error(),
		Fields: make(map[string][]string, len(verr.Fields)),
	}
	for _, f := range verr.Fields {
		resp.Fields[f.Field] = append(resp.Fields[f.Field], f.Message)
	}
	writeJSON(w, http.StatusBadRequest, resp)
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	writeJSON(w, status, ErrorResponse{Type: code, Detail: detail})
}

// writeJSON encodes before writing the status so an unencodable payload turns into a
// 500 problem body instead of a half written 2xx.
func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	body, err := json.Marshal(payload)
	if err != nil {
		status = http.StatusInternalServerError
		body, _ = json.Marshal(ErrorResponse{Type: "server_error", Detail: "response could not be encoded"})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}
