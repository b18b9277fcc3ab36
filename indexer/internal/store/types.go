package store

import "encoding/json"

// Venue is a publication outlet keyed by "<kind>/<acronym>".
type Venue struct {
	Key     string `json:"key"`
	Kind    string `json:"kind"`
	Acronym string `json:"acronym"`
	Name    string `json:"name"`
}

// Row is one stored record as read back for rendering.
type Row struct {
	Title   string `json:"title"`
	Authors string `json:"authors"`
	Date    string `json:"date"`
	Link    string `json:"link"`
	Venue   string `json:"venue"`
}

// TOCEntry is a venue with its number of recent records.
type TOCEntry struct {
	Key     string
	Kind    string
	Acronym string
	Name    string
	Count   int
}

// MarshalJSON encodes the entry as [key, kind, acronym, name, count], the
// shape index.json consumers expect.
func (e TOCEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{e.Key, e.Kind, e.Acronym, e.Name, e.Count})
}

// Tag associates an arXiv category with a venue.
type Tag struct {
	Venue string `json:"venue"`
	Tag   string `json:"tag"`
}

// IngestLog is one pipeline run.
type IngestLog struct {
	ID            string `json:"id"`
	Source        string `json:"source"`
	Sink          string `json:"sink"`
	Status        string `json:"status"`
	Extracted     int    `json:"extracted"`
	Incomplete    int    `json:"incomplete"`
	TooOld        int    `json:"too_old"`
	VenueMismatch int    `json:"venue_mismatch"`
	Sunk          int    `json:"sunk"`
	ErrorMessage  string `json:"error_message"`
	StartedAt     int64  `json:"started_at"`
	FinishedAt    *int64 `json:"finished_at,omitempty"`
}

// Stats holds aggregate counters for the index.
type Stats struct {
	Venues  int `json:"venues"`
	Records int `json:"records"`
	Arxiv   int `json:"arxiv"`
	Tags    int `json:"tags"`
	Runs    int `json:"runs"`
}
