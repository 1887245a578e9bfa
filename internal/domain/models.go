package domain

import "time"

// Movie is a single search result. Nominated is derived from the owning
// session's nomination set and is never trusted from the wire.
type Movie struct {
	ImdbID    string `json:"imdbID"`
	Title     string `json:"Title"`
	Year      string `json:"Year"`
	Poster    string `json:"Poster"`
	Nominated bool   `json:"nominated,omitempty"`
}

// Label is the short human form used in chat messages.
func (m Movie) Label() string {
	if m.Year == "" {
		return m.Title
	}
	return m.Title + " (" + m.Year + ")"
}

type Submission struct {
	ID        string
	Movies    []Movie
	CreatedAt time.Time
}
