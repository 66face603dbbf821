package models

import (
	"time"
)

// Opportunity is one normalized listing. It is built once by the ingest
// pipeline and treated as read-only afterwards.
type Opportunity struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Description     string    `json:"description"`
	URL             string    `json:"url"`
	Source          string    `json:"source"`
	SourceURL       string    `json:"source_url"`
	Tags            Tags      `json:"tags"`
	Deadline        Deadline  `json:"deadline"`
	DeadlineDisplay *string   `json:"deadline_display"`
	ScrapedAt       time.Time `json:"scraped_at"`
}

// RawRecord is what a source scraper hands over. Nothing in it is trusted.
type RawRecord struct {
	Name            string              `json:"name"`
	Description     string              `json:"description"`
	URL             string              `json:"url"`
	Source          string              `json:"source"`
	SourceURL       string              `json:"source_url"`
	Deadline        *string             `json:"deadline"`
	DeadlineDisplay *string             `json:"deadline_display"`
	Discipline      string              `json:"discipline,omitempty"`
	Tags            map[string][]string `json:"tags"`
	ScrapedAt       string              `json:"scraped_at"`
}

type Status string

const (
	StatusOpen   Status = "open"
	StatusClosed Status = "closed"
)

type Urgency string

const (
	UrgencyUrgent Urgency = "urgent" // <= 7 days
	UrgencySoon   Urgency = "soon"   // <= 30 days
	UrgencyNormal Urgency = "normal" // <= 60 days
	UrgencyNone   Urgency = "none"
)
