// Package models defines the types shared by the chainval storage, history and API layers.
package models

import "time"

// ChainFile is a lightweight representation of a chain file returned by list operations.
type ChainFile struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	Size      int64     `json:"size"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RunStatus summarises the most recent validation of a chain file.
type RunStatus struct {
	RunID     int64     `json:"run_id"`
	Checksum  string    `json:"checksum"`
	Valid     bool      `json:"valid"`
	Errors    int       `json:"errors"`
	Warnings  int       `json:"warnings"`
	CreatedAt time.Time `json:"created_at"`
}

// ChainStatus is a chain file together with its last recorded run, if any.
type ChainStatus struct {
	ChainFile
	LastRun *RunStatus `json:"last_run,omitempty"`
	Stale   bool       `json:"stale"`
}
