package models

import "time"

// UploadedFile is one file received from the upload surface.
type UploadedFile struct {
	Name    string `json:"name"`
	Content []byte `json:"-"`
}

// Entry is a processed upload keyed by its original name.
type Entry struct {
	OriginalName string    `json:"original_name"`
	ProposedName string    `json:"proposed_name"`
	Size         int       `json:"size"`
	Content      []byte    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}
