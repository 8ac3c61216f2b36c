package domain

import "fmt"

// Source identifies one of the three paid-media data sources.
// The set is closed: the orchestrator dispatches on it and the
// reconciler keys canonical rows by it.
type Source string

const (
	SourceSurfside Source = "surfside" // S3-delivered daily batch feed
	SourceVibe     Source = "vibe"     // async report API
	SourceFacebook Source = "facebook" // manual file upload
)

// AllSources lists every known source.
func AllSources() []Source {
	return []Source{SourceSurfside, SourceVibe, SourceFacebook}
}

// ParseSource validates a source string from user input.
func ParseSource(s string) (Source, error) {
	switch Source(s) {
	case SourceSurfside, SourceVibe, SourceFacebook:
		return Source(s), nil
	}
	return "", fmt.Errorf("unknown source %q", s)
}

// Scheduled reports whether the source is ingested on the daily schedule.
// Facebook data only arrives through manual uploads.
func (s Source) Scheduled() bool {
	return s == SourceSurfside || s == SourceVibe
}
