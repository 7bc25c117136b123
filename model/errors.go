package model

import "fmt"

// FetchError reports a non-200 page from the listing API. The fetch keeps
// whatever was accumulated before the failing page.
type FetchError struct {
	StatusCode int
	Body       string
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("listing request failed with status %d: %s", e.StatusCode, e.Body)
}

// ValidationError reports unusable input, such as a malformed target date
// or a column missing from a table.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// DownloadError reports a document that could not be retrieved. StatusCode
// is zero when the request never reached the server.
type DownloadError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *DownloadError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("download %s failed with status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("download %s failed: %v", e.URL, e.Err)
}

func (e *DownloadError) Unwrap() error { return e.Err }

// ExtractError reports a document whose text could not be read.
type ExtractError struct {
	Err error
}

func (e *ExtractError) Error() string {
	return fmt.Sprintf("text extraction failed: %v", e.Err)
}

func (e *ExtractError) Unwrap() error { return e.Err }
