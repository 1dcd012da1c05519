package jira

import "errors"

var (
	// ErrSourceUnavailable means a listing or search call failed or returned a body
	// that does not match the expected schema.
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrDownloadFailed means an attachment's bytes could not be fetched.
	ErrDownloadFailed = errors.New("download failed")

	// ErrDeleteFailed means the source refused or failed to delete an attachment.
	ErrDeleteFailed = errors.New("delete failed")
)
