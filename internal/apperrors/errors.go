package apperrors

import (
	"fmt"
	"net/http"
)

// ErrNotFound represents an error when a requested resource is not found.
type ErrNotFound struct {
	Resource string
	ID       interface{}
}

// Error implements the error interface.
func (e *ErrNotFound) Error() string {
	if e.ID != nil {
		return fmt.Sprintf("%s with ID %v not found", e.Resource, e.ID)
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

// Is allows for error checking with errors.Is().
func (e *ErrNotFound) Is(target error) bool {
	_, ok := target.(*ErrNotFound)
	return ok
}

// NewNotFoundError creates a new ErrNotFound.
func NewNotFoundError(resource string, id interface{}) *ErrNotFound {
	return &ErrNotFound{
		Resource: resource,
		ID:       id,
	}
}

// NewEpisodeNotFoundError is returned when a series page does not list the requested episode.
func NewEpisodeNotFoundError(season, episode int) *ErrNotFound {
	return &ErrNotFound{
		Resource: "episode",
		ID:       fmt.Sprintf("S%02dE%02d", season, episode),
	}
}

// TransportKind classifies a failure of the transport session.
type TransportKind int

const (
	NetworkUnavailable TransportKind = iota + 1
	RateLimited
	ChallengeUnsolvable
	UpstreamError
)

func (k TransportKind) String() string {
	switch k {
	case NetworkUnavailable:
		return "network_unavailable"
	case RateLimited:
		return "rate_limited"
	case ChallengeUnsolvable:
		return "challenge_unsolvable"
	case UpstreamError:
		return "upstream_error"
	default:
		return "unknown"
	}
}

// TransportError is returned by the transport session once its retry budget is spent
// or when the failure is not worth retrying.
type TransportError struct {
	Kind   TransportKind
	Status int // HTTP status for UpstreamError and RateLimited, 0 otherwise
	URL    string
	Err    error
}

// Sentinels for errors.Is. A zero Status matches any status.
var (
	ErrNetworkUnavailable  = &TransportError{Kind: NetworkUnavailable}
	ErrRateLimited         = &TransportError{Kind: RateLimited}
	ErrChallengeUnsolvable = &TransportError{Kind: ChallengeUnsolvable}
	ErrUpstream            = &TransportError{Kind: UpstreamError}
)

// Error implements the error interface.
func (e *TransportError) Error() string {
	msg := e.Kind.String()
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (status %d %s)", msg, e.Status, http.StatusText(e.Status))
	}
	if e.URL != "" {
		msg = fmt.Sprintf("%s for %s", msg, e.URL)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Is matches another TransportError of the same kind. A target without a kind matches
// every TransportError and a target without a status matches every status.
func (e *TransportError) Is(target error) bool {
	t, ok := target.(*TransportError)
	if !ok {
		return false
	}
	if t.Kind != 0 && t.Kind != e.Kind {
		return false
	}
	return t.Status == 0 || t.Status == e.Status
}

// Transient reports whether the failure may succeed when retried.
func (e *TransportError) Transient() bool {
	switch e.Kind {
	case NetworkUnavailable, RateLimited:
		return true
	case UpstreamError:
		return e.Status >= http.StatusInternalServerError
	default:
		return false
	}
}

// NewUpstreamError creates an UpstreamError for the given status.
func NewUpstreamError(status int, url string) *TransportError {
	return &TransportError{Kind: UpstreamError, Status: status, URL: url}
}

// ExtractionKind classifies why markup or a payload could not be turned into records.
type ExtractionKind int

const (
	StructuralMismatch ExtractionKind = iota + 1
	UnexpectedPayload
)

func (k ExtractionKind) String() string {
	switch k {
	case StructuralMismatch:
		return "structural_mismatch"
	case UnexpectedPayload:
		return "unexpected_payload"
	default:
		return "unknown"
	}
}

// ExtractionError is deterministic for a given input and is never retried.
type ExtractionError struct {
	Kind      ExtractionKind
	Extractor string
	Detail    string
}

var (
	ErrStructuralMismatch = &ExtractionError{Kind: StructuralMismatch}
	ErrUnexpectedPayload  = &ExtractionError{Kind: UnexpectedPayload}
)

// Error implements the error interface.
func (e *ExtractionError) Error() string {
	msg := e.Kind.String()
	if e.Extractor != "" {
		msg = e.Extractor + ": " + msg
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

// Is allows for error checking with errors.Is(). A target without a kind matches any kind.
func (e *ExtractionError) Is(target error) bool {
	t, ok := target.(*ExtractionError)
	if !ok {
		return false
	}
	return t.Kind == 0 || t.Kind == e.Kind
}

// NewStructuralMismatch reports that the page shape was not recognized.
func NewStructuralMismatch(extractor, detail string) *ExtractionError {
	return &ExtractionError{Kind: StructuralMismatch, Extractor: extractor, Detail: detail}
}

// NewUnexpectedPayload reports that a download returned something other than a subtitle file.
func NewUnexpectedPayload(extractor, detail string) *ExtractionError {
	return &ExtractionError{Kind: UnexpectedPayload, Extractor: extractor, Detail: detail}
}

// FormatChangedError signals that the upstream site changed its markup and the
// extraction logic needs maintenance.
type FormatChangedError struct {
	Operation string
	Err       error
}

// Error implements the error interface.
func (e *FormatChangedError) Error() string {
	return fmt.Sprintf("site format changed during %s, update required: %v", e.Operation, e.Err)
}

func (e *FormatChangedError) Unwrap() error {
	return e.Err
}

// Is allows for error checking with errors.Is().
func (e *FormatChangedError) Is(target error) bool {
	_, ok := target.(*FormatChangedError)
	return ok
}

// ErrSubtitleNotFoundInArchive is returned when an archive holds no usable subtitle file.
type ErrSubtitleNotFoundInArchive struct {
	Format    string
	FileCount int
}

// Error implements the error interface.
func (e *ErrSubtitleNotFoundInArchive) Error() string {
	return fmt.Sprintf("no subtitle file found in %s archive (searched %d files)", e.Format, e.FileCount)
}

// Is allows for error checking with errors.Is().
func (e *ErrSubtitleNotFoundInArchive) Is(target error) bool {
	_, ok := target.(*ErrSubtitleNotFoundInArchive)
	return ok
}
