package service

import "errors"

var (
	ErrPostNotFound        = errors.New("post not found")
	ErrTargetNotFound      = errors.New("target not found")
	ErrChannelNotFound     = errors.New("channel not found")
	ErrNoTargets           = errors.New("post needs at least one target")
	ErrChannelUnavailable  = errors.New("channel not found/inactive")
	ErrDuplicateChannel    = errors.New("channel listed more than once")
	ErrInvalidState        = errors.New("oauth state invalid or expired")
	ErrUnsupportedPlatform = errors.New("platform not supported")
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrVideoNotFound       = errors.New("video not found")
)

// CredentialError means no usable access token could be produced for a channel.
type CredentialError struct {
	Reason string
	Err    error
}

func (e *CredentialError) Error() string {
	if e.Err != nil {
		return "credential error: " + e.Reason + ": " + e.Err.Error()
	}
	return "credential error: " + e.Reason
}

func (e *CredentialError) Unwrap() error {
	return e.Err
}
