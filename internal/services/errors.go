// Package services defines the business logic of the chat pipeline: sending
// messages, generating deferred bot replies, live subscriptions, and the
// derived admin conversation view. This file centralizes common
// service-level error values so that they can be consistently returned by
// service methods and checked by callers.
//
// These errors are intended for internal use by the service layer and
// translation into user-facing messages or HTTP status codes should be
// performed at the handler layer.
package services

import "errors"

var (
	// ErrInvalidSender is returned when a send names a sender outside the
	// visitor/admin/bot set.
	ErrInvalidSender = errors.New("invalid sender")

	// ErrTooLong is returned when message content exceeds the configured
	// maximum length limit.
	ErrTooLong = errors.New("content too long")

	// ErrUploadFailed wraps a blob-store failure during attachment upload.
	// No message is persisted when any single upload fails.
	ErrUploadFailed = errors.New("attachment upload failed")

	// ErrPersistFailed wraps a store failure on the primary message write.
	// There is no automatic retry; the caller may re-offer the send.
	ErrPersistFailed = errors.New("message persist failed")

	// ErrMessageNotFound indicates that the requested message does not exist.
	ErrMessageNotFound = errors.New("message not found")
)
