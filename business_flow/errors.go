// Package businessflow contains the core business logic and use cases for campaign dispatch and messaging
package businessflow

import (
	"errors"
	"fmt"
	"strings"
)

// Error categories. Every concrete error below wraps exactly one of them.
var (
	// ErrValidation marks malformed input; nothing was changed and retrying will not help
	ErrValidation = errors.New("validation error")
	// ErrTransport marks a failed outbound send
	ErrTransport = errors.New("transport error")
	// ErrNotFound marks a missing entity
	ErrNotFound = errors.New("not found")
	// ErrState marks an operation that is not allowed in the current lifecycle state
	ErrState = errors.New("state error")
)

// Business flow error constants
var (
	// Campaign-related errors
	ErrCampaignNotFound         = fmt.Errorf("%w: campaign not found", ErrNotFound)
	ErrCampaignNameRequired     = fmt.Errorf("%w: campaign name is required", ErrValidation)
	ErrCampaignNameTooLong      = fmt.Errorf("%w: campaign name must be at most 255 characters", ErrValidation)
	ErrCampaignTemplateRequired = fmt.Errorf("%w: message template is required", ErrValidation)
	ErrCampaignUpdateRequired   = fmt.Errorf("%w: at least one field must be provided for update", ErrValidation)
	ErrCampaignNotDraft         = fmt.Errorf("%w: Campaign can only be started from draft status", ErrState)
	ErrCampaignNotSchedulable   = fmt.Errorf("%w: campaign can only be scheduled from draft or scheduled status", ErrState)
	ErrCampaignNotEditable      = fmt.Errorf("%w: contacts can only be uploaded while the campaign is a draft", ErrState)
	ErrCampaignDeleted          = fmt.Errorf("%w: campaign was deleted", ErrNotFound)
	ErrCampaignBusy             = fmt.Errorf("%w: campaign is already being dispatched", ErrState)

	// Schedule errors
	ErrScheduleTimeRequired = fmt.Errorf("%w: scheduled_at is required", ErrValidation)
	ErrScheduleTimeInvalid  = fmt.Errorf("%w: scheduled_at is not a valid time", ErrValidation)
	ErrScheduleTimeInPast   = fmt.Errorf("%w: scheduled_at must be in the future", ErrValidation)
	ErrTimezoneInvalid      = fmt.Errorf("%w: timezone is not a valid IANA identifier", ErrValidation)

	// Contact upload errors
	ErrContactFileEmpty       = fmt.Errorf("%w: contact file is empty", ErrValidation)
	ErrContactFileUnreadable  = fmt.Errorf("%w: contact file could not be parsed", ErrValidation)
	ErrPhoneMappingRequired   = fmt.Errorf("%w: field_mapping.phone_number is required", ErrValidation)
	ErrUnsupportedContactFile = fmt.Errorf("%w: contact file must be csv, txt or xlsx", ErrValidation)

	// Send task errors
	ErrContactNotFound   = fmt.Errorf("%w: campaign contact not found", ErrNotFound)
	ErrAttemptsExhausted = fmt.Errorf("%w: send attempts exhausted", ErrTransport)

	// Conversation errors
	ErrConversationNotFound  = fmt.Errorf("%w: conversation not found", ErrNotFound)
	ErrPhoneNumberRequired   = fmt.Errorf("%w: phone number is required", ErrValidation)
	ErrPhoneNumberInvalid    = fmt.Errorf("%w: phone number is invalid", ErrValidation)
	ErrMessageContentMissing = fmt.Errorf("%w: message content or attachment is required", ErrValidation)
)

type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func NewBusinessErrorf(code, message string, err error, args ...any) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: fmt.Sprintf(message, args...),
		Err:     err,
	}
}

// TransportError carries the reason a send failed
type TransportError struct {
	To     string
	Reason string
	Err    error
}

func (e *TransportError) Error() string {
	return e.Reason
}

func (e *TransportError) Unwrap() []error {
	return []error{ErrTransport, e.Err}
}

func IsValidationError(err error) bool {
	return errors.Is(err, ErrValidation)
}

func IsTransportError(err error) bool {
	return errors.Is(err, ErrTransport)
}

func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsStateError(err error) bool {
	return errors.Is(err, ErrState)
}

func IsCampaignNotFound(err error) bool {
	return errors.Is(err, ErrCampaignNotFound)
}

func IsCampaignNotDraft(err error) bool {
	return errors.Is(err, ErrCampaignNotDraft)
}

// ErrorMessage returns the user-facing part of a categorized error
func ErrorMessage(err error) string {
	var be *BusinessError
	if errors.As(err, &be) && be.Err != nil {
		err = be.Err
	}
	msg := err.Error()
	for _, category := range []error{ErrValidation, ErrTransport, ErrNotFound, ErrState} {
		if rest, ok := strings.CutPrefix(msg, category.Error()+": "); ok {
			return rest
		}
	}
	return msg
}
