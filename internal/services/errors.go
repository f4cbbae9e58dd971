package services

import (
	"errors"

	"github.com/thameeshasirimanna-dev/whatsbi-sub002/internal/media"
)

var (
	// Validation errors, the caller can fix the request.
	ErrInvalidRequest         = errors.New("invalid request")
	ErrInvalidPhoneFormat     = errors.New("invalid phone number format")
	ErrEmptyContent           = errors.New("message body cannot be empty")
	ErrUnsupportedMessageType = errors.New("unsupported message type")
	ErrTemplateParamMismatch  = errors.New("template parameters do not match template definition")
	ErrMediaWithTemplate      = errors.New("media ids cannot be combined with a template send")
	ErrMultiMediaNotImage     = errors.New("multiple media ids are only allowed for image sends")
	ErrMediaFormatMismatch    = errors.New("resolved media format does not match requested type")

	// Not found.
	ErrAgentNotFound       = errors.New("agent not found")
	ErrCustomerNotFound    = errors.New("customer not found")
	ErrTemplateUnavailable = errors.New("no usable template for agent")

	// Policy.
	ErrInsufficientCredit = errors.New("insufficient credit balance")

	// Provider / storage.
	ErrProviderRejected = errors.New("provider rejected message")
	ErrStorage          = errors.New("storage failure")
)

// IsValidation reports whether err belongs to the caller-correctable group.
func IsValidation(err error) bool {
	for _, target := range []error{
		ErrInvalidRequest,
		ErrInvalidPhoneFormat,
		ErrEmptyContent,
		ErrUnsupportedMessageType,
		ErrTemplateParamMismatch,
		ErrMediaWithTemplate,
		ErrMultiMediaNotImage,
		ErrMediaFormatMismatch,
		media.ErrUnsupportedMediaType,
		media.ErrMixedMediaFormats,
		media.ErrBatchTooLarge,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrAgentNotFound) ||
		errors.Is(err, ErrCustomerNotFound) ||
		errors.Is(err, ErrTemplateUnavailable)
}

func IsPolicy(err error) bool {
	return errors.Is(err, ErrInsufficientCredit)
}
