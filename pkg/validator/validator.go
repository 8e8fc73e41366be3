package validator

import "strings"

type ValidationErrors map[string]string

func (v ValidationErrors) HasErrors() bool {
	return len(v) > 0
}

func (v ValidationErrors) Add(field, message string) {
	v[field] = message
}

const maxMessageLength = 10000

func ValidateRoomName(name string) ValidationErrors {
	errs := make(ValidationErrors)

	name = strings.TrimSpace(name)
	if name == "" {
		errs.Add("name", "Room name is required")
	} else if len(name) < 2 {
		errs.Add("name", "Room name must be at least 2 characters")
	} else if len(name) > 100 {
		errs.Add("name", "Room name is too long")
	}

	return errs
}

// ValidateMessage checks the content of an outgoing message. Media messages
// may have an empty body as long as they carry attachments.
func ValidateMessage(content string, hasAttachments bool) ValidationErrors {
	errs := make(ValidationErrors)

	if strings.TrimSpace(content) == "" && !hasAttachments {
		errs.Add("content", "Message content is required")
	} else if len(content) > maxMessageLength {
		errs.Add("content", "Message is too long")
	}

	return errs
}
