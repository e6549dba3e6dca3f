package validator

import (
	"fmt"
	"net/mail"
	"strings"
	"unicode/utf8"
)

const (
	MinPasswordLength = 6
	MaxMessageLength  = 4000
	maxUsernameLength = 50
)

type ValidationErrors map[string]string

func (v ValidationErrors) HasErrors() bool {
	return len(v) > 0
}

func (v ValidationErrors) Add(field, message string) {
	v[field] = message
}

func ValidateRegister(email, username, password string) ValidationErrors {
	errs := make(ValidationErrors)

	validateEmail(email, errs)
	validateUsername(username, errs)

	// Password
	if utf8.RuneCountInString(password) < MinPasswordLength {
		errs.Add("password", fmt.Sprintf("Password must be at least %d characters", MinPasswordLength))
	}

	return errs
}

func ValidateLogin(email, password string) ValidationErrors {
	errs := make(ValidationErrors)

	validateEmail(email, errs)

	if password == "" {
		errs.Add("password", "Password is required")
	}

	return errs
}

// ValidateProfile checks a profile update. Nil fields are left unchanged.
func ValidateProfile(username, avatarURL *string) ValidationErrors {
	errs := make(ValidationErrors)

	if username == nil && avatarURL == nil {
		errs.Add("profile", "Nothing to update")
		return errs
	}
	if username != nil {
		validateUsername(*username, errs)
	}
	if avatarURL != nil && strings.TrimSpace(*avatarURL) == "" {
		errs.Add("avatar_url", "Avatar URL cannot be empty")
	}

	return errs
}

// ValidateMessage requires text, an attachment, or both.
func ValidateMessage(text string, attachmentURL *string) ValidationErrors {
	errs := make(ValidationErrors)

	text = strings.TrimSpace(text)
	hasAttachment := attachmentURL != nil && *attachmentURL != ""
	if text == "" && !hasAttachment {
		errs.Add("text", "Message needs text or an attachment")
	} else if utf8.RuneCountInString(text) > MaxMessageLength {
		errs.Add("text", "Message is too long")
	}

	return errs
}

func ValidateEdit(text string) ValidationErrors {
	errs := make(ValidationErrors)

	text = strings.TrimSpace(text)
	if text == "" {
		errs.Add("text", "Message text is required")
	} else if utf8.RuneCountInString(text) > MaxMessageLength {
		errs.Add("text", "Message is too long")
	}

	return errs
}

func validateEmail(email string, errs ValidationErrors) {
	email = strings.TrimSpace(email)
	if email == "" {
		errs.Add("email", "Email is required")
	} else if _, err := mail.ParseAddress(email); err != nil {
		errs.Add("email", "Invalid email address")
	}
}

func validateUsername(username string, errs ValidationErrors) {
	username = strings.TrimSpace(username)
	if username == "" {
		errs.Add("username", "Username is required")
	} else if utf8.RuneCountInString(username) > maxUsernameLength {
		errs.Add("username", "Username is too long")
	}
}
