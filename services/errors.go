package services

import "errors"

var (
	ErrLeadNotFound     = errors.New("lead not found")
	ErrInvalidLead      = errors.New("invalid lead")
	ErrUserNotFound     = errors.New("user not found")
	ErrReminderInPast   = errors.New("reminder date must be in the future")
	ErrInvalidTimeline  = errors.New("invalid reminder timeline")
	ErrCompanyExists    = errors.New("company already has members, ask a company admin to add you")
	ErrEmailDisabled    = errors.New("email delivery is not configured")
	ErrEmailOptedOut    = errors.New("user has opted out of reminder emails")
	ErrNoEmailRecipient = errors.New("user has no email address")
)
