// Package services defines the business logic for the assistant: message
// pipeline orchestration, conversation history, and appointment booking.
// This file centralizes common service-level error values so that they can
// be consistently returned by service methods and checked by callers.
//
// These errors are intended for internal use by the service layer;
// translation into user-facing messages or HTTP status codes is performed
// at the handler layer (or, for booking errors, appended to the chat reply
// as a normal sentence).
package services

import "errors"

// Appointment-related errors.
var (
	// ErrSlotUnavailable indicates the requested slot does not exist or is
	// no longer open.
	ErrSlotUnavailable = errors.New("slot is no longer available")

	// ErrSlotTaken is returned when the optimistic-lock update lost the
	// race: the slot was open when read but booked before the write landed.
	ErrSlotTaken = errors.New("slot was just taken")

	// ErrActiveBookingExists enforces the one-active-booking-per-user rule.
	ErrActiveBookingExists = errors.New("user already has an active booking")

	// ErrBookingNotFound indicates the appointment to cancel does not
	// exist, is not booked, or belongs to another user.
	ErrBookingNotFound = errors.New("appointment not found or already cancelled")

	// ErrCancelWindowClosed is returned when the cancellation deadline
	// after booking has passed.
	ErrCancelWindowClosed = errors.New("cancellation window has closed")
)

// Chat input errors.
var (
	// ErrEmptyMessage is returned when an inbound message has no text.
	ErrEmptyMessage = errors.New("message is empty")

	// ErrMessageTooLong is returned when an inbound message exceeds the
	// configured maximum length.
	ErrMessageTooLong = errors.New("message too long")

	// ErrInvalidEmail is returned when the chat endpoint receives a
	// malformed email address.
	ErrInvalidEmail = errors.New("invalid email address")

	// ErrMissingField is returned when a required chat field is absent.
	ErrMissingField = errors.New("missing required field")
)
