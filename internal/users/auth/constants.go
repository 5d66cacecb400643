// Copyright (c) 2026 StorageUp. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

// # Authentication Constraints

const (
	// NameMinLength and NameMaxLength bound the display name.
	NameMinLength = 2
	NameMaxLength = 100

	// PasswordMinLength is the shortest accepted password.
	PasswordMinLength = 6

	// ResetTokenLength is the byte length of the random password reset token.
	ResetTokenLength = 32
)

// # Client Messages

const (
	// MessageResetRequested is returned whether or not the address is registered.
	MessageResetRequested = "If an account with that email exists, a password reset link has been sent."

	MessageResetTokenValid = "Token is valid"
	MessagePasswordReset   = "Password has been reset successfully"
	MessageLoggedOut       = "Logged out successfully"

	resetEmailSubject = "Reset your StorageUp password"
)
