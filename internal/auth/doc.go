// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lockbridge Contributors

// Package auth implements the authentication and session lifecycle core.
//
// # Domain Types
//
// Domain types (User, Session, PasswordReset) should be created using
// their respective constructors:
//   - NewUser - creates a User with a validated email and password hash
//   - NewSession - creates a Session with a validated owner and expiry
//   - NewPasswordReset - creates a PasswordReset with a validated owner and expiry
//
// Direct struct initialization bypasses validation and may create invalid
// state. Repository implementations receive pre-validated types from these
// constructors.
//
// # Services
//
// Service types coordinate domain operations:
//   - Service - signup, login, logout, session resolution
//   - PasswordResetService - the password reset request flow
//
// Services are created with New*Service constructors that validate their
// dependencies.
package auth
