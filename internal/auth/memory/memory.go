// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lockbridge Contributors

// Package memory provides in-memory repository implementations.
//
// All repositories are safe for concurrent use and keep the same atomicity
// guarantees as the PostgreSQL implementations: the email uniqueness check
// and insert happen under one lock, and token lookups are linearizable per
// token. Intended for development mode and tests, not for production.
package memory
