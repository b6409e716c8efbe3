// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Maroon Contributors

// Package auth implements the credential handshake that admits a connection
// to a session.
//
// # Protocol
//
// The client sends one AuthRequest as soon as its connection opens. The
// server stays silent until that request arrives, then answers with exactly
// one AuthResponse:
//   - on a credential match it sends Success and marks the connection Accepted
//   - on a mismatch it sends InvalidCredentials, marks the connection Rejected
//     and closes it after the reject delay so the response can drain first
//
// Later requests on a resolved connection are ignored. A client that receives
// anything but Success logs the failure and closes its own connection.
//
// # Credentials
//
// A session has a single shared username and password held by a
// CredentialStore. The store may be built from the plaintext password or
// from an argon2id hash of it produced by Argon2idHasher.
package auth
