// Package auth provides the token lifecycle and player account flows that
// back an authenticated real-time arena.
//
// Tokens:
//   - Three kinds are issued, each with its own secret and fixed lifetime:
//     ACCESS (10 minutes, stateless), SESSION (3 days, persisted) and RESET
//     (1 hour, persisted). Lifetimes are not caller configurable.
//   - Persisted tokens are single use. Presenting a SESSION or RESET token
//     that is no longer in the CredentialStore is treated as replay of a
//     stolen token: when the signature still verifies and the owner exists,
//     every persisted token of that owner is revoked. The caller only ever
//     sees ErrAuthenticationFailure.
//   - Refresh rotates the pair: the presented SESSION token is consumed and a
//     new ACCESS/SESSION pair is issued.
//
// Players:
//   - PlayerService registers and logs players in with bcrypt hashed
//     passwords and hands back a session pair. Password resets go through a
//     RESET token and revoke every session of the player once applied.
//
// Activity sinks:
//   - ActivitySink receives audit events (session issued, rotated, revoked,
//     reuse detected, password reset). Sinks run best-effort, errors are
//     logged and never block authentication.
//
// The realtime sub-package builds the WebSocket admission handshake, presence
// roster and invite coordinator on top of TokenService. The repository
// sub-package provides bun and redis backed stores.
package auth
