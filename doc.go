// Package accounts manages user accounts split across an external identity
// provider (credentials and sessions) and a local profile store (username),
// linked by the identity id.
//
// Registration:
//   - Registrar creates the identity first and the profile second. The two
//     systems share no transaction, so a failed profile insert triggers one
//     compensating DeleteIdentity on a context detached from the request.
//     Every step is a RegistrationState transition and can be observed with
//     WithRegistrationObserver.
//   - Signup can be turned off through a go-featuregate gate keyed by
//     gate.FeatureUsersSignup.
//
// Sessions:
//   - AccessGuard verifies the bearer token and builds a SessionContext that
//     lives on the request context only. Providers that need the refresh token
//     implement SessionBinder. Nothing session related is stored on a provider.
//   - AccountService runs login, credential and profile updates, and account
//     deletion. Mutations require the principal to own the target id.
//
// Errors:
//   - Every flow returns go-errors values classified by KindOf into
//     validation, unauthorized, forbidden, not found, conflict, inconsistent
//     state and internal. HTTPStatus maps a kind to a response status.
//
// Activity sinks:
//   - ActivitySink receives best-effort audit events (registration, login,
//     updates, deletion, compensation). Sink errors are logged and ignored.
//
// Providers live in provider/local (bun + bcrypt + HS256 JWT) and
// provider/auth0 (management and authentication APIs + JWKS).
package accounts
