// Package auth0 implements accounts.IdentityProvider backed by Auth0.
//
// Identities are created, updated and deleted through the management API
// using machine to machine credentials. Sessions come from the password
// grant of the authentication API and access tokens are verified against
// the tenant JWKS.
package auth0
