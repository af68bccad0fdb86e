// Package auth provides authentication and tenant authorisation for
// Communities Core.
//
// It covers two kinds of token:
//   - Bearer credentials: stateless HS512-signed tokens binding an identity
//     and an expiry, encoded and verified by TokenCodec
//   - Security tokens: opaque single-use values mailed to users for email
//     confirmation and password reset, issued and consumed by
//     SecurityTokenManager
//
// An HTTP layer installs Pipeline, which runs AuthenticationFilter and
// then AuthorizationFilter. Authentication only annotates the request
// context with an identity. Authorization rejects requests on tenant-admin
// paths unless that identity administers the tenant in the path. Every
// failure along the way fails closed.
//
// Single-use enforcement relies on the store: SQLiteSecurityTokenRepository
// flips the used flag with a conditional UPDATE so concurrent consumers of
// one token see exactly one success.
package auth
