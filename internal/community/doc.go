// Package community provides tenants (communities), their administrators,
// and their amenities.
//
// The SQLiteRepository doubles as the tenant membership lookup consulted by
// the authorization filter: IsAdminOfTenant answers whether an identity
// administers a community, and reports ErrCommunityNotFound for unknown
// community IDs so callers can fail closed.
//
// # Thread Safety
//
// SQLiteRepository is safe for concurrent use from multiple goroutines.
package community
