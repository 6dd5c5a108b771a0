// Package auth provides session-based authentication for the admin API.
//
// # Sign-in
//
// The user model is an ordinary registered descriptor whose User options name
// the username, password, superuser, active and roles columns. SignIn looks
// the user up by the configured username field, verifies the password hash,
// and creates an opaque session id (32 random bytes, hex-encoded). Only active
// superusers may sign in.
//
// # Sessions
//
// Session ids are verified against a store.SessionStore on every request;
// nothing about the user is encoded in the id itself. SignOut is idempotent.
// If the user model is unregistered, every session reads as unauthenticated.
//
// # Password hashing
//
// BcryptHasher and Argon2Hasher implement admin.Hasher. MultiHasher verifies
// either format and hashes new passwords with its primary algorithm:
//
//	hasher, _ := auth.NewHasher("argon2id")
//	hash, _ := hasher.Hash("s3cret")
package auth
