// Package api implements the admin operations every transport exposes.
//
// Each call follows the same steps: resolve the session to a user, resolve
// the model name to its descriptor, check registry roles and the
// descriptor's permission, call the adapter, then serialize. Errors leaving
// this package are always *apierr.Error; anything else is logged and
// reported as an internal error.
package api
