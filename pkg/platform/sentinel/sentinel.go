// Package sentinel defines the storage and collaborator facts that cross
// package boundaries. Callers wrap them with context and match with errors.Is;
// the decryption pipeline maps them onto its error kinds.
package sentinel

import "errors"

// ErrNotFound: no memory blob, registry entry or session key under that id.
var ErrNotFound = errors.New("not found")

// ErrConflict: a registry id is already taken.
var ErrConflict = errors.New("conflict")

// ErrExpired: a session key has outlived its TTL.
var ErrExpired = errors.New("expired")

// ErrUnavailable: blob storage or a remote node did not answer usefully.
// Worth retrying.
var ErrUnavailable = errors.New("unavailable")
