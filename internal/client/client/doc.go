// Package client talks to the wardrobe backend.
//
// It provides the user directory and inventory API over HTTP (HTTPClient),
// a gRPC health probe used to detect online/offline mode (HealthClient) and
// the bootstrap of the local SQLite database (InitDatabase, RunMigrations).
//
// # Error Handling
//
// Every non-2xx response is an *APIError whose message is
// "API error: <response body>". It matches the sentinels ErrNotFound,
// ErrUnauthorized, ErrAlreadyExists and ErrUnavailable with errors.Is, so
// callers can tell "no such user" apart from any other failure.
package client
