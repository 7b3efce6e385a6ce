// Package httpapi exposes the core services over a local HTTP API.
// Chat turns are delivered as Server-Sent Events; everything else is
// plain JSON. The server listens on loopback and identifies the caller
// from the X-User-ID header, defaulting to the local user.
package httpapi
