// Package screen interprets responses of the remote application.
//
// Responses are opaque JSON objects; the shape of the latest one decides which
// Kind of screen the session is on. Typed views (Commands, Entities, Tree) decode
// the parts a step needs without ever mutating the response.
package screen
