// Package httpapi exposes the command surface over HTTP.
//
// GET /api/<command> executes one command and answers with its JSON result;
// GET /api/ returns the status snapshot. GET /config serves the active
// buttons document and PUT /config installs a new one, then reloads.
package httpapi
