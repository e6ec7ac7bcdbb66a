// Package api exposes the tree over HTTP under /api/v1. Each entity kind
// gets the same route shape: listing and creation on the collection,
// move/copy/delete/undelete as batch POST actions, and single-entity reads
// by external id.
//
// Mutation endpoints answer with a {success, messages, data} envelope.
// Validation rejections are HTTP 200 with success false; only transport and
// authorization problems use error status codes. The principal is taken
// from the request context, so the middleware chain must run first.
package api
