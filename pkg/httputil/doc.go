// Package httputil provides the JSON request and response helpers shared by
// the API handlers.
//
// Mutation endpoints answer with a uniform envelope so clients can treat
// business rejections separately from transport failures:
//
//	{"success": true, "messages": [], "data": ...}
//
// WriteMutationSuccess and WriteMutationRejected produce the two shapes of
// that envelope; rejections still go out as HTTP 200 because the request was
// understood, it just could not be honored. Plain error helpers
// (WriteBadRequest, WriteForbidden, WriteConflict and friends) cover the
// transport-level cases.
//
// Request parsing:
//
//	var req CreatePageRequest
//	if !httputil.ParseJSONOrError(w, r, &req) {
//		return // 400 already written
//	}
//	id, ok := httputil.ParsePathStringOrError(w, r, "externalId")
//
// Chain, ContentTypeMiddleware, and MaxBytesMiddleware provide the small
// transport guards installed ahead of the router; heavier middleware lives
// in pkg/middleware and pkg/observability.
package httputil
