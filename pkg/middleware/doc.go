// Package middleware provides HTTP middleware for principal resolution,
// request ids and rate limiting.
//
// # Ordering
//
// RequestIDMiddleware runs first so every later log line carries the id.
// PrincipalMiddleware runs before the rate limiter so authenticated traffic
// is limited per principal rather than per IP:
//
//	router.Use(middleware.RequestIDMiddleware(log))
//	router.Use(principalMiddleware.Handler)
//	router.Use(rateLimitMiddleware.Handler)
//
// PrincipalMiddleware trusts the X-Arbor-Principal header; authentication
// happens upstream of this service.
package middleware
