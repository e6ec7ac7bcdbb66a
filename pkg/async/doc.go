// Package async provides panic-safe background execution for work the
// request path must not wait on: cache warming at startup and recurring
// maintenance loops. Failures are logged through the structured logger and
// never crash the process.
package async
