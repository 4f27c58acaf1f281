// Package apiresponses provides standardized JSON responses for the
// notification API, including the mapping from dispatch errors to HTTP
// status codes.
package apiresponses
