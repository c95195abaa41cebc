// Package middleware holds the gin middleware shared by every HTTP server.
package middleware
