// Package interceptor provides the unary client and server interceptors
// shared by every gRPC connection: logging, default deadlines, panic
// recovery and application error to status conversion.
package interceptor
