// Package client implements upstream.Dialer on top of gRPC.
//
// Each Handle owns one *grpc.ClientConn to a single endpoint. Calls carry
// opaque JSON payloads using the "json" content-subtype, and Probe uses the
// standard grpc.health.v1 service.
package client
