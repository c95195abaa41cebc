// Package grpc holds the transport pieces shared by clients and servers:
// connection settings, the JSON frame codec, and the mapping between gRPC
// status codes and application errors.
//
// Sub-packages:
//
//   - grpc/client: dials one endpoint and exposes it as an upstream handle
//   - grpc/server: serves JSON-framed unary methods plus grpc.health.v1
//   - grpc/interceptor: logging, timeout and error-mapping interceptors
package grpc
