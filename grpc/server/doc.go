// Package server provides a gRPC server component for services whose
// methods exchange JSON documents.
//
//	srv := server.New(cfg.GRPC, log)
//	srv.Register(server.Service{
//	    Name: "billing.BillingService",
//	    Methods: map[string]server.UnaryFunc{
//	        "GetInvoice": handler.GetInvoice,
//	    },
//	})
//
// Handlers return *errors.AppError for application failures; the error
// interceptor turns them into the matching gRPC status.
package server
