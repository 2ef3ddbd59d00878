// Package control implements the gRPC control service used by schedule-ctl.
//
// The service has a single unary method, Post, carrying a host message as a
// google.protobuf.Struct ({"type", "data", "actor"}) and answering with the
// current baseline. The service descriptor is declared by hand because both
// payloads are well-known protobuf types.
package control
