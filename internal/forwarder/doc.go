// Package forwarder implements the per-connection exchange of the load
// balancer: read a 2-byte request, send it to the next backend in round-robin
// order, copy back the first chunk of the reply (at most 4096 bytes) and close
// both connections.
//
// Failures are contained to the connection that hit them. A client whose
// request is too short, or whose backend fails, just sees the connection close
// with nothing written. Nothing is retried and no other backend is tried.
package forwarder
