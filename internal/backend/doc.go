// Package backend describes the downstream servers requests are forwarded to.
// A backend is a (host, port) pair; every forwarded request dials a new
// connection to it.
package backend
