// Package tcpserver owns the listening socket and the accept loop. Connections
// are served strictly one after another: a slow handler delays every client
// queued behind it.
package tcpserver
