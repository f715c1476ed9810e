// Package strategy defines how the next backend is chosen for an admitted
// connection. Round robin is the only strategy: backends are used in their
// configured order, one per well-formed request.
package strategy
