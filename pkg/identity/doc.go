// Package identity defines the contract with the external identity provider.
//
// The rest of the application never talks to the provider directly. It
// consumes a Source: a current-session query plus an ordered stream of
// session-change events. The Hub type is an in-process Source used by the
// demo server and by tests; production deployments adapt their OAuth
// provider to the same interface.
package identity
