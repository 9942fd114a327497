// Package ports declares what the CRM services need from the outside world:
// repositories over MySQL, the Redis-backed cache and locks, the Meta,
// RingCentral, Confido and relay clients, and the domain-event broker.
package ports
