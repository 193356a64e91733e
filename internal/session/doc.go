// Package session provides conversation.Store implementations.
//
// MemoryStore keeps sessions in process and evicts them lazily once their
// TTL has passed. ValkeyStore keeps them in Valkey so several replicas can
// serve the same conversation; a short-lived lock key per session id
// serialises updates across replicas.
package session
