package types

// Event represents a structured state change emitted by the node. Attributes
// carry string-encoded context so downstream consumers (RPC, indexers, swap
// replies) can parse payloads without importing module types.
type Event struct {
	Type       string
	Attributes map[string]string
}
