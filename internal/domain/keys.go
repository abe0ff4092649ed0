package domain

// KeyPrefix namespaces every key the service writes to the KV store
// (ranking cache entries, budget counters).
const KeyPrefix = "medrec:"
