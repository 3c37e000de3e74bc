package models

// -----------------------------------------------------------------------------
// Introspection snapshots for the status endpoint
// -----------------------------------------------------------------------------

type MQueueStats struct {
	Name    string `json:"name"`
	Size    int    `json:"size"`
	MaxSize int    `json:"max_size"`
	Dropped uint64 `json:"dropped"`
	Evicted uint64 `json:"evicted"`
}

type MBusStatus struct {
	Running    bool          `json:"running"`
	Queues     []MQueueStats `json:"queues"`
	Processors []string      `json:"processors"`
}
