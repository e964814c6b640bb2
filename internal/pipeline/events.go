package pipeline

// EventType identifies a progress event emitted to the surrounding
// application (CLI progress bar or web control channel).
type EventType string

const (
	EventScanned         EventType = "scanned"
	EventCachedHit       EventType = "cached_hit"
	EventDetected        EventType = "detected"
	EventFailed          EventType = "failed"
	EventSkipped         EventType = "skipped"
	EventClusterCreated  EventType = "cluster_created"
	EventNamingRequested EventType = "naming_requested"
	EventCopied          EventType = "copied"
	EventStopped         EventType = "stopped"
	EventDone            EventType = "done"
)

// Counts carries the running counters included with every event.
type Counts struct {
	Scanned    int `json:"scanned"`
	CachedHits int `json:"cached_hits"`
	Detected   int `json:"detected"`
	Failed     int `json:"failed"`
	Skipped    int `json:"skipped"`
	Clusters   int `json:"clusters"`
	Copied     int `json:"copied"`
}

// Event is one progress notification.
type Event struct {
	Type      EventType `json:"type"`
	Path      string    `json:"path,omitempty"`
	ClusterID string    `json:"cluster_id,omitempty"`
	Message   string    `json:"message,omitempty"`
	Counts    Counts    `json:"counts"`
}

// ProgressFunc receives progress events. It is called from the pipeline
// goroutine; implementations must not block for long.
type ProgressFunc func(Event)
