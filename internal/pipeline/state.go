package pipeline

// State is a job's position in the upload state machine.
type State int

const (
	StateQueued State = iota
	StateCredentialAcquired
	StateDownloaded
	StateMetadataRewritten
	StateBytesUploaded
	StateItemCreated
	StateRecordPersisted
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateQueued:
		return "queued"
	case StateCredentialAcquired:
		return "credential_acquired"
	case StateDownloaded:
		return "downloaded"
	case StateMetadataRewritten:
		return "metadata_rewritten"
	case StateBytesUploaded:
		return "bytes_uploaded"
	case StateItemCreated:
		return "item_created"
	case StateRecordPersisted:
		return "record_persisted"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Terminal reports whether no further transition can follow s.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// Transition is reported to the observer on every state change.
type Transition struct {
	JobID string
	From  State
	To    State
	Err   error
}
