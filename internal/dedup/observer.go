package dedup

// Observer receives per-file progress from the pipeline.
// Hashing is called from worker goroutines and must be safe for concurrent use.
type Observer interface {
	// Hashing is called just before a file's content is hashed.
	Hashing(path string)

	// Removed is called after a redundant member was deleted.
	Removed(group *DuplicateGroup, path string)

	// RemoveFailed is called when deleting a redundant member failed.
	RemoveFailed(group *DuplicateGroup, path string, err error)
}

// NopObserver ignores all notifications.
type NopObserver struct{}

func (NopObserver) Hashing(string)                              {}
func (NopObserver) Removed(*DuplicateGroup, string)             {}
func (NopObserver) RemoveFailed(*DuplicateGroup, string, error) {}
