package policy

// Usage is the view of the inventory a size policy decides on.
type Usage struct {
	// Remaining is the total size of files the age phase left in place.
	Remaining int64
	// Freed is the total size of files the age phase already selected.
	Freed int64
}

// Policy decides whether the size phase has to run.
type Policy interface {
	// BytesToFree returns the number of bytes that should be deleted.
	// Returns 0 if nothing needs to go.
	BytesToFree(usage Usage) (int64, error)
}
