package events

import "sync"

// Recorder keeps every event in memory. It is meant for tests and dry runs.
type Recorder struct {
	mu     sync.Mutex
	Events []Record
}

// Record is one captured event.
type Record struct {
	Name  string
	Path  string
	Err   error
	Count int
	Bytes int64
}

func (r *Recorder) add(rec Record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Events = append(r.Events, rec)
}

func (r *Recorder) ScanError(path string, reason error) {
	r.add(Record{Name: ScanErrorEvent, Path: path, Err: reason})
}

func (r *Recorder) FilesDeletedAge(count int) {
	r.add(Record{Name: FilesDeletedAgeEvent, Count: count})
}

func (r *Recorder) FilesDeletedSize(count int, bytes int64) {
	r.add(Record{Name: FilesDeletedSizeEvent, Count: count, Bytes: bytes})
}

func (r *Recorder) DeleteError(path string, reason error) {
	r.add(Record{Name: DeleteErrorEvent, Path: path, Err: reason})
}

// Named returns the captured events with the given name.
func (r *Recorder) Named(name string) []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Record
	for _, e := range r.Events {
		if e.Name == name {
			out = append(out, e)
		}
	}
	return out
}

// Len returns the number of captured events.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Events)
}
