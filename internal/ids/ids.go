package ids

import "github.com/segmentio/ksuid"

// New returns a k-sortable unique id. Ids sort by creation second, which keeps
// recent photos adjacent in the primary key index.
func New() string {
	return ksuid.New().String()
}

// Valid reports whether s parses as an id produced by New.
func Valid(s string) bool {
	_, err := ksuid.Parse(s)
	return err == nil
}
