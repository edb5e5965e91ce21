//go:build !linux || !cgo

package journal

import "errors"

// SDJournalOpener is unavailable without cgo on linux.
type SDJournalOpener struct {
	Dir   string
	Files []string
}

// OpenHandle always fails with an OpenError.
func (o SDJournalOpener) OpenHandle() (ReadHandle, error) {
	return nil, &OpenError{Source: "system", Err: errors.New("reading the systemd journal requires linux and cgo")}
}
