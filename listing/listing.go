// Package listing decodes FTP directory listings into structured entries.
//
// Two decoders are provided: DecodeMachine for RFC 3659 fact-delimited
// MLSD output, and DecodeLegacy for the unstructured LIST output that
// pre-dates it. Both preserve entry order and read the caller's sink
// without closing it.
package listing

import (
	"time"
)

// Kind classifies a directory entry.
type Kind int

const (
	// KindUnknown marks entries whose type the server did not report
	// or that no heuristic could classify.
	KindUnknown Kind = iota

	// KindFile is a regular file.
	KindFile

	// KindDir is a directory, including the "." and ".." entries some
	// servers emit.
	KindDir

	// KindLink is a symbolic link.
	KindLink
)

func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindDir:
		return "dir"
	case KindLink:
		return "link"
	default:
		return "unknown"
	}
}

// FileEntry is one decoded directory entry. Entries are immutable once
// produced.
type FileEntry struct {
	// Name is the entry name as the server reported it
	Name string

	// Kind is the entry classification
	Kind Kind

	// Size is the size in bytes, or -1 when the server did not report one
	Size int64

	// Modified is the modification time, zero when unknown. Machine
	// listings report UTC; legacy listings are interpreted in UTC too
	// since the server's zone is unknowable.
	Modified time.Time

	// Target is the link target for KindLink entries
	Target string

	// Facts holds machine-listing facts that were not consumed into the
	// fields above, keyed by lowercased fact name. Nil for legacy entries.
	Facts map[string]string
}
