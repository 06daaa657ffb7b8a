package types

// Record is an untyped image record as read from a backend, before
// normalization. Values keep whatever encoding the backend produced
// (strings for booleans, json.Number or float64 for numbers, ...).
type Record map[string]interface{}

// UUID returns the record's uuid field, or "" if absent or not a string.
func (r Record) UUID() string {
	s, _ := r["uuid"].(string)
	return s
}

// Manifest is the canonical, strictly typed form of a Record that is
// written to the archive. It keeps the Record's keys; known fields carry
// native types (see the normalize package).
type Manifest map[string]interface{}

// UUID returns the manifest's uuid field, or "" if absent.
func (m Manifest) UUID() string {
	s, _ := m["uuid"].(string)
	return s
}

// Manifest field names with coercion rules.
const (
	FieldUUID              = "uuid"
	FieldActivated         = "activated"
	FieldDisabled          = "disabled"
	FieldPublic            = "public"
	FieldGeneratePasswords = "generate_passwords"
	FieldImageSize         = "image_size"
	FieldTags              = "tags"
	FieldFiles             = "files"
)

// File descriptor fields kept in the canonical form. Any other key on a
// files element is dropped.
const (
	FileSHA1        = "sha1"
	FileSize        = "size"
	FileCompression = "compression"
	FileDatasetGUID = "dataset_guid"
)

// BoolFields lists the manifest fields coerced from "true"/"false".
var BoolFields = []string{
	FieldActivated,
	FieldDisabled,
	FieldPublic,
	FieldGeneratePasswords,
}

// FileFields lists the retained file descriptor fields in output order.
var FileFields = []string{
	FileSHA1,
	FileSize,
	FileCompression,
	FileDatasetGUID,
}

// DatabaseType selects the record backend.
type DatabaseType string

const (
	DatabaseMoray DatabaseType = "moray"
	DatabaseLocal DatabaseType = "local"
)

// RunState is the state of a migration run.
type RunState string

const (
	StateIdle        RunState = "idle"
	StateEnumerating RunState = "enumerating"
	StateProcessing  RunState = "processing"
	StateDone        RunState = "done"
	StateFailed      RunState = "failed"
)

// IsTerminal reports whether the run has ended.
func (s RunState) IsTerminal() bool {
	return s == StateDone || s == StateFailed
}
