package valuestore

// Presence is the three-way answer Has returns (spec.md §4.4 "Read
// protocol").
type Presence int

const (
	// AbsentNeverWritten means the probe reached an empty hash slot: no
	// writer has ever claimed this key.
	AbsentNeverWritten Presence = iota
	// AbsentRemoved means the slot's hash matches but addr is NULL: the
	// master tombstoned a previously-live entry.
	AbsentRemoved
	// Present means the slot holds a live heap address.
	Present
)

func (p Presence) String() string {
	switch p {
	case AbsentNeverWritten:
		return "AbsentNeverWritten"
	case AbsentRemoved:
		return "AbsentRemoved"
	case Present:
		return "Present"
	default:
		return "Presence(?)"
	}
}
