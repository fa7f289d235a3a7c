package duplicates

import "errors"

var (
	// ErrUnreadableSource marks a file whose text cannot be decoded or
	// tokenized. The file is skipped and the run continues.
	ErrUnreadableSource = errors.New("unreadable source")

	// ErrEmptyTree is returned when one side of the comparison has no files.
	ErrEmptyTree = errors.New("empty tree")

	// ErrConfigurationInvalid is returned before any work starts when the
	// detector settings are unusable.
	ErrConfigurationInvalid = errors.New("invalid configuration")
)
