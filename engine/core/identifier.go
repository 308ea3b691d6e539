package core

import (
	"github.com/google/uuid"
)

// ResourceID tags GPU resources and documents so log lines from upload,
// release and reload can be correlated.
type ResourceID string

func NewResourceID() ResourceID {
	return ResourceID(uuid.NewString())
}

// Short returns the first block of the identifier for log output.
func (id ResourceID) Short() string {
	s := string(id)
	if len(s) > 8 {
		return s[:8]
	}
	return s
}
