package viewer

import (
	"sync"

	"github.com/spaghettifunk/texlab/engine/renderer/metadata"
)

// Request asks the loop to load a new source, either from a path or from an
// already decoded image, and optionally to switch settings first.
type Request struct {
	Path     string
	Image    *metadata.Image
	Settings *Settings
}

func (r *Request) String() string {
	switch {
	case r.Path != "":
		return r.Path
	case r.Image != nil:
		return "in-memory image"
	default:
		return "settings change"
	}
}

// PendingSlot holds at most one request. A newer request replaces an older
// one that was never taken.
type PendingSlot struct {
	mutex   sync.Mutex
	request *Request
}

// Update replaces the waiting request with whatever merge returns for it.
// merge runs under the slot lock and receives nil when the slot is empty.
func (p *PendingSlot) Update(merge func(waiting *Request) *Request) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.request = merge(p.request)
}

// Take empties the slot.
func (p *PendingSlot) Take() *Request {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	r := p.request
	p.request = nil
	return r
}

func (p *PendingSlot) IsEmpty() bool {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.request == nil
}
