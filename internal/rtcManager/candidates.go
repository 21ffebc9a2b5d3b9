package rtcManager

import (
	"github.com/gammazero/deque"
	"github.com/pion/webrtc/v4"
)

// pendingCandidates holds remote candidates that arrived before the remote
// description was applied. They are replayed in arrival order.
type pendingCandidates struct {
	queue deque.Deque[webrtc.ICECandidateInit]
}

func (p *pendingCandidates) push(c webrtc.ICECandidateInit) {
	p.queue.PushBack(c)
}

func (p *pendingCandidates) len() int {
	return p.queue.Len()
}

// drain pops every buffered candidate in order and hands it to add.
// A failing candidate does not stop the rest.
func (p *pendingCandidates) drain(add func(webrtc.ICECandidateInit)) {
	for p.queue.Len() > 0 {
		add(p.queue.PopFront())
	}
}

func (p *pendingCandidates) clear() {
	p.queue.Clear()
}
