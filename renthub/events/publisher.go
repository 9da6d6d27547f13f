package events

import (
	"github.com/ninja-syndicate/ws"
	"github.com/sasha-s/go-deadlock"
)

// WSPublisher pushes events over the websocket tree consumed by live
// indexers and frontends.
type WSPublisher struct{}

func NewWSPublisher() *WSPublisher {
	return &WSPublisher{}
}

func (p *WSPublisher) Publish(uri string, key string, payload interface{}) {
	ws.PublishMessage(uri, key, payload)
}

// Recorded is one captured event, used by tests and the dev mode recorder.
type Recorded struct {
	URI     string
	Key     string
	Payload interface{}
}

// Recorder captures published events in order.
type Recorder struct {
	deadlock.Mutex
	Events []Recorded
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Publish(uri string, key string, payload interface{}) {
	r.Lock()
	defer r.Unlock()
	r.Events = append(r.Events, Recorded{URI: uri, Key: key, Payload: payload})
}

// ByKey returns the captured events matching key, oldest first.
func (r *Recorder) ByKey(key string) []Recorded {
	r.Lock()
	defer r.Unlock()

	out := []Recorded{}
	for _, e := range r.Events {
		if e.Key == key {
			out = append(out, e)
		}
	}
	return out
}
