package events

// Event is a structured state change emitted by the venue during an
// operation. Attributes are flat strings so downstream consumers (indexers,
// websockets, logs) need no schema knowledge.
type Event struct {
	Type       string            `json:"type"`
	Height     uint64            `json:"height"`
	Attributes map[string]string `json:"attributes"`
}

// Emitter broadcasts events to downstream subscribers.
type Emitter interface {
	Emit(Event)
}

// NoopEmitter satisfies Emitter while discarding all events, for components
// that expose events optionally.
type NoopEmitter struct{}

func (NoopEmitter) Emit(Event) {}

// FanOut forwards every event to each registered emitter in order.
type FanOut struct {
	emitters []Emitter
}

func NewFanOut(emitters ...Emitter) *FanOut {
	return &FanOut{emitters: append([]Emitter{}, emitters...)}
}

// Register appends another downstream emitter.
func (f *FanOut) Register(e Emitter) {
	if f == nil || e == nil {
		return
	}
	f.emitters = append(f.emitters, e)
}

func (f *FanOut) Emit(evt Event) {
	if f == nil {
		return
	}
	for _, e := range f.emitters {
		e.Emit(evt)
	}
}
