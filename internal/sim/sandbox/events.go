package sandbox

import "fmt"

type Action string

const (
	ActionDisposeStructure Action = "dispose_structure"
	ActionDisposeReactor   Action = "dispose_reactor"
	ActionToggleReactor    Action = "toggle_reactor"
	ActionSetIntegrity     Action = "set_integrity"
	ActionSetPower         Action = "set_power"
)

// Event is a scheduled change to world state. Reactor targets are written
// "structure/reactor".
type Event struct {
	AtTick uint64
	Action Action
	Target string
	Value  float64
}

func (w *World) fireEvents(tick uint64) {
	n := 0
	for n < len(w.events) && w.events[n].AtTick <= tick {
		n++
	}
	due := w.events[:n]
	w.events = w.events[n:]
	for _, ev := range due {
		_ = w.apply(ev)
	}
}

func (w *World) apply(ev Event) error {
	switch ev.Action {
	case ActionDisposeStructure:
		s := w.StructureByName(ev.Target)
		if s == nil {
			return fmt.Errorf("unknown structure %q", ev.Target)
		}
		w.DisposeStructure(s)
		return nil
	case ActionDisposeReactor, ActionToggleReactor, ActionSetIntegrity, ActionSetPower:
		r := w.ReactorByPath(ev.Target)
		if r == nil {
			return fmt.Errorf("unknown reactor %q", ev.Target)
		}
		switch ev.Action {
		case ActionDisposeReactor:
			w.DisposeReactor(r)
		case ActionToggleReactor:
			r.enabled = !r.enabled
		case ActionSetIntegrity:
			r.integrity = ev.Value
		case ActionSetPower:
			r.power = ev.Value
		}
		return nil
	default:
		return fmt.Errorf("unknown action %q", ev.Action)
	}
}

// ReactorByPath finds a live reactor by "structure/reactor".
func (w *World) ReactorByPath(path string) *Reactor {
	for _, s := range w.structures {
		for _, r := range s.Reactors() {
			if s.Name+"/"+r.Name == path {
				return r
			}
		}
	}
	return nil
}
