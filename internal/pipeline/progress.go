package pipeline

// Progress observes the run's phases for console rendering. Implementations
// must tolerate being called from a single goroutine only; the pipeline is
// strictly sequential.
type Progress interface {
	// StartPhase begins a named phase with a known step total.
	StartPhase(name string, total int)
	// Advance completes one step, with a short human description.
	Advance(description string)
	// EndPhase closes the current phase.
	EndPhase()
}

type nopProgress struct{}

func (nopProgress) StartPhase(string, int) {}
func (nopProgress) Advance(string)         {}
func (nopProgress) EndPhase()              {}
