package domain

// Phase is the global build lifecycle stage. Phases are serialised: the
// next one is entered only once the current phase's tasks have quiesced.
type Phase uint8

const (
	// PhaseLoad covers buildfile loading and target synthesis.
	PhaseLoad Phase = iota
	// PhaseMatch covers rule selection and recipe preparation.
	PhaseMatch
	// PhaseExecute covers recipe invocation.
	PhaseExecute
)

var phaseNames = [...]string{"load", "match", "execute"}

// String returns the lower-case phase name.
func (p Phase) String() string {
	if int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return "invalid"
}
