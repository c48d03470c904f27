package module

import "fmt"

// Stage is a lifecycle phase. Stages are ordered; Running is never delivered
// to modules and is only observed between PostInit and PreDeinit.
type Stage int32

const (
	StageLoad Stage = iota
	StagePreInit
	StageInit
	StagePostInit
	StageRunning
	StagePreDeinit
	StageDeinit
	StagePostDeinit
)

// InitStages are delivered in dependency-first order.
var InitStages = []Stage{StageLoad, StagePreInit, StageInit, StagePostInit}

// DeinitStages are delivered in reverse dependency order.
var DeinitStages = []Stage{StagePreDeinit, StageDeinit, StagePostDeinit}

func (s Stage) String() string {
	switch s {
	case StageLoad:
		return "Load"
	case StagePreInit:
		return "PreInit"
	case StageInit:
		return "Init"
	case StagePostInit:
		return "PostInit"
	case StageRunning:
		return "Running"
	case StagePreDeinit:
		return "PreDeinit"
	case StageDeinit:
		return "Deinit"
	case StagePostDeinit:
		return "PostDeinit"
	default:
		return fmt.Sprintf("Unknown(%d)", int32(s))
	}
}

// ParseStage is the inverse of Stage.String.
func ParseStage(s string) (Stage, error) {
	for st := StageLoad; st <= StagePostDeinit; st++ {
		if st.String() == s {
			return st, nil
		}
	}
	return 0, fmt.Errorf("unknown lifecycle stage %q", s)
}
