package crawl

// OutcomeKind tags the variant held by an Outcome.
type OutcomeKind int

// Outcome variants.
const (
	OutcomeProgress OutcomeKind = iota
	OutcomeCompleted
	OutcomeFailed
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeProgress:
		return "progress"
	case OutcomeCompleted:
		return "completed"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Coarse progress milestones announced when a stage finishes.
const (
	ProgressIdle     float64 = 1
	ProgressPage     float64 = 10
	ProgressSubPage  float64 = 20
	ProgressComplete float64 = 30
)

// Outcome is the result of a single Step. Only the fields belonging to Kind
// are populated.
type Outcome struct {
	Kind OutcomeKind
	// Percent and Stage are set for progress outcomes. Stage is the stage
	// that just finished.
	Percent float64
	Stage   Stage
	// Body and SourceURL are set for completed outcomes.
	Body      []byte
	SourceURL string
	// Message and ErrKind are set for failed outcomes.
	Message string
	ErrKind ErrorKind
}

// Progress announces that a stage finished.
func Progress(percent float64) Outcome {
	return Outcome{Kind: OutcomeProgress, Percent: percent, Stage: milestoneStage(percent)}
}

func milestoneStage(percent float64) Stage {
	switch percent {
	case ProgressPage:
		return StagePage
	case ProgressSubPage:
		return StageSubPage
	case ProgressComplete:
		return StageImage
	default:
		return StageIdle
	}
}

// Completed carries a downloaded image.
func Completed(body []byte, sourceURL string) Outcome {
	return Outcome{Kind: OutcomeCompleted, Body: body, SourceURL: sourceURL}
}

// Failed aborts the current cycle with a human readable message.
func Failed(message string) Outcome {
	return Outcome{Kind: OutcomeFailed, Message: message, ErrKind: KindOther}
}

// FailedFrom builds a failed outcome from a step error, keeping its kind.
func FailedFrom(err error) Outcome {
	return Outcome{Kind: OutcomeFailed, Message: err.Error(), ErrKind: Classify(err)}
}

// Terminal reports whether the outcome ends a gated cycle.
func (o Outcome) Terminal() bool {
	return o.Kind == OutcomeCompleted || o.Kind == OutcomeFailed
}
