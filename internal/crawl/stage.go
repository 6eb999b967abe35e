package crawl

// Stage is the active phase of a crawl cycle.
type Stage int

// Crawl stages in their cyclic order.
const (
	StageIdle Stage = iota
	StagePage
	StageSubPage
	StageImage
)

// Next returns the stage that follows s in the cycle.
func (s Stage) Next() Stage {
	switch s {
	case StageIdle:
		return StagePage
	case StagePage:
		return StageSubPage
	case StageSubPage:
		return StageImage
	default:
		return StageIdle
	}
}

func (s Stage) String() string {
	switch s {
	case StageIdle:
		return "idle"
	case StagePage:
		return "page"
	case StageSubPage:
		return "sub_page"
	case StageImage:
		return "image"
	default:
		return "unknown"
	}
}
