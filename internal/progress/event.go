package progress

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/JakeFAU/gallery-crawler/internal/crawl"
)

// Stage denotes the kind of milestone an Event records.
type Stage string

// Supported event stages.
const (
	StageSignal       Stage = "SIGNAL"
	StageStepProgress Stage = "STEP_PROGRESS"
	StageImageDone    Stage = "IMAGE_DONE"
	StageCycleError   Stage = "CYCLE_ERROR"
)

// Event captures one observable step of a crawl session.
type Event struct {
	// SessionID identifies the process-wide crawl session.
	SessionID [16]byte
	TS        time.Time
	Stage     Stage
	// Site is the host of URL, used as a low-cardinality label.
	Site string
	URL  string
	// Percent is the coarse milestone reached by the cycle.
	Percent float64
	// Bytes is the image size for IMAGE_DONE.
	Bytes int64
	// Dur is the time since the cycle's advance request.
	Dur time.Duration
	// Note carries the failure message or the signal source.
	Note string
	// StepStage names the finished crawl stage for STEP_PROGRESS.
	StepStage string
	// ErrKind classifies the failure for CYCLE_ERROR.
	ErrKind string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.SessionID == [16]byte{} {
		return errors.New("session id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageSignal, StageStepProgress:
	case StageImageDone:
		if e.URL == "" {
			return errors.New("image done requires url")
		}
	case StageCycleError:
		if e.Note == "" {
			return errors.New("cycle error requires note")
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}

// SessionUUID converts the binary session ID to uuid.UUID.
func (e Event) SessionUUID() uuid.UUID {
	return uuid.UUID(e.SessionID)
}

// UUIDToBytes encodes a uuid.UUID into the Event form.
func UUIDToBytes(id uuid.UUID) [16]byte {
	var dest [16]byte
	copy(dest[:], id[:])
	return dest
}

// FromOutcome maps a crawl outcome onto an Event.
func FromOutcome(sessionID [16]byte, ts time.Time, outcome crawl.Outcome, dur time.Duration) Event {
	evt := Event{SessionID: sessionID, TS: ts, Dur: dur}
	switch outcome.Kind {
	case crawl.OutcomeCompleted:
		evt.Stage = StageImageDone
		evt.URL = outcome.SourceURL
		evt.Site = siteOf(outcome.SourceURL)
		evt.Bytes = int64(len(outcome.Body))
		evt.Percent = crawl.ProgressComplete
	case crawl.OutcomeFailed:
		evt.Stage = StageCycleError
		evt.Note = outcome.Message
		evt.ErrKind = string(outcome.ErrKind)
	default:
		evt.Stage = StageStepProgress
		evt.Percent = outcome.Percent
		evt.StepStage = outcome.Stage.String()
	}
	return evt
}

func siteOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return u.Hostname()
}
