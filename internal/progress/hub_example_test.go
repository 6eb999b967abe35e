package progress

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/JakeFAU/gallery-crawler/internal/crawl"
)

type exampleCountingSink struct {
	total int
}

func (s *exampleCountingSink) Consume(_ context.Context, batch []Event) error {
	s.total += len(batch)
	return nil
}

func (s *exampleCountingSink) Close(context.Context) error {
	return nil
}

// ExampleHub_Emit demonstrates emitting an event and flushing via Close.
func ExampleHub_Emit() {
	sink := &exampleCountingSink{}
	hub := NewHub(Config{
		BufferSize:     4,
		MaxBatchEvents: 1,
		MaxBatchWait:   time.Second,
	}, sink)

	hub.Emit(Event{
		SessionID: UUIDToBytes(uuid.MustParse("00000000-0000-0000-0000-000000000001")),
		TS:        time.Unix(0, 0),
		Stage:     StageSignal,
		Note:      "manual",
	})
	if err := hub.Close(context.Background()); err != nil {
		panic(err)
	}

	fmt.Printf("events forwarded: %d\n", sink.total)
	// Output:
	// events forwarded: 1
}

// ExampleFromOutcome shows how a completed download becomes an event.
func ExampleFromOutcome() {
	id := UUIDToBytes(uuid.MustParse("00000000-0000-0000-0000-000000000002"))
	outcome := crawl.Completed([]byte("jpeg-bytes"), "https://img.example.com/a.jpg")

	evt := FromOutcome(id, time.Unix(0, 0), outcome, time.Second)
	fmt.Println(evt.Stage, evt.Site, evt.Bytes, evt.Percent)
	// Output:
	// IMAGE_DONE img.example.com 10 30
}
