package crawl

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"Nil", nil, ""},
		{"Exhausted", fmt.Errorf("images: %w", ErrQueueExhausted), KindQueueExhausted},
		{"Network", &NetworkError{URL: "u", Err: context.DeadlineExceeded}, KindNetwork},
		{"Status", &NetworkError{URL: "u", StatusCode: 404}, KindNetwork},
		{"Parse", &ParseError{URL: "u", Err: errors.New("x")}, KindParse},
		{"Other", errors.New("x"), KindOther},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestNetworkErrorMessage(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "http status 404: https://img/a.jpg",
		(&NetworkError{URL: "https://img/a.jpg", StatusCode: 404}).Error())

	err := &NetworkError{URL: "https://img/a.jpg", Err: context.Canceled}
	assert.Equal(t, "fetch https://img/a.jpg: context canceled", err.Error())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStageCycle(t *testing.T) {
	t.Parallel()

	s := StageIdle
	var seen []string
	for range 5 {
		seen = append(seen, s.String())
		s = s.Next()
	}
	assert.Equal(t, []string{"idle", "page", "sub_page", "image", "idle"}, seen)
}

func TestOutcomeTerminal(t *testing.T) {
	t.Parallel()

	assert.False(t, Progress(ProgressPage).Terminal())
	assert.True(t, Completed(nil, "u").Terminal())
	assert.True(t, Failed("boom").Terminal())
	assert.Equal(t, KindOther, Failed("boom").ErrKind)
	assert.Equal(t, "failed", OutcomeFailed.String())
}

func TestFailedFromCarriesKind(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"Exhausted", ErrQueueExhausted, KindQueueExhausted},
		{"Network", &NetworkError{URL: "u", StatusCode: 500}, KindNetwork},
		{"Parse", &ParseError{URL: "u", Err: errors.New("bad")}, KindParse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			out := FailedFrom(tt.err)
			assert.Equal(t, OutcomeFailed, out.Kind)
			assert.Equal(t, tt.err.Error(), out.Message)
			assert.Equal(t, tt.want, out.ErrKind)
		})
	}
}

func TestProgressNamesFinishedStage(t *testing.T) {
	t.Parallel()

	assert.Equal(t, StageIdle, Progress(ProgressIdle).Stage)
	assert.Equal(t, StagePage, Progress(ProgressPage).Stage)
	assert.Equal(t, StageSubPage, Progress(ProgressSubPage).Stage)
}
