package recorder

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bayardlab/bayard-gateway/internal/storage/models"
)

type fakeDurable struct {
	err  error
	runs []*models.Run
}

func (f *fakeDurable) InsertRun(_ context.Context, run *models.Run) error {
	if f.err != nil {
		return f.err
	}
	f.runs = append(f.runs, run)
	return nil
}

type fakeEphemeral struct {
	err     error
	records []*models.FeedbackRecord
}

func (f *fakeEphemeral) RecordFeedback(_ context.Context, fb *models.FeedbackRecord) error {
	if f.err != nil {
		return f.err
	}
	f.records = append(f.records, fb)
	return nil
}

func TestRecordRun(t *testing.T) {
	durable := &fakeDurable{}
	r := New(durable, &fakeEphemeral{}, nil)

	ok := r.RecordRun(context.Background(), &models.Run{RunID: "run-1"})
	assert.True(t, ok)
	assert.Len(t, durable.runs, 1)
}

func TestRecordRun_FailureIsSwallowed(t *testing.T) {
	durable := &fakeDurable{err: errors.New("store unreachable")}
	r := New(durable, &fakeEphemeral{}, nil)

	// Failure is reported, not raised: nothing panics and no error type
	// escapes for the orchestrator to propagate.
	ok := r.RecordRun(context.Background(), &models.Run{RunID: "run-1"})
	assert.False(t, ok)
}

func TestRecordFeedback_FailureIsSwallowed(t *testing.T) {
	ephemeral := &fakeEphemeral{err: errors.New("redis down")}
	r := New(&fakeDurable{}, ephemeral, nil)

	ok := r.RecordFeedback(context.Background(), &models.FeedbackRecord{FeedbackID: "fb-1"})
	assert.False(t, ok)
}
