// ABOUTME: Tests for the diary service
// ABOUTME: Covers validation, snapshot invalidation, freshness and batch triggers

package diary

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solacehq/solace/internal/analysis"
	"github.com/solacehq/solace/internal/store"
)

type submission struct {
	targetKind string
	targetID   int64
	taskType   string
	priority   int
}

type recordingSubmitter struct {
	submissions []submission
	err         error
}

func (s *recordingSubmitter) Create(_ context.Context, targetKind string, targetID, ownerID int64, taskType string, priority int) (*store.AnalysisTask, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.submissions = append(s.submissions, submission{targetKind, targetID, taskType, priority})
	return &store.AnalysisTask{ID: int64(len(s.submissions)), TargetKind: targetKind, TargetID: targetID, OwnerID: ownerID}, nil
}

func newDiaryFixture(t *testing.T) (*Service, *store.SQLiteStore, *recordingSubmitter) {
	t.Helper()
	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	submitter := &recordingSubmitter{}
	return NewService(st, submitter, nil), st, submitter
}

func validInput() *Input {
	return &Input{
		EntryDate:       "2026-08-30",
		Content:         "long day at work",
		MoodScore:       4,
		DominantEmotion: "tired",
		SleepQuality:    3,
		StressLevel:     4,
	}
}

func TestCreateEntry(t *testing.T) {
	svc, _, submitter := newDiaryFixture(t)
	ctx := context.Background()

	entry, err := svc.CreateEntry(ctx, 1, validInput())
	require.NoError(t, err)
	assert.NotZero(t, entry.ID)

	// An automatic analysis task is fired for the new entry
	require.Len(t, submitter.submissions, 1)
	sub := submitter.submissions[0]
	assert.Equal(t, store.TargetKindDiary, sub.targetKind)
	assert.Equal(t, entry.ID, sub.targetID)
	assert.Equal(t, store.TaskTypeAuto, sub.taskType)
}

func TestCreateEntry_Validation(t *testing.T) {
	svc, _, _ := newDiaryFixture(t)
	ctx := context.Background()

	in := validInput()
	in.MoodScore = 0
	_, err := svc.CreateEntry(ctx, 1, in)
	assert.ErrorIs(t, err, ErrInvalidMoodScore)

	in = validInput()
	in.MoodScore = 11
	_, err = svc.CreateEntry(ctx, 1, in)
	assert.ErrorIs(t, err, ErrInvalidMoodScore)

	in = validInput()
	in.EntryDate = "30/08/2026"
	_, err = svc.CreateEntry(ctx, 1, in)
	assert.ErrorIs(t, err, ErrInvalidEntryDate)
}

func TestUpdateEntry_InvalidatesAnalysis(t *testing.T) {
	svc, st, submitter := newDiaryFixture(t)
	ctx := context.Background()

	entry, err := svc.CreateEntry(ctx, 1, validInput())
	require.NoError(t, err)

	require.NoError(t, st.UpdateDiaryAnalysis(ctx, entry.ID, `{"primaryEmotion":"tired"}`, time.Now().UTC()))

	in := validInput()
	in.Content = "the evening turned it around"
	in.MoodScore = 7
	updated, err := svc.UpdateEntry(ctx, entry.ID, in)
	require.NoError(t, err)
	assert.Equal(t, 7, updated.MoodScore)
	assert.Empty(t, updated.Analysis)

	got, err := st.GetDiaryEntry(ctx, entry.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Analysis, "edit must clear the stale snapshot")
	assert.Nil(t, got.AnalysisUpdatedAt)

	// Create plus update both enqueued analysis
	assert.Len(t, submitter.submissions, 2)
}

func TestAnalysis(t *testing.T) {
	svc, st, _ := newDiaryFixture(t)
	ctx := context.Background()

	entry, err := svc.CreateEntry(ctx, 1, validInput())
	require.NoError(t, err)

	// No snapshot yet
	result, err := svc.Analysis(ctx, entry.ID)
	require.NoError(t, err)
	assert.Nil(t, result)

	raw, err := json.Marshal(&analysis.Result{PrimaryEmotion: "tired", EmotionScore: 40})
	require.NoError(t, err)
	require.NoError(t, st.UpdateDiaryAnalysis(ctx, entry.ID, string(raw), time.Now().UTC()))

	result, err = svc.Analysis(ctx, entry.ID)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, "tired", result.PrimaryEmotion)
}

func TestTriggerAnalysis_AlwaysEnqueues(t *testing.T) {
	svc, st, submitter := newDiaryFixture(t)
	ctx := context.Background()

	entry, err := svc.CreateEntry(ctx, 1, validInput())
	require.NoError(t, err)
	submitter.submissions = nil

	// A recent snapshot does not short-circuit the trigger
	require.NoError(t, st.UpdateDiaryAnalysis(ctx, entry.ID, `{"primaryEmotion":"tired"}`, time.Now().UTC()))

	task, err := svc.TriggerAnalysis(ctx, entry.ID, store.TaskTypeManual, store.PriorityNormal)
	require.NoError(t, err)
	require.NotNil(t, task)
	require.Len(t, submitter.submissions, 1)
	assert.Equal(t, store.TaskTypeManual, submitter.submissions[0].taskType)

	_, err = svc.TriggerAnalysis(ctx, entry.ID, store.TaskTypeAdmin, store.PriorityHigh)
	require.NoError(t, err)
	require.Len(t, submitter.submissions, 2)
	assert.Equal(t, store.TaskTypeAdmin, submitter.submissions[1].taskType)
	assert.Equal(t, store.PriorityHigh, submitter.submissions[1].priority)
}

func TestTriggerAnalysis_UnknownEntry(t *testing.T) {
	svc, _, submitter := newDiaryFixture(t)

	_, err := svc.TriggerAnalysis(context.Background(), 9999, store.TaskTypeManual, store.PriorityNormal)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Empty(t, submitter.submissions)
}

func TestBatchTrigger_Isolation(t *testing.T) {
	svc, _, submitter := newDiaryFixture(t)
	ctx := context.Background()

	a, err := svc.CreateEntry(ctx, 1, validInput())
	require.NoError(t, err)
	in := validInput()
	in.EntryDate = "2026-08-29"
	b, err := svc.CreateEntry(ctx, 1, in)
	require.NoError(t, err)
	submitter.submissions = nil

	enqueued, failures := svc.BatchTrigger(ctx, []int64{a.ID, 9999, b.ID}, store.PriorityLow)
	assert.Equal(t, 2, enqueued)
	require.Len(t, failures, 1)
	assert.Contains(t, failures[9999], "not found")

	for _, sub := range submitter.submissions {
		assert.Equal(t, store.TaskTypeBatch, sub.taskType)
	}
}
