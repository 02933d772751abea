package conflict

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/managemate/mmrt/mocks"
	"github.com/managemate/mmrt/pkg/events"
	"github.com/managemate/mmrt/pkg/storage"
	"github.com/managemate/mmrt/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var base = time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)

func at(hours int) *time.Time {
	t := base.Add(time.Duration(hours) * time.Hour)
	return &t
}

func newTask(id string, assignees []string, start, end int) *types.Task {
	return &types.Task{
		ID:          id,
		Title:       "Task " + id,
		AssigneeIDs: assignees,
		Status:      types.TaskStatusInProgress,
		StartDate:   at(start),
		Deadline:    at(end),
	}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*events.ConflictEvent
}

func (p *recordingPublisher) PublishConflict(_ context.Context, evt *events.ConflictEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return nil
}

func (p *recordingPublisher) take() []*events.ConflictEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := p.events
	p.events = nil
	sort.Slice(out, func(i, j int) bool {
		if out[i].TaskID == out[j].TaskID {
			return out[i].UserID < out[j].UserID
		}
		return out[i].TaskID < out[j].TaskID
	})
	return out
}

func setup(t *testing.T, pageSize int, tasks ...*types.Task) (*Detector, *storage.BoltStore, *recordingPublisher) {
	t.Helper()
	store, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	for _, task := range tasks {
		require.NoError(t, store.CreateTask(task))
	}

	pub := &recordingPublisher{}
	return NewDetector(store, pub, pageSize), store, pub
}

func getTask(t *testing.T, store *storage.BoltStore, id string) *types.Task {
	t.Helper()
	task, err := store.GetTask(id)
	require.NoError(t, err)
	return task
}

func TestOverlapFlagsOnceAndIsIdempotent(t *testing.T) {
	d, store, pub := setup(t, 0,
		newTask("t1", []string{"u1"}, 0, 8),
		newTask("t2", []string{"u1"}, 4, 12),
	)

	res, err := d.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Scanned)
	assert.Equal(t, 2, res.Flagged)
	assert.Equal(t, 2, res.Published)
	assert.Zero(t, res.Errors)

	evts := pub.take()
	require.Len(t, evts, 2)
	assert.Equal(t, "t1", evts[0].TaskID)
	assert.Equal(t, "u1", evts[0].UserID)
	assert.True(t, evts[0].HasConflict)
	assert.Equal(t, []string{"t2"}, evts[0].ConflictsWith)
	assert.Equal(t, []string{"t1"}, evts[1].ConflictsWith)

	assert.True(t, getTask(t, store, "t1").HasConflict)
	assert.Equal(t, []string{"t1"}, getTask(t, store, "t2").ConflictsWith)

	res, err = d.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.Published)
	assert.Zero(t, res.Updated)
	assert.Empty(t, pub.take())
}

func TestResolvedOverlapClearsBoth(t *testing.T) {
	d, store, pub := setup(t, 0,
		newTask("t1", []string{"u1"}, 0, 8),
		newTask("t2", []string{"u1"}, 4, 12),
	)
	_, err := d.Run(context.Background())
	require.NoError(t, err)
	pub.take()

	t2 := getTask(t, store, "t2")
	t2.StartDate, t2.Deadline = at(8), at(12)
	require.NoError(t, store.UpdateTask(t2))

	res, err := d.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Cleared)

	evts := pub.take()
	require.Len(t, evts, 2)
	for _, evt := range evts {
		assert.False(t, evt.HasConflict)
		assert.Empty(t, evt.ConflictsWith)
	}
	assert.False(t, getTask(t, store, "t1").HasConflict)
	assert.False(t, getTask(t, store, "t2").HasConflict)
	assert.Empty(t, getTask(t, store, "t2").ConflictsWith)
}

func TestClosedTaskClearsStaleFlag(t *testing.T) {
	d, store, pub := setup(t, 0,
		newTask("t1", []string{"u1"}, 0, 8),
		newTask("t2", []string{"u1", "u2"}, 4, 12),
	)
	_, err := d.Run(context.Background())
	require.NoError(t, err)
	pub.take()

	t2 := getTask(t, store, "t2")
	t2.Status = types.TaskStatusClosed
	require.NoError(t, store.UpdateTask(t2))

	res, err := d.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Cleared)
	assert.Equal(t, 3, res.Published)

	evts := pub.take()
	require.Len(t, evts, 3)
	assert.Equal(t, "t1", evts[0].TaskID)
	assert.Equal(t, "t2", evts[1].TaskID)
	assert.Equal(t, "u1", evts[1].UserID)
	assert.Equal(t, "u2", evts[2].UserID)
	assert.False(t, getTask(t, store, "t2").HasConflict)
}

func TestMissingDatesClearStaleFlag(t *testing.T) {
	t1 := newTask("t1", []string{"u1"}, 0, 8)
	t1.Deadline = nil
	t1.HasConflict = true
	t1.ConflictsWith = []string{"gone"}
	d, store, pub := setup(t, 0, t1)

	res, err := d.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Cleared)
	assert.Zero(t, res.Eligible)
	require.Len(t, pub.take(), 1)
	assert.False(t, getTask(t, store, "t1").HasConflict)
}

func TestMalformedWindowSkipped(t *testing.T) {
	d, store, pub := setup(t, 0,
		newTask("t1", []string{"u1"}, 0, 8),
		newTask("bad", []string{"u1"}, 6, 2),
	)

	res, err := d.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, 1, res.Eligible)
	assert.Zero(t, res.Flagged)
	assert.Empty(t, pub.take())
	assert.False(t, getTask(t, store, "bad").HasConflict)
}

func TestNoConflictAcrossAssignees(t *testing.T) {
	d, _, pub := setup(t, 0,
		newTask("t1", []string{"u1"}, 0, 8),
		newTask("t2", []string{"u2"}, 0, 8),
	)

	res, err := d.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.Flagged)
	assert.Empty(t, pub.take())
}

func TestTouchingWindowsDoNotConflict(t *testing.T) {
	d, _, pub := setup(t, 0,
		newTask("t1", []string{"u1"}, 0, 8),
		newTask("t2", []string{"u1"}, 8, 16),
	)

	res, err := d.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.Flagged)
	assert.Empty(t, pub.take())
}

func TestInactiveTasksIgnored(t *testing.T) {
	done := newTask("t2", []string{"u1"}, 0, 8)
	done.Status = types.TaskStatusDone
	d, _, pub := setup(t, 0, newTask("t1", []string{"u1"}, 0, 8), done)

	res, err := d.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Eligible)
	assert.Zero(t, res.Flagged)
	assert.Empty(t, pub.take())
}

func TestOneEventPerAssignee(t *testing.T) {
	d, _, pub := setup(t, 0,
		newTask("t1", []string{"u1", "u2", "u2", ""}, 0, 8),
		newTask("t2", []string{"u2"}, 4, 12),
	)

	res, err := d.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Flagged)
	assert.Equal(t, 3, res.Published)

	evts := pub.take()
	require.Len(t, evts, 3)
	assert.Equal(t, []string{"u1", "u2", "u2"}, []string{evts[0].UserID, evts[1].UserID, evts[2].UserID})
}

func TestConflictSetChangeUpdatesWithoutEvent(t *testing.T) {
	d, store, pub := setup(t, 0,
		newTask("t1", []string{"u1"}, 0, 10),
		newTask("t2", []string{"u1"}, 2, 4),
	)
	_, err := d.Run(context.Background())
	require.NoError(t, err)
	pub.take()

	require.NoError(t, store.CreateTask(newTask("t3", []string{"u1"}, 8, 12)))

	res, err := d.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Updated)
	assert.Equal(t, 1, res.Flagged)

	evts := pub.take()
	require.Len(t, evts, 1)
	assert.Equal(t, "t3", evts[0].TaskID)
	assert.Equal(t, []string{"t2", "t3"}, getTask(t, store, "t1").ConflictsWith)
}

func TestScanSpansPages(t *testing.T) {
	d, store, pub := setup(t, 2,
		newTask("a", []string{"u1"}, 0, 2),
		newTask("b", []string{"u2"}, 0, 2),
		newTask("c", []string{"u3"}, 0, 2),
		newTask("d", []string{"u4"}, 0, 2),
		newTask("e", []string{"u1"}, 1, 3),
	)

	res, err := d.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, res.Scanned)
	assert.Equal(t, 2, res.Flagged)
	assert.Len(t, pub.take(), 2)
	assert.Equal(t, []string{"e"}, getTask(t, store, "a").ConflictsWith)
}

func TestCancelledContextStopsRun(t *testing.T) {
	d, _, _ := setup(t, 0, newTask("t1", []string{"u1"}, 0, 8))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := d.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPatchFailureContinues(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockTaskStore(ctrl)
	pub := mocks.NewMockPublisher(ctrl)

	store.EXPECT().ListTasksPage("", DefaultPageSize).Return(&storage.TaskPage{
		Tasks: []*types.Task{
			newTask("t1", []string{"u1"}, 0, 8),
			newTask("t2", []string{"u1"}, 4, 12),
		},
	}, nil)
	store.EXPECT().PatchTaskConflict("t1", true, []string{"t2"}).Return(nil, errors.New("write conflict"))
	store.EXPECT().PatchTaskConflict("t2", true, []string{"t1"}).Return(&types.Task{ID: "t2"}, nil)
	pub.EXPECT().PublishConflict(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, evt *events.ConflictEvent) error {
			assert.Equal(t, "t2", evt.TaskID)
			return nil
		})

	res, err := NewDetector(store, pub, 0).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Errors)
	assert.Equal(t, 1, res.Flagged)
	assert.Equal(t, 1, res.Published)
}

func TestPublishFailureCounted(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockTaskStore(ctrl)
	pub := mocks.NewMockPublisher(ctrl)

	store.EXPECT().ListTasksPage("", 10).Return(&storage.TaskPage{
		Tasks: []*types.Task{
			newTask("t1", []string{"u1"}, 0, 8),
			newTask("t2", []string{"u1"}, 4, 12),
		},
	}, nil)
	store.EXPECT().PatchTaskConflict(gomock.Any(), true, gomock.Any()).Return(&types.Task{}, nil).Times(2)
	pub.EXPECT().PublishConflict(gomock.Any(), gomock.Any()).Return(errors.New("broker down")).Times(2)

	res, err := NewDetector(store, pub, 10).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Errors)
	assert.Equal(t, 2, res.Flagged)
	assert.Zero(t, res.Published)
}

func TestScanFailureAbortsRun(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockTaskStore(ctrl)
	pub := mocks.NewMockPublisher(ctrl)

	store.EXPECT().ListTasksPage("", DefaultPageSize).Return(&storage.TaskPage{
		Tasks: []*types.Task{newTask("t1", []string{"u1"}, 0, 8)},
		Next:  "t1",
	}, nil)
	store.EXPECT().ListTasksPage("t1", DefaultPageSize).Return(nil, errors.New("timeout"))

	_, err := NewDetector(store, pub, 0).Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeout")
}

func TestCorruptRecordsSkipped(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockTaskStore(ctrl)
	pub := mocks.NewMockPublisher(ctrl)

	store.EXPECT().ListTasksPage("", DefaultPageSize).Return(&storage.TaskPage{
		Tasks:   []*types.Task{newTask("t1", []string{"u1"}, 0, 8)},
		Corrupt: []string{"broken"},
	}, nil)

	res, err := NewDetector(store, pub, 0).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, 1, res.Scanned)
}

func TestFindOverlaps(t *testing.T) {
	w := func(id string, start, end int, assignees ...string) window {
		return window{id: id, assignees: assignees, start: *at(start), end: *at(end)}
	}

	tests := []struct {
		name    string
		windows []window
		want    map[string][]string
	}{
		{
			name:    "nested window",
			windows: []window{w("a", 0, 10, "u"), w("b", 2, 3, "u")},
			want:    map[string][]string{"a": {"b"}, "b": {"a"}},
		},
		{
			name:    "chain",
			windows: []window{w("a", 0, 3, "u"), w("b", 2, 5, "u"), w("c", 4, 7, "u")},
			want:    map[string][]string{"a": {"b"}, "b": {"a", "c"}, "c": {"b"}},
		},
		{
			name:    "same start",
			windows: []window{w("a", 0, 1, "u"), w("b", 0, 1, "u")},
			want:    map[string][]string{"a": {"b"}, "b": {"a"}},
		},
		{
			name:    "instant at end of window",
			windows: []window{w("a", 4, 4, "u"), w("b", 0, 4, "u")},
			want:    map[string][]string{},
		},
		{
			name:    "shared via second assignee",
			windows: []window{w("a", 0, 3, "u1", "u2"), w("b", 1, 2, "u2")},
			want:    map[string][]string{"a": {"b"}, "b": {"a"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, findOverlaps(tt.windows))
		})
	}
}
