package conflict

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/managemate/mmrt/pkg/events"
	"github.com/managemate/mmrt/pkg/log"
	"github.com/managemate/mmrt/pkg/metrics"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

// DefaultPageSize is the number of tasks read per store call
const DefaultPageSize = 200

// RunResult summarizes one detection pass
type RunResult struct {
	Scanned   int `json:"scanned"`
	Eligible  int `json:"eligible"`
	Flagged   int `json:"flagged"`
	Cleared   int `json:"cleared"`
	Updated   int `json:"updated"`
	Skipped   int `json:"skipped"`
	Published int `json:"published"`
	Errors    int `json:"errors"`
}

// window is the part of a task the overlap sweep needs
type window struct {
	id        string
	title     string
	assignees []string
	start     time.Time
	end       time.Time
	flagged   bool
	with      []string
}

// stale is a flagged task that can no longer conflict
type stale struct {
	id        string
	title     string
	assignees []string
}

// Detector finds overlapping schedule windows per assignee and writes
// the conflict flag back onto each task.
type Detector struct {
	store     TaskStore
	publisher Publisher
	pageSize  int
	log       zerolog.Logger
}

// NewDetector creates a detector. A non-positive pageSize uses DefaultPageSize.
func NewDetector(store TaskStore, publisher Publisher, pageSize int) *Detector {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Detector{
		store:     store,
		publisher: publisher,
		pageSize:  pageSize,
		log:       log.WithComponent("conflict"),
	}
}

// Run performs one detection pass. Only changes of a task's conflict flag
// publish events, so a second run over unchanged data publishes nothing.
// Failures on individual tasks are logged and counted; an error is
// returned only when the task scan itself fails.
func (d *Detector) Run(ctx context.Context) (RunResult, error) {
	var res RunResult

	windows, stales, err := d.scan(ctx, &res)
	if err != nil {
		return res, err
	}

	overlaps := findOverlaps(windows)

	for _, w := range windows {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		d.apply(ctx, w, overlaps[w.id], &res)
	}

	for _, s := range stales {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		d.clearStale(ctx, s, &res)
	}

	d.log.Info().
		Int("scanned", res.Scanned).
		Int("eligible", res.Eligible).
		Int("flagged", res.Flagged).
		Int("cleared", res.Cleared).
		Int("skipped", res.Skipped).
		Int("published", res.Published).
		Int("errors", res.Errors).
		Msg("Conflict detection run complete")

	return res, nil
}

// scan pages through every task, keeping only what the sweep needs
func (d *Detector) scan(ctx context.Context, res *RunResult) ([]window, []stale, error) {
	var (
		windows []window
		stales  []stale
		cursor  string
	)

	for {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		page, err := d.store.ListTasksPage(cursor, d.pageSize)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to list tasks after %q: %w", cursor, err)
		}

		for _, key := range page.Corrupt {
			res.Skipped++
			d.log.Warn().Str("task_id", key).Msg("Skipping undecodable task record")
		}

		for _, task := range page.Tasks {
			res.Scanned++

			eligible := task.Status.Active() && task.HasWindow()
			if eligible && task.Deadline.Before(*task.StartDate) {
				res.Skipped++
				eligible = false
				d.log.Warn().
					Str("task_id", task.ID).
					Time("start", *task.StartDate).
					Time("deadline", *task.Deadline).
					Msg("Skipping task with deadline before start")
			}

			if !eligible {
				if task.HasConflict {
					stales = append(stales, stale{id: task.ID, title: task.Title, assignees: task.AssigneeIDs})
				}
				continue
			}

			res.Eligible++
			windows = append(windows, window{
				id:        task.ID,
				title:     task.Title,
				assignees: lo.Uniq(lo.Compact(task.AssigneeIDs)),
				start:     *task.StartDate,
				end:       *task.Deadline,
				flagged:   task.HasConflict,
				with:      task.ConflictsWith,
			})
		}

		if page.Next == "" {
			return windows, stales, nil
		}
		cursor = page.Next
	}
}

// findOverlaps returns, per task id, the sorted ids of tasks sharing an
// assignee whose window overlaps it
func findOverlaps(windows []window) map[string][]string {
	byAssignee := make(map[string][]*window)
	for i := range windows {
		w := &windows[i]
		for _, userID := range w.assignees {
			byAssignee[userID] = append(byAssignee[userID], w)
		}
	}

	sets := make(map[string]map[string]struct{})
	link := func(a, b string) {
		if sets[a] == nil {
			sets[a] = make(map[string]struct{})
		}
		sets[a][b] = struct{}{}
	}

	for _, group := range byAssignee {
		sort.Slice(group, func(i, j int) bool {
			if group[i].start.Equal(group[j].start) {
				return group[i].id < group[j].id
			}
			return group[i].start.Before(group[j].start)
		})

		for i, a := range group {
			for _, b := range group[i+1:] {
				if !b.start.Before(a.end) {
					break
				}
				if overlaps(a, b) {
					link(a.id, b.id)
					link(b.id, a.id)
				}
			}
		}
	}

	out := make(map[string][]string, len(sets))
	for id, set := range sets {
		ids := lo.Keys(set)
		slices.Sort(ids)
		out[id] = ids
	}
	return out
}

func overlaps(a, b *window) bool {
	return a.start.Before(b.end) && b.start.Before(a.end)
}

func (d *Detector) apply(ctx context.Context, w window, with []string, res *RunResult) {
	conflicted := len(with) > 0
	transition := conflicted != w.flagged

	previous := slices.Clone(w.with)
	slices.Sort(previous)
	if !transition && slices.Equal(previous, with) {
		return
	}

	if _, err := d.store.PatchTaskConflict(w.id, conflicted, with); err != nil {
		res.Errors++
		d.log.Error().Err(err).Str("task_id", w.id).Msg("Failed to update task conflict flag")
		return
	}
	res.Updated++

	if !transition {
		return
	}

	direction := "cleared"
	if conflicted {
		direction = "flagged"
		res.Flagged++
	} else {
		res.Cleared++
	}
	metrics.ConflictTransitions.WithLabelValues(direction).Inc()

	d.notify(ctx, w.id, w.title, w.assignees, conflicted, with, res)
}

func (d *Detector) clearStale(ctx context.Context, s stale, res *RunResult) {
	if _, err := d.store.PatchTaskConflict(s.id, false, nil); err != nil {
		res.Errors++
		d.log.Error().Err(err).Str("task_id", s.id).Msg("Failed to clear stale conflict flag")
		return
	}
	res.Updated++
	res.Cleared++
	metrics.ConflictTransitions.WithLabelValues("cleared").Inc()

	d.notify(ctx, s.id, s.title, lo.Uniq(lo.Compact(s.assignees)), false, nil, res)
}

// notify publishes one event per assignee of the task
func (d *Detector) notify(ctx context.Context, taskID, title string, assignees []string, conflicted bool, with []string, res *RunResult) {
	for _, userID := range assignees {
		evt := &events.ConflictEvent{
			UserID:        userID,
			TaskID:        taskID,
			Title:         title,
			HasConflict:   conflicted,
			ConflictsWith: with,
		}
		if err := d.publisher.PublishConflict(ctx, evt); err != nil {
			res.Errors++
			d.log.Error().
				Err(err).
				Str("task_id", taskID).
				Str("user_id", userID).
				Msg("Failed to publish conflict event")
			continue
		}
		res.Published++
	}
}
