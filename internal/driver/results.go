package driver

import (
	"github.com/roach88/simkernel/internal/engine"
	"github.com/roach88/simkernel/internal/ir"
	"github.com/roach88/simkernel/internal/model"
	"github.com/roach88/simkernel/internal/profile"
	"github.com/roach88/simkernel/internal/resource"
	"github.com/roach88/simkernel/internal/simtime"
	"github.com/roach88/simkernel/internal/task"
)

// Results is everything a simulation produced.
type Results struct {
	Plan       string
	PlanDigest string
	Model      string
	Horizon    simtime.Duration

	// Activities holds every instantiated activity in plan order.
	Activities []ActivityResult

	// Spans holds every activity span in opening order, including spans
	// opened by daemons and by activities' children.
	Spans []SpanRecord

	// Unfinished lists the IDs of activities still running at the horizon.
	Unfinished []string

	// Failures lists activities that could not be instantiated.
	Failures []Failure

	// Final holds each resource's dynamics at the horizon.
	Final map[string]resource.Dynamics

	// Profiles is set only when the run used an in-memory manager.
	Profiles []profile.Profile

	// Commits counts the instants the engine stepped.
	Commits int

	// Events holds, per stepped instant and topic, the event graph the
	// instant committed, oldest first.
	Events []EventRecord

	// Digest identifies the results. Profiles, events and task IDs are
	// excluded so that it depends only on the plan, the model, and the
	// kernel.
	Digest string
}

// ActivityResult is the outcome of one planned activity.
type ActivityResult struct {
	ID       string
	Type     string
	Args     ir.Object
	Task     task.ID
	Span     engine.SpanID
	Start    simtime.Duration
	End      simtime.Duration
	Finished bool

	// Computed is the value the activity completed with, if it completed
	// with an ir.Value.
	Computed ir.Value
}

// Duration returns how long the activity ran, up to horizon if it never
// finished.
func (a ActivityResult) Duration(horizon simtime.Duration) simtime.Duration {
	if a.Finished {
		return a.End - a.Start
	}
	return horizon - a.Start
}

// SpanRecord is a span attributed to the planned activity it descends from.
// ActivityID is empty for spans outside any planned activity.
type SpanRecord struct {
	engine.Span
	ActivityID string
}

// Failure is an activity that could not be instantiated.
type Failure struct {
	ActivityID string
	Type       string
	Message    string
}

// Activity returns the result for a planned activity ID.
func (r *Results) Activity(id string) (ActivityResult, bool) {
	for _, a := range r.Activities {
		if a.ID == id {
			return a, true
		}
	}
	return ActivityResult{}, false
}

// SpansOf returns the spans attributed to activity id, root first.
func (r *Results) SpansOf(id string) []SpanRecord {
	var out []SpanRecord
	for _, s := range r.Spans {
		if s.ActivityID == id {
			out = append(out, s)
		}
	}
	return out
}

func (r *Results) collect(e *engine.Engine, m *model.Model, scheduled []planned) {
	r.Final = m.Resources.Sample(e)

	spans := e.Spans()
	root := make(map[task.ID]engine.SpanID, len(scheduled))
	for _, s := range spans {
		if s.Parent == 0 {
			if _, seen := root[s.Task]; !seen {
				root[s.Task] = s.ID
			}
		}
	}

	owner := make(map[engine.SpanID]string, len(spans))
	for _, p := range scheduled {
		if id, ok := root[p.task]; ok {
			owner[id] = p.activity.ID
		}
	}
	r.Spans = make([]SpanRecord, 0, len(spans))
	for _, s := range spans {
		activityID := owner[s.ID]
		if activityID == "" && s.Parent != 0 {
			// Parents always open before their children.
			activityID = owner[s.Parent]
			owner[s.ID] = activityID
		}
		r.Spans = append(r.Spans, SpanRecord{Span: s, ActivityID: activityID})
	}

	windows := make(map[task.ID]engine.TaskWindow)
	for _, w := range e.Windows() {
		windows[w.Task] = w
	}
	for _, p := range scheduled {
		w := windows[p.task]
		a := ActivityResult{
			ID:       p.activity.ID,
			Type:     p.activity.Type,
			Args:     p.args,
			Task:     p.task,
			Span:     root[p.task],
			Start:    p.activity.Start,
			End:      w.End,
			Finished: w.Finished,
		}
		if w.Started {
			a.Start = w.Start
		}
		if v, done, err := e.Result(p.task); err == nil && done {
			a.Computed, _ = v.(ir.Value)
		}
		r.Activities = append(r.Activities, a)
		if !a.Finished {
			r.Unfinished = append(r.Unfinished, a.ID)
		}
	}
}

// Object renders the results as an ir value for digests and golden files.
func (r *Results) Object() ir.Object {
	activities := make(ir.List, 0, len(r.Activities))
	for _, a := range r.Activities {
		obj := ir.NewObject(
			ir.O("id", ir.String(a.ID)),
			ir.O("type", ir.String(a.Type)),
			ir.O("args", argsOrEmpty(a.Args)),
			ir.O("start", ir.Int(a.Start)),
			ir.O("finished", ir.Bool(a.Finished)),
		)
		if a.Finished {
			obj["end"] = ir.Int(a.End)
		}
		if a.Computed != nil {
			obj["computed"] = a.Computed
		}
		activities = append(activities, obj)
	}

	spans := make(ir.List, 0, len(r.Spans))
	for _, s := range r.Spans {
		obj := ir.NewObject(
			ir.O("id", ir.Int(s.ID)),
			ir.O("parent", ir.Int(s.Parent)),
			ir.O("type", ir.String(s.Type)),
			ir.O("activity", ir.String(s.ActivityID)),
			ir.O("start", ir.Int(s.Start)),
		)
		if s.Ended {
			obj["end"] = ir.Int(s.End)
		}
		spans = append(spans, obj)
	}

	unfinished := make(ir.List, 0, len(r.Unfinished))
	for _, id := range r.Unfinished {
		unfinished = append(unfinished, ir.String(id))
	}

	failures := make(ir.List, 0, len(r.Failures))
	for _, f := range r.Failures {
		failures = append(failures, ir.NewObject(
			ir.O("activity", ir.String(f.ActivityID)),
			ir.O("type", ir.String(f.Type)),
			ir.O("message", ir.String(f.Message)),
		))
	}

	final := make(ir.Object, len(r.Final))
	for name, d := range r.Final {
		final[name] = ir.NewObject(
			ir.O("kind", ir.String(resource.Kind(d))),
			ir.O("value", resource.Encode(d)),
		)
	}

	return ir.NewObject(
		ir.O("plan", ir.String(r.Plan)),
		ir.O("plan_digest", ir.String(r.PlanDigest)),
		ir.O("model", ir.String(r.Model)),
		ir.O("horizon", ir.Int(r.Horizon)),
		ir.O("instants", ir.Int(r.Commits)),
		ir.O("activities", activities),
		ir.O("spans", spans),
		ir.O("unfinished", unfinished),
		ir.O("failures", failures),
		ir.O("final", final),
	)
}

func argsOrEmpty(args ir.Object) ir.Object {
	if args == nil {
		return ir.Object{}
	}
	return args
}
