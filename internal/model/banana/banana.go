// Package banana is a small demonstration mission model: a bunch of
// bananas that can be grown, peeled, bitten, picked and thrown.
package banana

import (
	"fmt"

	"github.com/roach88/simkernel/internal/ir"
	"github.com/roach88/simkernel/internal/model"
	"github.com/roach88/simkernel/internal/resource"
	"github.com/roach88/simkernel/internal/simtime"
	"github.com/roach88/simkernel/internal/task"
	"github.com/roach88/simkernel/internal/timeline"
)

// Name is the catalog name of the model.
const Name = "banana"

const (
	fromStem = "fromStem"
	fromTip  = "fromTip"
)

// Initial values.
const (
	InitialFruit    = 4.0
	InitialPeel     = 4.0
	InitialPlant    = 200
	InitialProducer = "Chiquita"
	InitialFlag     = "A"

	// ReplantThreshold is the plant count below which the farm daemon
	// raises the flag to "C".
	ReplantThreshold = 100
)

// Mission holds the cells of one model instance.
type Mission struct {
	Fruit    *resource.Accumulator
	Peel     *resource.Accumulator
	Plant    *resource.Counter
	Producer *resource.Register[string]
	Flag     *resource.Register[string]
}

func sameString(a, b string) bool { return a == b }

func encodeString(s string) ir.Value { return ir.String(s) }

// NewMission registers the banana cells on b.
func NewMission(b *timeline.Builder) *Mission {
	return &Mission{
		Fruit:    resource.NewAccumulator(b, "fruit", InitialFruit, 0),
		Peel:     resource.NewAccumulator(b, "peel", InitialPeel, 0),
		Plant:    resource.NewCounter(b, "plant", InitialPlant),
		Producer: resource.NewRegister(b, "producer", InitialProducer, sameString, encodeString),
		Flag:     resource.NewRegister(b, "flag", InitialFlag, sameString, encodeString),
	}
}

// New builds a fresh banana model.
func New() *model.Model {
	b := timeline.NewBuilder()
	m := NewMission(b)

	resources := resource.NewRegistry()
	resources.AddReal(m.Fruit)
	resources.AddReal(m.Peel)
	resources.AddDiscrete(m.Plant)
	resources.AddDiscrete(m.Producer)
	resources.AddDiscrete(m.Flag)

	return &model.Model{
		Name:       Name,
		Schema:     b.Build(),
		Resources:  resources,
		Activities: m.Activities(),
		Daemons: []model.Daemon{
			{Name: "replant-alarm", Factory: m.replantAlarm},
		},
	}
}

// Activities returns the activity types of the mission.
func (m *Mission) Activities() *model.Registry {
	r := model.NewRegistry()
	r.Register(model.ActivityType{
		Name:        "BiteBanana",
		Description: "Eat part of a banana",
		Params:      []model.Param{{Name: "biteSize", Kind: model.KindReal, Default: ir.Real(1.0)}},
		New:         m.bite,
	})
	r.Register(model.ActivityType{
		Name:        "PeelBanana",
		Description: "Peel a banana; from the stem loses some fruit",
		Params: []model.Param{
			{Name: "peelDirection", Kind: model.KindString, Default: ir.String(fromStem), OneOf: []string{fromStem, fromTip}},
		},
		New: m.peel,
	})
	r.Register(model.ActivityType{
		Name:        "GrowBanana",
		Description: "Grow fruit at a steady rate",
		Params: []model.Param{
			{Name: "quantity", Kind: model.KindInt, Default: ir.Int(1)},
			{Name: "growingDuration", Kind: model.KindDuration, Default: ir.String("1h")},
		},
		New: m.grow,
	})
	r.Register(model.ActivityType{
		Name:        "PickBanana",
		Description: "Pick bananas off the plant",
		Params:      []model.Param{{Name: "quantity", Kind: model.KindInt, Default: ir.Int(10)}},
		New:         m.pick,
	})
	r.Register(model.ActivityType{
		Name:        "ChangeProducer",
		Description: "Switch the producer label",
		Params:      []model.Param{{Name: "producer", Kind: model.KindString, Default: ir.String("Dole")}},
		New:         m.changeProducer,
	})
	r.Register(model.ActivityType{
		Name:        "ThrowBanana",
		Description: "Throw a banana; it flies for a while, then the fruit is gone",
		Params: []model.Param{
			{Name: "speed", Kind: model.KindReal, Default: ir.Real(1.0)},
		},
		New: m.throw,
	})
	r.Register(model.ActivityType{
		Name:        "RipenBanana",
		Description: "Wait until enough fruit has grown, then mark it ripe",
		Params:      []model.Param{{Name: "threshold", Kind: model.KindReal}},
		New:         m.ripen,
	})
	r.Register(model.ActivityType{
		Name:        "BananaSnack",
		Description: "Peel then bite, each in its own span, while picking in the background",
		Params: []model.Param{
			{Name: "biteSize", Kind: model.KindReal, Default: ir.Real(0.5)},
			{Name: "pick", Kind: model.KindBool, Default: ir.Bool(true)},
		},
		New: m.snack,
	})
	return r
}

func (m *Mission) bite(args model.Args) (task.Factory, error) {
	size := args.Real("biteSize")
	if size < 0 {
		return nil, fmt.Errorf("biteSize %g is negative", size)
	}
	return func() task.Task {
		return task.Func(func(s task.Scheduler) task.Status {
			m.Fruit.Add(s, -size)
			if size > 1 {
				m.Flag.Set(s, "B")
			}
			return task.Done(ir.NewObject(ir.O("biteSizeWasBig", ir.Bool(size > 1))))
		})
	}, nil
}

func (m *Mission) peel(args model.Args) (task.Factory, error) {
	direction := args.Str("peelDirection")
	return func() task.Task {
		return task.Func(func(s task.Scheduler) task.Status {
			if direction == fromStem {
				m.Fruit.Add(s, -1)
			}
			m.Peel.Add(s, -1)
			return task.Done(nil)
		})
	}, nil
}

func (m *Mission) grow(args model.Args) (task.Factory, error) {
	quantity := args.Int("quantity")
	duration := args.Duration("growingDuration")
	if duration == 0 {
		return nil, fmt.Errorf("growingDuration must be positive")
	}
	rate := float64(quantity) / duration.Seconds()
	return task.Go(func(ctx *task.Context) any {
		m.Fruit.AddRate(ctx, rate)
		ctx.Delay(duration)
		m.Fruit.AddRate(ctx, -rate)
		return nil
	}), nil
}

func (m *Mission) pick(args model.Args) (task.Factory, error) {
	quantity := args.Int("quantity")
	if quantity < 0 {
		return nil, fmt.Errorf("quantity %d is negative", quantity)
	}
	return func() task.Task {
		return task.Func(func(s task.Scheduler) task.Status {
			m.Plant.Add(s, -quantity)
			return task.Done(nil)
		})
	}, nil
}

func (m *Mission) changeProducer(args model.Args) (task.Factory, error) {
	producer := args.Str("producer")
	return func() task.Task {
		return task.Func(func(s task.Scheduler) task.Status {
			m.Producer.Set(s, producer)
			return task.Done(nil)
		})
	}, nil
}

func (m *Mission) throw(args model.Args) (task.Factory, error) {
	speed := args.Real("speed")
	if speed <= 0 {
		return nil, fmt.Errorf("speed %g must be positive", speed)
	}
	flight := simtime.FromSeconds(10 / speed)
	return task.Go(func(ctx *task.Context) any {
		ctx.Delay(flight)
		m.Fruit.Add(ctx, -1)
		return nil
	}), nil
}

func (m *Mission) ripen(args model.Args) (task.Factory, error) {
	threshold := args.Real("threshold")
	return task.Go(func(ctx *task.Context) any {
		ctx.WaitUntil(resource.AtLeast(m.Fruit, threshold))
		m.Flag.Set(ctx, "ripe")
		return ir.NewObject(ir.O("ripeAt", ir.Int(ctx.Now())))
	}), nil
}

func (m *Mission) snack(args model.Args) (task.Factory, error) {
	peel, err := m.peel(model.NewArgs(ir.Object{"peelDirection": ir.String(fromTip)}))
	if err != nil {
		return nil, err
	}
	bite, err := m.bite(model.NewArgs(ir.Object{"biteSize": ir.Real(args.Real("biteSize"))}))
	if err != nil {
		return nil, err
	}
	pick, err := m.pick(model.NewArgs(ir.Object{"quantity": ir.Int(1)}))
	if err != nil {
		return nil, err
	}
	withPick := args.Bool("pick")

	return task.Go(func(ctx *task.Context) any {
		if withPick {
			ctx.Spawn(task.SpanParent, pick)
		}
		ctx.Call(task.SpanFresh, activity("PeelBanana", peel))
		ctx.Delay(simtime.Minute)
		return ctx.Call(task.SpanFresh, activity("BiteBanana", bite))
	}), nil
}

// activity wraps child in a typed activity span and completes with
// child's value.
func activity(typ string, child task.Factory) task.Factory {
	return task.Go(func(ctx *task.Context) any {
		ctx.StartActivity(typ, ir.Object{})
		computed := ctx.Call(task.SpanParent, child)
		ctx.EndActivity()
		return computed
	})
}

// replantAlarm raises the flag once the plant runs low.
func (m *Mission) replantAlarm() task.Task {
	return task.Go(func(ctx *task.Context) any {
		ctx.WaitUntil(resource.Below(m.Plant, ReplantThreshold))
		m.Flag.Set(ctx, "C")
		return nil
	})()
}
