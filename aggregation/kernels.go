// Package aggregation implements Component E: stateless reducers over a
// sample stream, used both by compaction finalization and by the range
// iterator's AGGREGATION clause (§4.3).
package aggregation

import (
	"math"

	tserr "github.com/ledgerwatch/tscore/errors"
)

// Comparator is a CONDITION operator for *if/all/any/none kernels.
type Comparator int

const (
	Eq Comparator = iota
	Neq
	Lt
	Lte
	Gt
	Gte
)

func ParseComparator(s string) (Comparator, error) {
	switch s {
	case "==":
		return Eq, nil
	case "!=":
		return Neq, nil
	case "<":
		return Lt, nil
	case "<=":
		return Lte, nil
	case ">":
		return Gt, nil
	case ">=":
		return Gte, nil
	default:
		return 0, tserr.Arg("CONDITION", "unknown comparator %q", s)
	}
}

// Condition is a binary comparator against a constant (§4.3).
type Condition struct {
	Op  Comparator
	Ref float64
}

func (c Condition) Matches(v float64) bool {
	switch c.Op {
	case Eq:
		return v == c.Ref
	case Neq:
		return v != c.Ref
	case Lt:
		return v < c.Ref
	case Lte:
		return v <= c.Ref
	case Gt:
		return v > c.Ref
	case Gte:
		return v >= c.Ref
	default:
		return false
	}
}

// State carries whatever a kernel needs to fold samples one at a time.
// Each kernel defines its own concrete type, boxed behind the interface
// so Reduce/Accept stay uniform across the kernel table.
type State interface{}

// ReduceContext supplies the bucket duration (rate/increase) kernels
// need that isn't derivable from the sample stream alone.
type ReduceContext struct {
	BucketDurationMs int64
}

// Kernel is the per-name aggregator: init -> accept* -> reduce (§4.3).
type Kernel interface {
	Name() string
	Init() State
	Accept(s State, ts int64, v float64) State
	AcceptEmpty(s State) State
	Reduce(s State, ctx ReduceContext) float64
}

// New builds the named kernel. cond is required for all/any/none/
// countif/sumif/share and ignored otherwise.
func New(name string, cond *Condition) (Kernel, error) {
	switch name {
	case "avg":
		return avgKernel{}, nil
	case "sum":
		return sumKernel{}, nil
	case "min":
		return extremeKernel{max: false}, nil
	case "max":
		return extremeKernel{max: true}, nil
	case "first":
		return firstLastKernel{first: true}, nil
	case "last":
		return firstLastKernel{first: false}, nil
	case "count":
		return countKernel{}, nil
	case "range":
		return rangeKernel{}, nil
	case "std.p":
		return varKernel{population: true, std: true}, nil
	case "std.s":
		return varKernel{population: false, std: true}, nil
	case "var.p":
		return varKernel{population: true}, nil
	case "var.s":
		return varKernel{population: false}, nil
	case "rate":
		return rateKernel{}, nil
	case "irate":
		return irateKernel{}, nil
	case "increase":
		return increaseKernel{}, nil
	case "all":
		if cond == nil {
			return nil, tserr.Arg("CONDITION", "all requires a CONDITION")
		}
		return condKernel{cond: *cond, mode: condAll}, nil
	case "any":
		if cond == nil {
			return nil, tserr.Arg("CONDITION", "any requires a CONDITION")
		}
		return condKernel{cond: *cond, mode: condAny}, nil
	case "none":
		if cond == nil {
			return nil, tserr.Arg("CONDITION", "none requires a CONDITION")
		}
		return condKernel{cond: *cond, mode: condNone}, nil
	case "countif":
		if cond == nil {
			return nil, tserr.Arg("CONDITION", "countif requires a CONDITION")
		}
		return condKernel{cond: *cond, mode: condCount}, nil
	case "sumif":
		if cond == nil {
			return nil, tserr.Arg("CONDITION", "sumif requires a CONDITION")
		}
		return condKernel{cond: *cond, mode: condSum}, nil
	case "share":
		if cond == nil {
			return nil, tserr.Arg("CONDITION", "share requires a CONDITION")
		}
		return condKernel{cond: *cond, mode: condShare}, nil
	default:
		return nil, tserr.Arg("AGGREGATION", "unknown aggregator %q", name)
	}
}

// --- sum / avg ---

type sumState struct {
	sum   float64
	count int
}

type sumKernel struct{}

func (sumKernel) Name() string  { return "sum" }
func (sumKernel) Init() State   { return sumState{} }
func (sumKernel) AcceptEmpty(s State) State { return s }
func (sumKernel) Accept(s State, _ int64, v float64) State {
	st := s.(sumState)
	st.sum += v
	st.count++
	return st
}
func (sumKernel) Reduce(s State, _ ReduceContext) float64 {
	st := s.(sumState)
	if st.count == 0 {
		return 0
	}
	return st.sum
}

type avgKernel struct{}

func (avgKernel) Name() string              { return "avg" }
func (avgKernel) Init() State                { return sumState{} }
func (avgKernel) AcceptEmpty(s State) State  { return s }
func (avgKernel) Accept(s State, ts int64, v float64) State {
	return sumKernel{}.Accept(s, ts, v)
}
func (avgKernel) Reduce(s State, _ ReduceContext) float64 {
	st := s.(sumState)
	if st.count == 0 {
		return math.NaN()
	}
	return st.sum / float64(st.count)
}

// --- min / max ---

type extremeState struct {
	val   float64
	count int
}

type extremeKernel struct{ max bool }

func (k extremeKernel) Name() string {
	if k.max {
		return "max"
	}
	return "min"
}
func (k extremeKernel) Init() State               { return extremeState{} }
func (k extremeKernel) AcceptEmpty(s State) State { return s }
func (k extremeKernel) Accept(s State, _ int64, v float64) State {
	st := s.(extremeState)
	if st.count == 0 || (k.max && v > st.val) || (!k.max && v < st.val) {
		st.val = v
	}
	st.count++
	return st
}
func (k extremeKernel) Reduce(s State, _ ReduceContext) float64 {
	st := s.(extremeState)
	if st.count == 0 {
		return math.NaN()
	}
	return st.val
}

// --- first / last ---

type firstLastState struct {
	val      float64
	haveFirst bool
	haveAny   bool
}

type firstLastKernel struct{ first bool }

func (k firstLastKernel) Name() string {
	if k.first {
		return "first"
	}
	return "last"
}
func (k firstLastKernel) Init() State               { return firstLastState{} }
func (k firstLastKernel) AcceptEmpty(s State) State { return s }
func (k firstLastKernel) Accept(s State, _ int64, v float64) State {
	st := s.(firstLastState)
	if k.first {
		if !st.haveFirst {
			st.val = v
			st.haveFirst = true
		}
	} else {
		st.val = v
	}
	st.haveAny = true
	return st
}
func (k firstLastKernel) Reduce(s State, _ ReduceContext) float64 {
	st := s.(firstLastState)
	if !st.haveAny {
		return math.NaN()
	}
	return st.val
}

// --- count ---

type countKernel struct{}

func (countKernel) Name() string              { return "count" }
func (countKernel) Init() State                { return 0 }
func (countKernel) AcceptEmpty(s State) State  { return s }
func (countKernel) Accept(s State, _ int64, _ float64) State { return s.(int) + 1 }
func (countKernel) Reduce(s State, _ ReduceContext) float64  { return float64(s.(int)) }

// --- range (max - min) ---

type rangeState struct {
	min, max float64
	count    int
}

type rangeKernel struct{}

func (rangeKernel) Name() string             { return "range" }
func (rangeKernel) Init() State               { return rangeState{} }
func (rangeKernel) AcceptEmpty(s State) State { return s }
func (rangeKernel) Accept(s State, _ int64, v float64) State {
	st := s.(rangeState)
	if st.count == 0 {
		st.min, st.max = v, v
	} else {
		if v < st.min {
			st.min = v
		}
		if v > st.max {
			st.max = v
		}
	}
	st.count++
	return st
}
func (rangeKernel) Reduce(s State, _ ReduceContext) float64 {
	st := s.(rangeState)
	if st.count == 0 {
		return math.NaN()
	}
	return st.max - st.min
}

// --- variance / std dev (Welford) ---

type varState struct {
	count int
	mean  float64
	m2    float64
}

type varKernel struct {
	population bool
	std        bool
}

func (k varKernel) Name() string {
	suffix := ".s"
	if k.population {
		suffix = ".p"
	}
	if k.std {
		return "std" + suffix
	}
	return "var" + suffix
}
func (varKernel) Init() State               { return varState{} }
func (varKernel) AcceptEmpty(s State) State { return s }
func (varKernel) Accept(s State, _ int64, v float64) State {
	st := s.(varState)
	st.count++
	delta := v - st.mean
	st.mean += delta / float64(st.count)
	delta2 := v - st.mean
	st.m2 += delta * delta2
	return st
}
func (k varKernel) Reduce(s State, _ ReduceContext) float64 {
	st := s.(varState)
	var variance float64
	if k.population {
		if st.count == 0 {
			return math.NaN()
		}
		variance = st.m2 / float64(st.count)
	} else {
		if st.count < 2 {
			return math.NaN()
		}
		variance = st.m2 / float64(st.count-1)
	}
	if k.std {
		return math.Sqrt(variance)
	}
	return variance
}

// --- rate / irate / increase, with counter-reset handling (§4.3) ---

type counterState struct {
	first, last       sample
	prev, cur         sample
	count             int
	increaseSum       float64
}

type sample struct {
	ts int64
	v  float64
}

type rateKernel struct{}

func (rateKernel) Name() string              { return "rate" }
func (rateKernel) Init() State                { return counterState{} }
func (rateKernel) AcceptEmpty(s State) State  { return s }
func (rateKernel) Accept(s State, ts int64, v float64) State {
	return acceptCounter(s, ts, v)
}
func (rateKernel) Reduce(s State, ctx ReduceContext) float64 {
	st := s.(counterState)
	if st.count == 0 {
		return 0
	}
	if ctx.BucketDurationMs <= 0 {
		return math.NaN()
	}
	return st.increaseSum / (float64(ctx.BucketDurationMs) / 1000)
}

type increaseKernel struct{}

func (increaseKernel) Name() string              { return "increase" }
func (increaseKernel) Init() State                { return counterState{} }
func (increaseKernel) AcceptEmpty(s State) State  { return s }
func (increaseKernel) Accept(s State, ts int64, v float64) State {
	return acceptCounter(s, ts, v)
}
func (increaseKernel) Reduce(s State, _ ReduceContext) float64 {
	st := s.(counterState)
	if st.count == 0 {
		return 0
	}
	return st.increaseSum
}

func acceptCounter(s State, ts int64, v float64) State {
	st := s.(counterState)
	cur := sample{ts, v}
	if st.count > 0 {
		delta := cur.v - st.cur.v
		if delta >= 0 {
			st.increaseSum += delta
		}
		// a negative delta is a counter reset; per spec it is skipped,
		// not subtracted and not treated as a new baseline of 0.
	}
	st.prev = st.cur
	st.cur = cur
	st.count++
	return st
}

type irateKernel struct{}

func (irateKernel) Name() string              { return "irate" }
func (irateKernel) Init() State                { return counterState{} }
func (irateKernel) AcceptEmpty(s State) State  { return s }
func (irateKernel) Accept(s State, ts int64, v float64) State {
	return acceptCounter(s, ts, v)
}
func (irateKernel) Reduce(s State, _ ReduceContext) float64 {
	st := s.(counterState)
	if st.count < 2 {
		return math.NaN()
	}
	dt := st.cur.ts - st.prev.ts
	if dt <= 0 {
		return math.NaN()
	}
	dv := st.cur.v - st.prev.v
	if dv < 0 {
		return math.NaN() // counter reset on the last delta
	}
	return dv / (float64(dt) / 1000)
}

// --- condition-driven kernels: all/any/none/countif/sumif/share ---

type condMode int

const (
	condAll condMode = iota
	condAny
	condNone
	condCount
	condSum
	condShare
)

type condState struct {
	matched int
	total   int
	sum     float64
}

type condKernel struct {
	cond Condition
	mode condMode
}

func (k condKernel) Name() string {
	switch k.mode {
	case condAll:
		return "all"
	case condAny:
		return "any"
	case condNone:
		return "none"
	case condCount:
		return "countif"
	case condSum:
		return "sumif"
	default:
		return "share"
	}
}
func (condKernel) Init() State               { return condState{} }
func (condKernel) AcceptEmpty(s State) State { return s }
func (k condKernel) Accept(s State, _ int64, v float64) State {
	st := s.(condState)
	st.total++
	if k.cond.Matches(v) {
		st.matched++
		st.sum += v
	}
	return st
}
func (k condKernel) Reduce(s State, _ ReduceContext) float64 {
	st := s.(condState)
	switch k.mode {
	case condAll:
		if st.total == 0 {
			return 0
		}
		if st.matched == st.total {
			return 1
		}
		return 0
	case condAny:
		if st.matched > 0 {
			return 1
		}
		return 0
	case condNone:
		if st.matched == 0 {
			return 1
		}
		return 0
	case condCount:
		return float64(st.matched)
	case condSum:
		return st.sum
	case condShare:
		if st.total == 0 {
			return 0
		}
		return float64(st.matched) / float64(st.total)
	default:
		return math.NaN()
	}
}
