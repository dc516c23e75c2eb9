package exporter

import (
	"sync"
	"sync/atomic"
	"time"
)

type State int32

const (
	STATE_PENDING State = iota
	STATE_LOADING
	STATE_REQUESTING
	STATE_WRITING
	STATE_DONE
	STATE_FAILED
)

var stateNames = map[State]string{
	STATE_PENDING:    "pending",
	STATE_LOADING:    "loading",
	STATE_REQUESTING: "requesting",
	STATE_WRITING:    "writing",
	STATE_DONE:       "done",
	STATE_FAILED:     "failed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// Status is a snapshot of a run's progress.
type Status struct {
	State       string `json:"state"`
	Records     uint64 `json:"records"`
	Batches     uint64 `json:"batches"`
	BatchesDone uint64 `json:"batches_done"`
	Rows        uint64 `json:"rows"`
	Skipped     uint64 `json:"skipped"`
	StartedAt   int64  `json:"started_at,omitempty"`
	FinishedAt  int64  `json:"finished_at,omitempty"`
	Error       string `json:"error,omitempty"`
}

type progress struct {
	state       atomic.Int32
	records     atomic.Uint64
	batches     atomic.Uint64
	batchesDone atomic.Uint64
	rows        atomic.Uint64
	skipped     atomic.Uint64

	mutex      sync.Mutex
	startedAt  time.Time
	finishedAt time.Time
	err        error
}

func (p *progress) setState(state State) {
	p.state.Store(int32(state))
}

func (p *progress) start() {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.startedAt = time.Now()
	p.finishedAt = time.Time{}
	p.err = nil

	p.records.Store(0)
	p.batches.Store(0)
	p.batchesDone.Store(0)
	p.rows.Store(0)
	p.skipped.Store(0)
	p.setState(STATE_LOADING)
}

func (p *progress) finish(err error) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.finishedAt = time.Now()
	p.err = err
	if err == nil {
		p.setState(STATE_DONE)
	} else {
		p.setState(STATE_FAILED)
	}
}

func (p *progress) status() Status {
	status := Status{
		State:       State(p.state.Load()).String(),
		Records:     p.records.Load(),
		Batches:     p.batches.Load(),
		BatchesDone: p.batchesDone.Load(),
		Rows:        p.rows.Load(),
		Skipped:     p.skipped.Load(),
	}

	p.mutex.Lock()
	defer p.mutex.Unlock()
	if !p.startedAt.IsZero() {
		status.StartedAt = p.startedAt.Unix()
	}
	if !p.finishedAt.IsZero() {
		status.FinishedAt = p.finishedAt.Unix()
	}
	if p.err != nil {
		status.Error = p.err.Error()
	}
	return status
}
