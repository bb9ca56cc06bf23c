package ingester

import (
	"sync"
	"time"

	apperrors "github.com/chainsafe/ledger-ingest/pkg/app/errors"
	"github.com/chainsafe/ledger-ingest/pkg/config"
	"github.com/chainsafe/ledger-ingest/pkg/ingest"
)

// JobStatus is the last known outcome of a job
type JobStatus struct {
	Name      string       `json:"name"`
	Chain     string       `json:"chain"`
	Address   string       `json:"address"`
	Network   string       `json:"network"`
	Style     string       `json:"position_style"`
	RunID     string       `json:"last_run_id,omitempty"`
	State     ingest.State `json:"last_state,omitempty"`
	Position  string       `json:"last_position,omitempty"`
	Fetched   int          `json:"fetched"`
	Inserted  int          `json:"inserted"`
	Skipped   int          `json:"skipped"`
	Failed    int          `json:"failed"`
	Error     string       `json:"last_error,omitempty"`
	ErrorKind string       `json:"last_error_kind,omitempty"`
	RunAt     *time.Time   `json:"last_run_at,omitempty"`
	Runs      int          `json:"runs"`
}

// statusBoard records per-job outcomes for the ops API
type statusBoard struct {
	mu    sync.RWMutex
	order []string
	jobs  map[string]*JobStatus
	ready bool
	now   func() time.Time
}

func newStatusBoard(cfgs []config.JobConfig) *statusBoard {
	b := &statusBoard{
		jobs: make(map[string]*JobStatus, len(cfgs)),
		now:  time.Now,
	}
	for _, jc := range cfgs {
		b.order = append(b.order, jc.Name)
		b.jobs[jc.Name] = &JobStatus{
			Name:    jc.Name,
			Chain:   jc.Chain,
			Address: jc.Address,
			Network: jc.Network,
			Style:   jc.PositionStyle,
		}
	}
	return b
}

func (b *statusBoard) record(name string, res *ingest.RunResult, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	st, ok := b.jobs[name]
	if !ok {
		st = &JobStatus{Name: name}
		b.jobs[name] = st
		b.order = append(b.order, name)
	}
	at := b.now()
	st.RunAt = &at
	st.Runs++
	st.Error, st.ErrorKind = "", ""
	if err != nil {
		st.Error = err.Error()
		st.ErrorKind = apperrors.KindOf(err).String()
	}
	if res == nil {
		st.State = ingest.StateFailed
		return
	}
	st.RunID = res.RunID
	st.State = res.State
	st.Position = res.To.String()
	st.Fetched = res.Fetched
	st.Inserted = res.Inserted
	st.Skipped = res.Skipped
	st.Failed = res.Failed
}

func (b *statusBoard) markReady() {
	b.mu.Lock()
	b.ready = true
	b.mu.Unlock()
}

func (b *statusBoard) isReady() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.ready
}

func (b *statusBoard) get(name string) (JobStatus, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	st, ok := b.jobs[name]
	if !ok {
		return JobStatus{}, false
	}
	return *st, true
}

func (b *statusBoard) list() []JobStatus {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]JobStatus, 0, len(b.order))
	for _, name := range b.order {
		out = append(out, *b.jobs[name])
	}
	return out
}
