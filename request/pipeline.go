package request

import (
	"sync"
	"time"

	"github.com/teris-io/shortid"
	"github.com/tidwall/buntdb"

	"github.com/jkluft/conartist/cmn/cos"
	"github.com/jkluft/conartist/cmn/nlog"
	"github.com/jkluft/conartist/job"
	"github.com/jkluft/conartist/streammgr"
)

// mappingReloadInterval is how often the pipeline checks the mapping
// file's mtime, per §4.7.
const mappingReloadInterval = 10 * time.Second

type slotState int

const (
	slotFree slotState = iota
	slotActive
	slotDone
)

// Request is one in-flight stream-creation request: free → active →
// done → free, per §3's job-record lifecycle.
type Request struct {
	UserID       uint64
	StreamType   uint8
	FileSize     int64
	IDsCapacity  uint32
	ItemCapacity uint32

	name     string
	streamID streammgr.StreamID
	ok       bool
	err      error
	state    slotState
}

// Name is the resolved filename once the user-id's mapping has been
// found; empty while still waiting on a mapping.
func (r *Request) Name() string { return r.name }

// Result reports the outcome of a finished request: a valid stream-id on
// success, or an error (ok=false) that the caller decides whether to
// retry by pushing a fresh Request — this pipeline never auto-retries.
func (r *Request) Result() (streammgr.StreamID, bool, error) {
	return r.streamID, r.ok, r.err
}

type reloadResult struct {
	prevMtime time.Time
	mtime     time.Time
	db        *buntdb.DB
	unchanged bool
	err       error
}

// Pipeline creates new stream files off the caller's hot path, using the
// job manager as its executor, and keeps a sorted id→name view current
// by polling the mapping file's mtime every mappingReloadInterval.
type Pipeline struct {
	mu     sync.Mutex
	slots  []*Request
	free   []int
	active []int
	done   []int

	mgr        *streammgr.Manager
	jm         *job.Manager
	requestsCh job.ChannelID
	mappingsCh job.ChannelID

	mappingPath      string
	mappingDB        *buntdb.DB
	mtime            time.Time
	version          int32
	lastReloadSubmit time.Time

	id string
}

// New wires a pipeline against mgr and jm, reserving maxSlots
// stream_request slots and two job-manager completion channels sized by
// requestsRingCap and mappingsRingCap, matching §4.7's 256/2 defaults
// (callers choose the actual sizes).
func New(mgr *streammgr.Manager, jm *job.Manager, mappingPath string, maxSlots, requestsRingCap, mappingsRingCap int) (*Pipeline, error) {
	reqCh, err := jm.InitChannel(requestsRingCap)
	if err != nil {
		return nil, err
	}
	mapCh, err := jm.InitChannel(mappingsRingCap)
	if err != nil {
		return nil, err
	}
	genID, _ := shortid.Generate()

	p := &Pipeline{
		slots:       make([]*Request, maxSlots),
		mgr:         mgr,
		jm:          jm,
		requestsCh:  reqCh,
		mappingsCh:  mapCh,
		mappingPath: mappingPath,
		id:          genID,
	}
	for i := maxSlots - 1; i >= 0; i-- {
		p.free = append(p.free, i)
	}
	return p, nil
}

// PushRequest allocates a slot from the free list and appends it to
// active; it becomes eligible for a creation job once r.UserID's mapping
// resolves.
func (p *Pipeline) PushRequest(r *Request) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.free) == 0 {
		return cos.ErrCapacityExceeded
	}
	idx := p.free[len(p.free)-1]
	p.free = p.free[:len(p.free)-1]
	r.state = slotActive
	p.slots[idx] = r
	p.active = append(p.active, idx)
	return nil
}

// Update drains completed creation and mapping-reload jobs, submits
// creation jobs for newly resolvable requests, and — no more than once
// per mappingReloadInterval — submits a mapping-reload job. Intended to
// be called from the daemon's periodic tick.
func (p *Pipeline) Update(now time.Time) {
	p.drainCompletions()
	p.submitResolvable()
	p.maybeReloadMapping(now)
}

func (p *Pipeline) drainCompletions() {
	for {
		arg0, _, ok := p.jm.PopCompleted(p.requestsCh)
		if !ok {
			break
		}
		p.mu.Lock()
		p.moveActiveToDone(arg0.(int))
		p.mu.Unlock()
	}
	for {
		_, arg1, ok := p.jm.PopCompleted(p.mappingsCh)
		if !ok {
			break
		}
		p.applyReload(arg1.(*reloadResult))
	}
}

func (p *Pipeline) moveActiveToDone(idx int) {
	for i, a := range p.active {
		if a == idx {
			p.active = append(p.active[:i], p.active[i+1:]...)
			break
		}
	}
	p.slots[idx].state = slotDone
	p.done = append(p.done, idx)
}

func (p *Pipeline) submitResolvable() {
	p.mu.Lock()
	db := p.mappingDB
	pending := append([]int(nil), p.active...)
	p.mu.Unlock()

	if db == nil {
		return
	}
	for _, idx := range pending {
		p.mu.Lock()
		r := p.slots[idx]
		unresolved := r.name == ""
		p.mu.Unlock()
		if !unresolved {
			continue
		}
		name, ok := findName(db, r.UserID)
		if !ok {
			continue
		}
		r.name = name
		if err := p.jm.Submit(p.requestsCh, func(a0, a1 any) {
			p.createStream(a1.(*Request))
		}, idx, r); err != nil {
			nlog.Warningf("request %s: submit creation job for slot %d: %v", p.id, idx, err)
			r.name = "" // allow retry on a later tick
		}
	}
}

func (p *Pipeline) createStream(r *Request) {
	id, err := p.mgr.RegisterNew(r.StreamType, r.name, r.UserID, r.FileSize, r.IDsCapacity, r.ItemCapacity)
	r.streamID = id
	r.ok = err == nil
	r.err = err
}

func (p *Pipeline) maybeReloadMapping(now time.Time) {
	p.mu.Lock()
	due := p.lastReloadSubmit.IsZero() || now.Sub(p.lastReloadSubmit) >= mappingReloadInterval
	if !due {
		p.mu.Unlock()
		return
	}
	p.lastReloadSubmit = now
	path := p.mappingPath
	prevMtime := p.mtime
	p.mu.Unlock()

	res := &reloadResult{prevMtime: prevMtime}
	if err := p.jm.Submit(p.mappingsCh, func(a0, a1 any) {
		p.doReload(path, a1.(*reloadResult))
	}, nil, res); err != nil {
		nlog.Warningf("request %s: submit mapping reload: %v", p.id, err)
	}
}

func (p *Pipeline) doReload(path string, r *reloadResult) {
	fi, err := statMtime(path)
	if err != nil {
		r.err = err
		return
	}
	if !fi.After(r.prevMtime) {
		r.unchanged = true
		return
	}
	db, err := loadMappingFile(path)
	if err != nil {
		r.err = err
		return
	}
	r.db = db
	r.mtime = fi
}

func (p *Pipeline) applyReload(r *reloadResult) {
	if r.err != nil {
		nlog.Warningf("request %s: mapping reload: %v", p.id, r.err)
		return
	}
	if r.unchanged {
		return
	}
	p.mu.Lock()
	old := p.mappingDB
	p.mappingDB = r.db
	p.mtime = r.mtime
	p.version++
	p.mu.Unlock()
	if old != nil {
		old.Close()
	}
}

// PopDone harvests one finished request, returning its slot to the free
// list.
func (p *Pipeline) PopDone() (*Request, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.done) == 0 {
		return nil, false
	}
	idx := p.done[0]
	p.done = p.done[1:]
	r := p.slots[idx]
	p.slots[idx] = nil
	r.state = slotFree
	p.free = append(p.free, idx)
	return r, true
}

// Version is the mapping reload generation counter: in-flight requests
// can compare against it to detect a stale mapping snapshot.
func (p *Pipeline) Version() int32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.version
}
