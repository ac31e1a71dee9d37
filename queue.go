package job_scheduler

import (
	"container/heap"
	"sync"
	"time"

	_const "github.com/TimeWtr/job_scheduler/const"
	"github.com/TimeWtr/job_scheduler/domain"
	"github.com/google/uuid"
)

// Firing 一次待执行的触发
type Firing struct {
	Job      domain.JobDefinition
	FireTime time.Time
	// Manual 立即执行(run-now)触发，不影响正常调度
	Manual bool
}

// NextFunc 触发后计算下一次触发时间，在队列锁内调用，不能做I/O
type NextFunc func(job domain.JobDefinition, fireTime, now time.Time) (time.Time, bool, error)

type triggerEntry struct {
	job   domain.JobDefinition
	state domain.TriggerState
	// 入堆序号，触发时间相同时先入堆的先执行
	seq uint64
	// 在堆中的下标，-1表示不在堆中
	index int
	// FIXED_DELAY正在执行(包括立即执行)，完成之前不会再次触发
	inFlight bool
	// FIXED_DELAY已经到期出堆，等待执行完成后重新入堆
	awaiting bool
}

// Hp 小顶堆，下次触发时间最近的Job在堆顶
type Hp []*triggerEntry

func (h Hp) Len() int {
	return len(h)
}

// Less 比较
// 条件：
// 1. 时间较小者为先执行的Job
// 2. 时间相同的情况下先入堆的先执行
func (h Hp) Less(i, j int) bool {
	a, b := h[i], h[j]
	return a.state.NextFireTime.Before(b.state.NextFireTime) ||
		a.state.NextFireTime.Equal(b.state.NextFireTime) && a.seq < b.seq
}

func (h Hp) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *Hp) Push(x interface{}) {
	e := x.(*triggerEntry)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *Hp) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	old[n-1] = nil
	x.index = -1
	*h = old[:n-1]
	return x
}

// TriggerQueue 按下次触发时间排序的触发队列，每个ACTIVE的Job一个条目
// 暂停的条目保留在索引中但不在堆里，恢复时不需要重新读取存储
type TriggerQueue struct {
	mu      sync.Mutex
	hp      Hp
	entries map[uuid.UUID]*triggerEntry
	seq     uint64
}

func NewTriggerQueue(size int) *TriggerQueue {
	return &TriggerQueue{
		hp:      make(Hp, 0, size),
		entries: make(map[uuid.UUID]*triggerEntry, size),
	}
}

// Upsert 插入或覆盖一个条目，只有NORMAL状态的条目参与调度
func (q *TriggerQueue) Upsert(job domain.JobDefinition, state domain.TriggerState) {
	q.mu.Lock()
	defer q.mu.Unlock()

	state.JobID = job.ID
	e, ok := q.entries[job.ID]
	if !ok {
		e = &triggerEntry{index: -1}
		q.entries[job.ID] = e
	}
	e.job = job
	e.state = state
	q.settle(e)
}

// Remove 删除条目，返回条目是否存在
func (q *TriggerQueue) Remove(id uuid.UUID) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	e, ok := q.entries[id]
	if !ok {
		return false
	}
	q.detach(e)
	delete(q.entries, id)
	return true
}

// PeekDue 按触发顺序返回所有到期的条目，不修改队列
func (q *TriggerQueue) PeekDue(now time.Time) []domain.TriggerState {
	q.mu.Lock()
	defer q.mu.Unlock()

	// 复制一份堆，避免修改条目的下标
	view := make(peekHeap, len(q.hp))
	copy(view, q.hp)
	heap.Init(&view)

	var res []domain.TriggerState
	for view.Len() > 0 {
		e := heap.Pop(&view).(*triggerEntry)
		if e.state.NextFireTime.After(now) {
			break
		}
		res = append(res, e.state)
	}
	return res
}

// Pause 条目标记为PAUSED并移出堆
func (q *TriggerQueue) Pause(id uuid.UUID) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	e, ok := q.entries[id]
	if !ok {
		return false
	}
	e.state.Status = _const.TriggerStatusPaused
	q.detach(e)
	return true
}

// Resume 以新计算的触发时间恢复调度，条目不存在时新建
// FIXED_DELAY执行中时只修改状态，等执行完成后再入堆
func (q *TriggerQueue) Resume(job domain.JobDefinition, next time.Time, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	e, exists := q.entries[job.ID]
	if !exists {
		e = &triggerEntry{index: -1, state: domain.TriggerState{JobID: job.ID}}
		q.entries[job.ID] = e
	}
	e.job = job
	e.state.NextFireTime = next
	e.state.Status = _const.TriggerStatusNormal
	if !ok {
		e.state.Status = _const.TriggerStatusComplete
	}
	q.settle(e)
}

// Advance 弹出所有到期的条目并返回需要执行的触发
// 非FIXED_DELAY的条目立即按fn计算下一次触发时间并重新入堆
// FIXED_DELAY的条目在执行完成(Complete)后才会重新入堆
func (q *TriggerQueue) Advance(now time.Time, fn NextFunc) []Firing {
	q.mu.Lock()
	defer q.mu.Unlock()

	var firings []Firing
	for q.hp.Len() > 0 && !q.hp[0].state.NextFireTime.After(now) {
		e := heap.Pop(&q.hp).(*triggerEntry)
		fireTime := e.state.NextFireTime

		if e.job.Schedule.Kind == _const.ScheduleFixedDelay {
			e.awaiting = true
			if e.inFlight {
				// 立即执行的任务还没有完成，等它完成后以完成时间为锚点重新入堆
				continue
			}
			e.inFlight = true
			e.state.LastFireTime = timePtr(fireTime)
			firings = append(firings, Firing{Job: e.job, FireTime: fireTime})
			continue
		}

		e.state.LastFireTime = timePtr(fireTime)
		firings = append(firings, Firing{Job: e.job, FireTime: fireTime})

		next, ok, err := fn(e.job, fireTime, now)
		switch {
		case err != nil:
			e.state.Status = _const.TriggerStatusError
		case !ok:
			e.state.Status = _const.TriggerStatusComplete
		default:
			e.state.NextFireTime = next
		}
		q.settle(e)
	}

	return firings
}

// BeginManual 立即执行前调用，FIXED_DELAY已经在执行中时返回false
func (q *TriggerQueue) BeginManual(id uuid.UUID) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	e, ok := q.entries[id]
	if !ok || e.job.Schedule.Kind != _const.ScheduleFixedDelay {
		return true
	}
	if e.inFlight {
		return false
	}
	e.inFlight = true
	return true
}

// Complete FIXED_DELAY执行完成，记录完成时间，
// 如果条目已经到期出堆并处于NORMAL状态，以next重新入堆
func (q *TriggerQueue) Complete(id uuid.UUID, completedAt, next time.Time, ok bool) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	e, exists := q.entries[id]
	if !exists || e.job.Schedule.Kind != _const.ScheduleFixedDelay {
		return false
	}
	awaiting := e.awaiting
	e.inFlight = false
	e.awaiting = false
	e.state.LastCompletionTime = timePtr(completedAt)
	if !awaiting || e.state.Status != _const.TriggerStatusNormal {
		return false
	}

	if !ok {
		e.state.Status = _const.TriggerStatusComplete
		return false
	}
	e.state.NextFireTime = next
	q.settle(e)
	return true
}

// Get 查询单个条目的触发状态
func (q *TriggerQueue) Get(id uuid.UUID) (domain.TriggerState, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	e, ok := q.entries[id]
	if !ok {
		return domain.TriggerState{}, false
	}
	return e.state, true
}

// States 所有条目的触发状态
func (q *TriggerQueue) States() []domain.TriggerState {
	q.mu.Lock()
	defer q.mu.Unlock()

	res := make([]domain.TriggerState, 0, len(q.entries))
	for _, e := range q.entries {
		res = append(res, e.state)
	}
	return res
}

func (q *TriggerQueue) IDs() []uuid.UUID {
	q.mu.Lock()
	defer q.mu.Unlock()

	res := make([]uuid.UUID, 0, len(q.entries))
	for id := range q.entries {
		res = append(res, id)
	}
	return res
}

// Next 堆顶的触发时间，队列中没有待触发的条目时返回false
func (q *TriggerQueue) Next() (time.Time, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.hp.Len() == 0 {
		return time.Time{}, false
	}
	return q.hp[0].state.NextFireTime, true
}

func (q *TriggerQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// settle 根据条目状态决定是否在堆中，调用方持有锁
func (q *TriggerQueue) settle(e *triggerEntry) {
	if e.state.Status != _const.TriggerStatusNormal || e.awaiting {
		q.detach(e)
		return
	}

	q.seq++
	e.seq = q.seq
	if e.index >= 0 {
		heap.Fix(&q.hp, e.index)
		return
	}
	heap.Push(&q.hp, e)
}

func (q *TriggerQueue) detach(e *triggerEntry) {
	if e.index >= 0 {
		heap.Remove(&q.hp, e.index)
	}
}

// peekHeap 与Hp排序规则相同，但不维护条目下标
type peekHeap []*triggerEntry

func (h peekHeap) Len() int { return len(h) }

func (h peekHeap) Less(i, j int) bool {
	return Hp(h).Less(i, j)
}

func (h peekHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *peekHeap) Push(x interface{}) { *h = append(*h, x.(*triggerEntry)) }

func (h *peekHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

func timePtr(t time.Time) *time.Time {
	return &t
}
