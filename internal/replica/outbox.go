package replica

import (
	"sync"

	"flowsync/internal/domain"
)

// syncTask delivers what from has and to lacks.
type syncTask struct {
	from domain.ReplicaID
	to   domain.ReplicaID
}

// outbox is a FIFO of deferred sync tasks. Tasks are queued from document
// callbacks and run once the operation that produced them has finished.
type outbox struct {
	mu    sync.Mutex
	tasks []syncTask
}

func (o *outbox) push(t syncTask) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.tasks = append(o.tasks, t)
	outboxDepth.Set(float64(len(o.tasks)))
}

func (o *outbox) pop() (syncTask, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if len(o.tasks) == 0 {
		return syncTask{}, false
	}
	t := o.tasks[0]
	o.tasks = o.tasks[1:]
	outboxDepth.Set(float64(len(o.tasks)))
	return t, true
}

func (o *outbox) len() int {
	o.mu.Lock()
	defer o.mu.Unlock()

	return len(o.tasks)
}
