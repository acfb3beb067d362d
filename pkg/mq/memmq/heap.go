package memmq

const minimumCapacity = 16

type entry struct {
	payload  []byte
	priority uint
	seq      uint64
}

// before orders entries by descending priority, then by arrival.
func (e *entry) before(other *entry) bool {
	if e.priority != other.priority {
		return e.priority > other.priority
	}
	return e.seq < other.seq
}

// priorityQueue is a binary max-heap of entries.
type priorityQueue struct {
	items []*entry
	size  int
}

func newPriorityQueue() *priorityQueue {
	return &priorityQueue{
		items: make([]*entry, minimumCapacity),
	}
}

func (pq *priorityQueue) resize(capacity int) {
	items := make([]*entry, capacity)
	copy(items, pq.items[:pq.size])
	pq.items = items
}

func (pq *priorityQueue) siftDown(idx int) {
	for {
		left := idx*2 + 1
		right := idx*2 + 2
		top := idx
		if left < pq.size && pq.items[left].before(pq.items[top]) {
			top = left
		}
		if right < pq.size && pq.items[right].before(pq.items[top]) {
			top = right
		}
		if top == idx {
			return
		}
		pq.items[top], pq.items[idx] = pq.items[idx], pq.items[top]
		idx = top
	}
}

func (pq *priorityQueue) push(e *entry) {
	if pq.size == len(pq.items) {
		pq.resize(pq.size * 2)
	}
	pq.items[pq.size] = e
	pq.size++

	idx := pq.size - 1
	for idx > 0 {
		parent := (idx - 1) / 2
		if !pq.items[idx].before(pq.items[parent]) {
			break
		}
		pq.items[parent], pq.items[idx] = pq.items[idx], pq.items[parent]
		idx = parent
	}
}

// pop removes the first entry. It returns nil when the heap is empty.
func (pq *priorityQueue) pop() *entry {
	if pq.size == 0 {
		return nil
	}
	res := pq.items[0]
	pq.size--
	pq.items[0], pq.items[pq.size] = pq.items[pq.size], nil
	if pq.size > 0 {
		pq.siftDown(0)
	}

	// Shrink below 25% usage, never under the minimum capacity.
	if pq.size <= len(pq.items)/4 && len(pq.items) > minimumCapacity {
		pq.resize(len(pq.items) / 2)
	}
	return res
}

func (pq *priorityQueue) len() int {
	return pq.size
}
