package cache

// lruNode is a node in the intrusive doubly-linked LRU list.
type lruNode[K any] struct {
	key  K
	prev *lruNode[K]
	next *lruNode[K]
}

// lruList is a doubly-linked list ordered from most to least recently used.
// It is not safe for concurrent use; the owning shard's mutex guards it.
type lruList[K any] struct {
	head *lruNode[K] // most recently used
	tail *lruNode[K] // least recently used
	size int
}

func newLRUList[K any]() *lruList[K] {
	return &lruList[K]{}
}

// Len returns the number of nodes in the list.
func (l *lruList[K]) Len() int { return l.size }

// PushFront inserts a new node at the front and returns it.
func (l *lruList[K]) PushFront(key K) *lruNode[K] {
	n := &lruNode[K]{key: key}
	if l.head == nil {
		l.head = n
		l.tail = n
	} else {
		n.next = l.head
		l.head.prev = n
		l.head = n
	}
	l.size++
	return n
}

// MoveToFront moves an existing node to the front.
func (l *lruList[K]) MoveToFront(n *lruNode[K]) {
	if n == l.head {
		return
	}
	l.unlink(n)
	n.prev = nil
	n.next = l.head
	l.head.prev = n
	l.head = n
	l.size++
}

// Remove unlinks a node from the list.
func (l *lruList[K]) Remove(n *lruNode[K]) {
	l.unlink(n)
	n.prev = nil
	n.next = nil
}

// RemoveOldest removes and returns the least recently used key.
// Returns (zero, false) on an empty list.
func (l *lruList[K]) RemoveOldest() (K, bool) {
	if l.tail == nil {
		var zero K
		return zero, false
	}
	n := l.tail
	l.unlink(n)
	return n.key, true
}

// Clear drops all nodes.
func (l *lruList[K]) Clear() {
	l.head = nil
	l.tail = nil
	l.size = 0
}

func (l *lruList[K]) unlink(n *lruNode[K]) {
	if n.prev != nil {
		n.prev.next = n.next
	} else if l.head == n {
		l.head = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else if l.tail == n {
		l.tail = n.prev
	}
	l.size--
}
