package queue

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTake(t *testing.T) {
	tests := []struct {
		name string
		n    int
		want []int
		left int
	}{
		{name: "partial", n: 2, want: []int{1, 2}, left: 2},
		{name: "exact", n: 4, want: []int{1, 2, 3, 4}},
		{name: "more than queued", n: 10, want: []int{1, 2, 3, 4}},
		{name: "everything", n: 0, want: []int{1, 2, 3, 4}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := New[int]()
			q.Push(1, 2, 3, 4)
			assert.Equal(t, tt.want, q.Take(tt.n))
			assert.Equal(t, tt.left, q.Len())
		})
	}
}

func TestTake_Empty(t *testing.T) {
	assert.Nil(t, New[int]().Take(0))
}

func TestTake_DoesNotAlias(t *testing.T) {
	q := New[int]()
	q.Push(1, 2, 3)

	batch := q.Take(2)
	q.Push(9, 9)
	assert.Equal(t, []int{1, 2}, batch)
	assert.Equal(t, []int{3, 9, 9}, q.Take(0))
}

func TestRequeue(t *testing.T) {
	q := New[int]()
	q.Push(1, 2)

	batch := q.Take(0)
	q.Push(3)
	q.Requeue(batch)
	assert.Equal(t, []int{1, 2, 3}, q.Take(0))

	q.Requeue(nil)
	assert.Zero(t, q.Len())
}

func TestBounded(t *testing.T) {
	q := NewBounded[int](3)
	q.Push(1, 2)
	q.Push(3, 4, 5)

	assert.Equal(t, 2, q.Dropped())
	assert.Equal(t, []int{3, 4, 5}, q.Take(0))
}

func TestBounded_RequeueEvictsOldest(t *testing.T) {
	q := NewBounded[int](3)
	q.Push(1, 2)
	batch := q.Take(0)
	q.Push(3, 4)

	q.Requeue(batch)
	assert.Equal(t, 1, q.Dropped())
	assert.Equal(t, []int{2, 3, 4}, q.Take(0))
}

func TestNewBounded_NonPositiveIsUnbounded(t *testing.T) {
	q := NewBounded[int](-1)
	for i := range 100 {
		q.Push(i)
	}
	assert.Equal(t, 100, q.Len())
	assert.Zero(t, q.Dropped())
}

func TestConcurrentPush(t *testing.T) {
	q := New[int]()

	var wg sync.WaitGroup
	for i := range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range 100 {
				q.Push(i*100 + j)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1000, q.Len())
}
