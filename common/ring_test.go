package common

import (
	"reflect"
	"sync"
	"testing"
)

func TestRingBuffer_Get(t *testing.T) {
	ringBuffer := NewRingBuffer[int](3)
	if _, ok := ringBuffer.Last(); ok {
		t.Error("empty buffer should have no last element")
	}
	ringBuffer.Add(1)
	ringBuffer.Add(2)
	ringBuffer.Add(3)

	expected := []int{1, 2, 3}
	if actual := ringBuffer.Get(); !reflect.DeepEqual(actual, expected) {
		t.Errorf("Expected %v, but got %v", expected, actual)
	}

	ringBuffer.Add(4)
	expected = []int{2, 3, 4}
	if actual := ringBuffer.Get(); !reflect.DeepEqual(actual, expected) {
		t.Errorf("Expected %v, but got %v", expected, actual)
	}
	if last, _ := ringBuffer.Last(); last != 4 {
		t.Errorf("Expected last 4, got %d", last)
	}
	if ringBuffer.Len() != 3 {
		t.Errorf("Expected len 3, got %d", ringBuffer.Len())
	}

	ringBuffer.Reset()
	if ringBuffer.Len() != 0 {
		t.Errorf("Expected len 0 after reset, got %d", ringBuffer.Len())
	}
}

func TestRingBuffer_Bounded(t *testing.T) {
	ringBuffer := NewRingBuffer[float64](100)
	wg := sync.WaitGroup{}
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				ringBuffer.Add(float64(i))
			}
		}()
	}
	wg.Wait()
	if got := len(ringBuffer.Get()); got != 100 {
		t.Errorf("Expected 100 elements, got %d", got)
	}
}
