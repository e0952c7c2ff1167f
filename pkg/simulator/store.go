package simulator

import (
    "fmt"
    "sort"
)

type entity[T any] struct {
    id   string
    name string
    v    T
}

// store holds named entities with generated IDs.
type store[T any] struct {
    prefix string
    seq    int
    items  map[string]*entity[T]
}

func newStore[T any](prefix string) *store[T] {
    return &store[T]{prefix: prefix, items: make(map[string]*entity[T])}
}

func (s *store[T]) create(name string, v T) *entity[T] {
    s.seq++
    e := &entity[T]{id: fmt.Sprintf("%s-%d", s.prefix, s.seq), name: name, v: v}
    s.items[e.id] = e
    return e
}

func (s *store[T]) get(id string) (*entity[T], bool) {
    e, ok := s.items[id]
    return e, ok
}

func (s *store[T]) remove(id string) bool {
    _, ok := s.items[id]
    delete(s.items, id)
    return ok
}

func (s *store[T]) ids() []string {
    out := make([]string, 0, len(s.items))
    for id := range s.items { out = append(out, id) }
    sort.Strings(out)
    return out
}

func (s *store[T]) any(fn func(*entity[T]) bool) bool {
    for _, e := range s.items {
        if fn(e) { return true }
    }
    return false
}
