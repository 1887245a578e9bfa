package nomination

import "github.com/maaaruch/shoppies-bot/internal/domain"

// Capacity is the maximum number of nominations per session.
const Capacity = 5

// Set is an ordered, capacity-bounded collection of movies unique by ImdbID.
type Set struct {
	items []domain.Movie
	index map[string]int
}

func NewSet(movies []domain.Movie) *Set {
	s := &Set{index: make(map[string]int, Capacity)}
	for _, m := range movies {
		if s.Full() {
			break
		}
		s.add(m)
	}
	return s
}

func (s *Set) Len() int { return len(s.items) }

func (s *Set) Full() bool { return len(s.items) >= Capacity }

func (s *Set) Has(id string) bool {
	_, ok := s.index[id]
	return ok
}

// add appends m unless it is already present or the set is full.
func (s *Set) add(m domain.Movie) bool {
	if m.ImdbID == "" || s.Has(m.ImdbID) || s.Full() {
		return false
	}
	m.Nominated = true
	s.index[m.ImdbID] = len(s.items)
	s.items = append(s.items, m)
	return true
}

func (s *Set) remove(id string) bool {
	i, ok := s.index[id]
	if !ok {
		return false
	}
	s.items = append(s.items[:i], s.items[i+1:]...)
	delete(s.index, id)
	for j := i; j < len(s.items); j++ {
		s.index[s.items[j].ImdbID] = j
	}
	return true
}

func (s *Set) clear() {
	s.items = nil
	s.index = make(map[string]int, Capacity)
}

// Movies returns a copy in nomination order.
func (s *Set) Movies() []domain.Movie {
	out := make([]domain.Movie, len(s.items))
	copy(out, s.items)
	return out
}
