package app

import (
	"sync"

	"quizhost/internal/domain"
)

// LeaderboardFeed fans leaderboard snapshots out to in-process subscribers, per quiz.
type LeaderboardFeed struct {
	mu          sync.Mutex
	subscribers map[int64]map[chan domain.Leaderboard]struct{}
}

func NewLeaderboardFeed() *LeaderboardFeed {
	return &LeaderboardFeed{
		subscribers: make(map[int64]map[chan domain.Leaderboard]struct{}),
	}
}

// Subscribe registers for updates of initial.QuizID and immediately delivers initial.
func (f *LeaderboardFeed) Subscribe(initial domain.Leaderboard) (<-chan domain.Leaderboard, func()) {
	ch := make(chan domain.Leaderboard, 8)
	quizID := initial.QuizID

	f.mu.Lock()
	subs, ok := f.subscribers[quizID]
	if !ok {
		subs = make(map[chan domain.Leaderboard]struct{})
		f.subscribers[quizID] = subs
	}
	subs[ch] = struct{}{}
	ch <- initial
	f.mu.Unlock()

	cancel := func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		subs, ok := f.subscribers[quizID]
		if !ok {
			return
		}
		if _, ok := subs[ch]; ok {
			delete(subs, ch)
			close(ch)
		}
		if len(subs) == 0 {
			delete(f.subscribers, quizID)
		}
	}
	return ch, cancel
}

// HasSubscribers reports whether anyone listens to quizID.
func (f *LeaderboardFeed) HasSubscribers(quizID int64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subscribers[quizID]) > 0
}

// Publish delivers lb to every subscriber of lb.QuizID without blocking.
func (f *LeaderboardFeed) Publish(lb domain.Leaderboard) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for ch := range f.subscribers[lb.QuizID] {
		select {
		case ch <- lb:
		default:
			// slow subscriber: drop the oldest snapshot, keep the newest
			select {
			case <-ch:
			default:
			}
			ch <- lb
		}
	}
}
