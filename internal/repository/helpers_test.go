package repository

import (
	"io"
	"testing"
	"time"

	"catalog_service/internal/domain"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func ptr[T any](v T) *T {
	return &v
}

// snapshots collects subscription deliveries for assertions.
type snapshots[T any] struct {
	ch chan []T
}

func newSnapshots[T any]() *snapshots[T] {
	return &snapshots[T]{ch: make(chan []T, 32)}
}

func (s *snapshots[T]) push(items []T) {
	s.ch <- items
}

func (s *snapshots[T]) next(t *testing.T) []T {
	t.Helper()
	select {
	case items := <-s.ch:
		return items
	case <-time.After(2 * time.Second):
		require.FailNow(t, "timed out waiting for snapshot")
		return nil
	}
}

// until waits for a snapshot satisfying cond, skipping stale ones.
func (s *snapshots[T]) until(t *testing.T, cond func([]T) bool) []T {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case items := <-s.ch:
			if cond(items) {
				return items
			}
		case <-deadline:
			require.FailNow(t, "timed out waiting for matching snapshot")
			return nil
		}
	}
}

func categoryNames(categories []domain.Category) []string {
	names := make([]string, 0, len(categories))
	for _, c := range categories {
		names = append(names, c.Name)
	}
	return names
}

func productNames(products []domain.Product) []string {
	names := make([]string, 0, len(products))
	for _, p := range products {
		names = append(names, p.Name)
	}
	return names
}
