package cache

import (
	"context"

	"github.com/agentuity/go-cache/logger"
)

type call struct {
	op    string
	key   any
	value any
}

// spyCache is a store that records every call and can be told to fail.
type spyCache struct {
	*PerpetualCache
	calls     []call
	putErr    func(key any) error
	removeErr func(key any) error
	clearErr  error
}

func newSpy(id string) *spyCache {
	return &spyCache{PerpetualCache: NewPerpetual(id)}
}

func (s *spyCache) Get(ctx context.Context, key any) (bool, any, error) {
	s.calls = append(s.calls, call{op: "get", key: key})
	return s.PerpetualCache.Get(ctx, key)
}

func (s *spyCache) Put(ctx context.Context, key any, value any) error {
	s.calls = append(s.calls, call{op: "put", key: key, value: value})
	if s.putErr != nil {
		if err := s.putErr(key); err != nil {
			return err
		}
	}
	return s.PerpetualCache.Put(ctx, key, value)
}

func (s *spyCache) Remove(ctx context.Context, key any) (bool, any, error) {
	s.calls = append(s.calls, call{op: "remove", key: key})
	if s.removeErr != nil {
		if err := s.removeErr(key); err != nil {
			return false, nil, err
		}
	}
	return s.PerpetualCache.Remove(ctx, key)
}

func (s *spyCache) Clear(ctx context.Context) error {
	s.calls = append(s.calls, call{op: "clear"})
	if s.clearErr != nil {
		return s.clearErr
	}
	return s.PerpetualCache.Clear(ctx)
}

func (s *spyCache) count(op string, key any) int {
	n := 0
	for _, c := range s.calls {
		if c.op == op && (key == nil || c.key == key) {
			n++
		}
	}
	return n
}

func quiet() Option {
	return WithLogger(logger.NewNoopLogger())
}
