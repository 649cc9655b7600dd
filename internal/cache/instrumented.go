package cache

import "context"

// instrumentedStore counts lookups of one store group.
type instrumentedStore struct {
	Store
	group string
}

func instrument(inner Store, group string) Store {
	registerEntries(group, inner.Len)
	return &instrumentedStore{Store: inner, group: group}
}

func (s *instrumentedStore) Get(ctx context.Context, url string) (Page, bool) {
	page, ok := s.Store.Get(ctx, url)
	if ok {
		HitsTotal.WithLabelValues(s.group).Inc()
	} else {
		MissesTotal.WithLabelValues(s.group).Inc()
	}
	return page, ok
}

func (s *instrumentedStore) Forget(ctx context.Context, url string) {
	ForgottenTotal.WithLabelValues(s.group).Inc()
	s.Store.Forget(ctx, url)
}

func (s *instrumentedStore) Close() error {
	unregisterEntries(s.group)
	return s.Store.Close()
}
