package syncer_test

import (
	"context"
	"fmt"
)

// mockAdapter implements vcs.Adapter with programmable failures and a
// record of every checkout, so tests can assert the restore guarantee.
type mockAdapter struct {
	dirty      bool
	dirtyErr   error
	tagMissing bool

	currentRef    string
	currentRefErr error
	fetchErr      error
	checkoutErrFor map[string]error

	shortRev    string
	shortRevErr error

	changed   []string
	addErr    error
	commitErr error

	checkouts []string
	fetches   int
	added     []string
	commits   []string
}

func newMockAdapter() *mockAdapter {
	return &mockAdapter{
		currentRef:     "main",
		shortRev:       "abc1234",
		checkoutErrFor: map[string]error{},
	}
}

func (m *mockAdapter) Name() string { return "mock" }

func (m *mockAdapter) IsDirty(context.Context, string) (bool, error) {
	return m.dirty, m.dirtyErr
}

func (m *mockAdapter) TagExists(_ context.Context, _ string, tag string) (bool, error) {
	return !m.tagMissing, nil
}

func (m *mockAdapter) CurrentRef(context.Context, string) (string, error) {
	return m.currentRef, m.currentRefErr
}

func (m *mockAdapter) FetchTags(context.Context, string) error {
	m.fetches++
	return m.fetchErr
}

func (m *mockAdapter) Checkout(_ context.Context, _ string, ref string) error {
	m.checkouts = append(m.checkouts, ref)
	if err, ok := m.checkoutErrFor[ref]; ok {
		return err
	}
	return nil
}

func (m *mockAdapter) ShortRev(_ context.Context, _ string, rev string) (string, error) {
	if m.shortRevErr != nil {
		return "", m.shortRevErr
	}
	return m.shortRev, nil
}

func (m *mockAdapter) ChangedPaths(context.Context, string, string) []string {
	return m.changed
}

func (m *mockAdapter) Add(_ context.Context, _ string, path string) error {
	m.added = append(m.added, path)
	return m.addErr
}

func (m *mockAdapter) Commit(_ context.Context, _ string, message string) error {
	if m.commitErr != nil {
		return m.commitErr
	}
	m.commits = append(m.commits, message)
	return nil
}

// recordingEvents captures engine progress output for assertions.
type recordingEvents struct {
	infos []string
	warns []string
}

func (r *recordingEvents) Infof(format string, args ...any) {
	r.infos = append(r.infos, fmt.Sprintf(format, args...))
}

func (r *recordingEvents) Warnf(format string, args ...any) {
	r.warns = append(r.warns, fmt.Sprintf(format, args...))
}
