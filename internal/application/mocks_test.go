package application

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/devbush/submanager/internal/domain"
	"github.com/devbush/submanager/internal/ports"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// mockGraphClient implements ports.GraphClient for testing
type mockGraphClient struct {
	mu sync.Mutex

	followers []domain.Username
	following []domain.Username
	listErr   error
	pingErr   error

	// graph maps a user to their followers, served 100 per page
	graph     map[domain.Username][]domain.Username
	fetchErrs map[domain.Username]error
	fetched   map[domain.Username]int

	failMutations domain.UserSet
	mutations     map[ports.Verb][]domain.Username
	batchSizes    map[ports.Verb][]int

	window *domain.RateLimitWindow
}

func newMockGraphClient() *mockGraphClient {
	return &mockGraphClient{
		graph:         make(map[domain.Username][]domain.Username),
		fetchErrs:     make(map[domain.Username]error),
		fetched:       make(map[domain.Username]int),
		failMutations: make(domain.UserSet),
		mutations:     make(map[ports.Verb][]domain.Username),
		batchSizes:    make(map[ports.Verb][]int),
	}
}

func (m *mockGraphClient) ListPaged(ctx context.Context, resource ports.Resource, user domain.Username, maxPages int) ([]domain.Username, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	if resource == ports.ResourceFollowers {
		return m.followers, nil
	}
	return m.following, nil
}

func (m *mockGraphClient) FollowerPages(ctx context.Context, user domain.Username, pages []int) ([]domain.Username, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.fetched[user]++
	if err := m.fetchErrs[user]; err != nil {
		return nil, err
	}

	all := m.graph[user]
	var out []domain.Username
	for _, p := range pages {
		start := (p - 1) * 100
		if start >= len(all) {
			break
		}
		out = append(out, all[start:min(start+100, len(all))]...)
	}
	return out, nil
}

func (m *mockGraphClient) Mutate(ctx context.Context, verb ports.Verb, user domain.Username) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.mutations[verb] = append(m.mutations[verb], user)
	return !m.failMutations.Has(user)
}

func (m *mockGraphClient) IsFollowing(ctx context.Context, user domain.Username) (bool, error) {
	for _, f := range m.following {
		if f == user {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockGraphClient) MutateBatch(ctx context.Context, verb ports.Verb, users []domain.Username, stagger time.Duration) map[domain.Username]bool {
	m.mu.Lock()
	m.batchSizes[verb] = append(m.batchSizes[verb], len(users))
	m.mu.Unlock()

	results := make(map[domain.Username]bool, len(users))
	for _, u := range users {
		results[u] = m.Mutate(ctx, verb, u)
	}
	return results
}

func (m *mockGraphClient) FetchBatch(ctx context.Context, requests []ports.PageRequest, stagger time.Duration) map[domain.Username]ports.FetchResult {
	results := make(map[domain.Username]ports.FetchResult, len(requests))
	for _, r := range requests {
		users, err := m.FollowerPages(ctx, r.User, r.Pages)
		results[r.User] = ports.FetchResult{Users: users, Err: err}
	}
	return results
}

func (m *mockGraphClient) CheckConnectivity(ctx context.Context) error {
	return m.pingErr
}

func (m *mockGraphClient) RateLimit() (domain.RateLimitWindow, bool) {
	if m.window == nil {
		return domain.RateLimitWindow{}, false
	}
	return *m.window, true
}

func (m *mockGraphClient) mutated(verb ports.Verb) []domain.Username {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Username(nil), m.mutations[verb]...)
}

// mockStore implements ports.ProtectedStore in memory
type mockStore struct {
	accounts []domain.ProtectedAccount
	loadErr  error
	saveErr  error
	saves    int
}

func (m *mockStore) Load(ctx context.Context) ([]domain.ProtectedAccount, error) {
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	return append([]domain.ProtectedAccount(nil), m.accounts...), nil
}

func (m *mockStore) Save(ctx context.Context, accounts []domain.ProtectedAccount) error {
	m.saves++
	if m.saveErr != nil {
		return m.saveErr
	}
	m.accounts = append([]domain.ProtectedAccount(nil), accounts...)
	return nil
}

var errBoom = errors.New("boom")

func names(s ...string) []domain.Username {
	out := make([]domain.Username, len(s))
	for i, n := range s {
		out[i] = domain.Username(n)
	}
	return out
}
