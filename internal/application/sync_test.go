package application

import (
	"context"
	"errors"
	"reflect"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/devbush/submanager/internal/domain"
	"github.com/devbush/submanager/internal/ports"
)

var syncNow = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

func testSyncOptions() SyncOptions {
	return SyncOptions{
		Self:            "me",
		RetentionDays:   3,
		TargetProtected: 0,
		BatchSize:       5,
	}
}

func newTestSync(client *mockGraphClient, store *mockStore, disc *DiscoveryService, opts SyncOptions) *SyncService {
	var ps ports.ProtectedStore
	if store != nil {
		ps = store
	}
	svc := NewSyncService(client, ps, disc, opts, quietLogger())
	svc.now = func() time.Time { return syncNow }
	return svc
}

func daysAgo(n int) time.Time {
	return syncNow.AddDate(0, 0, -n)
}

func TestSync_BasicDelta(t *testing.T) {
	client := newMockGraphClient()
	client.followers = names("a", "b", "c")
	client.following = names("b", "c", "d")

	report, err := newTestSync(client, nil, nil, testSyncOptions()).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if !reflect.DeepEqual(client.mutated(ports.VerbFollow), names("a")) {
		t.Errorf("followed %v, want [a]", client.mutated(ports.VerbFollow))
	}
	if !reflect.DeepEqual(client.mutated(ports.VerbUnfollow), names("d")) {
		t.Errorf("unfollowed %v, want [d]", client.mutated(ports.VerbUnfollow))
	}
	if report.Follow.Succeeded != 1 || report.Unfollow.Succeeded != 1 {
		t.Errorf("report = %+v", report)
	}
}

func TestSync_Exclusions(t *testing.T) {
	client := newMockGraphClient()
	client.followers = names("a", "spam", "me")
	client.following = names("d", "friend", "me")

	opts := testSyncOptions()
	opts.Exclusions = Exclusions{
		Follow:   domain.UserSetOf("spam"),
		Unfollow: domain.UserSetOf("friend"),
	}

	report, err := newTestSync(client, nil, nil, opts).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	want := domain.Plan{Follow: names("a"), Unfollow: names("d")}
	if !reflect.DeepEqual(report.Plan, want) {
		t.Errorf("Plan = %+v, want %+v", report.Plan, want)
	}
}

func TestSync_DryRun(t *testing.T) {
	client := newMockGraphClient()
	client.followers = names("a")
	client.following = names("d")

	opts := testSyncOptions()
	opts.DryRun = true

	report, err := newTestSync(client, nil, nil, opts).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if !report.DryRun {
		t.Error("report should be marked as dry run")
	}
	if len(report.Plan.Follow) != 1 || len(report.Plan.Unfollow) != 1 {
		t.Errorf("Plan = %+v", report.Plan)
	}
	if n := len(client.mutated(ports.VerbFollow)) + len(client.mutated(ports.VerbUnfollow)); n != 0 {
		t.Errorf("dry run issued %d mutations", n)
	}
}

func TestSync_PartialFailure(t *testing.T) {
	client := newMockGraphClient()
	client.followers = names("a", "b", "c")
	client.failMutations.Add("b")

	report, err := newTestSync(client, nil, nil, testSyncOptions()).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if report.Follow.Attempted != 3 || report.Follow.Succeeded != 2 {
		t.Errorf("Follow = %+v, want 3 attempted and 2 succeeded", report.Follow)
	}
	if !reflect.DeepEqual(report.Follow.Failed, names("b")) {
		t.Errorf("Failed = %v, want [b]", report.Follow.Failed)
	}
}

func TestSync_SubBatches(t *testing.T) {
	client := newMockGraphClient()
	for _, c := range "abcdefghijkl" {
		client.followers = append(client.followers, domain.Username(string(c)))
	}

	var mu sync.Mutex
	var progressed, planned int
	svc := newTestSync(client, nil, nil, testSyncOptions())
	svc.OnPlan(func(p domain.Plan) { planned = len(p.Follow) })
	svc.OnProgress(func(verb ports.Verb, results map[domain.Username]bool) {
		mu.Lock()
		defer mu.Unlock()
		progressed += len(results)
	})

	if _, err := svc.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if got := client.batchSizes[ports.VerbFollow]; !reflect.DeepEqual(got, []int{5, 5, 2}) {
		t.Errorf("batch sizes = %v, want [5 5 2]", got)
	}
	if planned != 12 {
		t.Errorf("plan callback saw %d follows, want 12", planned)
	}
	if progressed != 12 {
		t.Errorf("progress saw %d results, want 12", progressed)
	}
}

func TestSync_ConnectivityFailure(t *testing.T) {
	client := newMockGraphClient()
	client.pingErr = domain.ErrUnauthorized
	client.followers = names("a")

	_, err := newTestSync(client, nil, nil, testSyncOptions()).Run(context.Background())
	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("Run() error = %v, want ErrUnauthorized", err)
	}
	if len(client.mutated(ports.VerbFollow)) != 0 {
		t.Error("no mutations expected")
	}
}

func TestSync_FetchFailure(t *testing.T) {
	client := newMockGraphClient()
	client.listErr = errBoom

	_, err := newTestSync(client, nil, nil, testSyncOptions()).Run(context.Background())
	if !errors.Is(err, errBoom) {
		t.Errorf("Run() error = %v, want errBoom", err)
	}
	if len(client.mutated(ports.VerbUnfollow)) != 0 {
		t.Error("no mutations expected")
	}
}

func TestSync_ProtectedAccounts(t *testing.T) {
	client := newMockGraphClient()
	client.followers = names("a", "b", "c")
	client.following = names("b", "c", "d", "e")

	store := &mockStore{accounts: []domain.ProtectedAccount{
		{Username: "d", AcquiredAt: daysAgo(3)},
		{Username: "e", AcquiredAt: daysAgo(10)},
	}}

	opts := testSyncOptions()
	opts.Discovery = true

	report, err := newTestSync(client, store, nil, opts).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if !reflect.DeepEqual(report.Plan.Follow, names("a")) {
		t.Errorf("Follow = %v, want [a]", report.Plan.Follow)
	}
	if len(report.Plan.Unfollow) != 0 {
		t.Errorf("Unfollow = %v, want none", report.Plan.Unfollow)
	}
	if report.ProtectedActive != 1 || report.ProtectedExpired != 1 {
		t.Errorf("protected active=%d expired=%d, want 1 and 1", report.ProtectedActive, report.ProtectedExpired)
	}
	if len(store.accounts) != 1 || store.accounts[0].Username != "d" {
		t.Errorf("store = %+v, want only d", store.accounts)
	}
}

func TestSync_ProtectedIgnoredWhenDiscoveryDisabled(t *testing.T) {
	client := newMockGraphClient()
	client.following = names("d")
	store := &mockStore{accounts: []domain.ProtectedAccount{{Username: "d", AcquiredAt: daysAgo(1)}}}

	report, err := newTestSync(client, store, nil, testSyncOptions()).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if !reflect.DeepEqual(report.Plan.Unfollow, names("d")) {
		t.Errorf("Unfollow = %v, want [d]", report.Plan.Unfollow)
	}
	if store.saves != 0 {
		t.Errorf("store saved %d times, want 0", store.saves)
	}
}

func TestSync_StoreLoadFailureKeepsFile(t *testing.T) {
	client := newMockGraphClient()
	client.following = names("d")
	store := &mockStore{loadErr: errBoom}

	opts := testSyncOptions()
	opts.Discovery = true

	report, err := newTestSync(client, store, nil, opts).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if !reflect.DeepEqual(report.Plan.Unfollow, names("d")) {
		t.Errorf("Unfollow = %v, want [d]", report.Plan.Unfollow)
	}
	if store.saves != 0 {
		t.Errorf("store saved %d times after a failed load", store.saves)
	}
}

func TestSync_DiscoveryTopsUpProtected(t *testing.T) {
	client := newMockGraphClient()
	client.followers = names("a")
	client.following = names("a", "old")
	client.graph["a"] = names("me", "x1", "x2", "x3")

	store := &mockStore{accounts: []domain.ProtectedAccount{
		{Username: "old", AcquiredAt: daysAgo(1)},
	}}

	opts := testSyncOptions()
	opts.Discovery = true
	opts.TargetProtected = 3

	disc := newTestDiscovery(client, testDiscoveryOptions(), 1)
	report, err := newTestSync(client, store, disc, opts).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if !reflect.DeepEqual(report.Discovered, names("x1", "x2")) {
		t.Errorf("Discovered = %v, want [x1 x2]", report.Discovered)
	}

	followed := client.mutated(ports.VerbFollow)
	sort.Slice(followed, func(i, j int) bool { return followed[i] < followed[j] })
	if !reflect.DeepEqual(followed, names("x1", "x2")) {
		t.Errorf("followed %v, want [x1 x2]", followed)
	}
	if len(report.Plan.Unfollow) != 0 {
		t.Errorf("Unfollow = %v, want none", report.Plan.Unfollow)
	}

	if report.ProtectedActive != 3 {
		t.Errorf("ProtectedActive = %d, want 3", report.ProtectedActive)
	}
	if len(store.accounts) != 3 {
		t.Fatalf("store = %+v, want 3 accounts", store.accounts)
	}
	for _, acc := range store.accounts[1:] {
		if !acc.AcquiredAt.Equal(syncNow) {
			t.Errorf("%s acquired at %v, want %v", acc.Username, acc.AcquiredAt, syncNow)
		}
	}
}

func TestSync_ExpiredProtectedNotUnfollowed(t *testing.T) {
	client := newMockGraphClient()
	client.followers = names("a")
	client.following = names("a", "e")
	store := &mockStore{accounts: []domain.ProtectedAccount{{Username: "e", AcquiredAt: daysAgo(10)}}}

	opts := testSyncOptions()
	opts.Discovery = true

	report, err := newTestSync(client, store, nil, opts).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(report.Plan.Unfollow) != 0 {
		t.Errorf("Unfollow = %v, want none", report.Plan.Unfollow)
	}
	if len(client.mutated(ports.VerbUnfollow)) != 0 {
		t.Errorf("unfollowed %v, want none", client.mutated(ports.VerbUnfollow))
	}
	if report.ProtectedExpired != 1 || len(store.accounts) != 0 {
		t.Errorf("expired=%d store=%+v, want 1 expired and an empty store", report.ProtectedExpired, store.accounts)
	}
}

func TestSync_DryRunLeavesStoreUntouched(t *testing.T) {
	client := newMockGraphClient()
	client.followers = names("a")
	client.graph["a"] = names("x1", "x2")
	old := []domain.ProtectedAccount{{Username: "e", AcquiredAt: daysAgo(10)}}
	store := &mockStore{accounts: old}

	opts := testSyncOptions()
	opts.Discovery = true
	opts.DryRun = true
	opts.TargetProtected = 2

	disc := newTestDiscovery(client, testDiscoveryOptions(), 1)
	report, err := newTestSync(client, store, disc, opts).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if store.saves != 0 {
		t.Errorf("dry run saved the store %d times", store.saves)
	}
	if !reflect.DeepEqual(store.accounts, old) {
		t.Errorf("store = %+v, want unchanged", store.accounts)
	}
	if !reflect.DeepEqual(report.Discovered, names("x1", "x2")) {
		t.Errorf("Discovered = %v, want [x1 x2]", report.Discovered)
	}
	if !reflect.DeepEqual(report.Plan.Follow, names("a", "x1", "x2")) {
		t.Errorf("Follow = %v, want [a x1 x2]", report.Plan.Follow)
	}
}

func TestSync_DiscoveryKeepsFollowedCandidates(t *testing.T) {
	client := newMockGraphClient()
	client.followers = names("a")
	client.following = names("a", "y")
	client.graph["a"] = names("y", "x1")

	store := &mockStore{}
	opts := testSyncOptions()
	opts.Discovery = true
	opts.TargetProtected = 2

	disc := newTestDiscovery(client, testDiscoveryOptions(), 1)
	report, err := newTestSync(client, store, disc, opts).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if !reflect.DeepEqual(report.Discovered, names("y", "x1")) {
		t.Errorf("Discovered = %v, want [y x1]", report.Discovered)
	}
	want := domain.Plan{Follow: names("x1"), Unfollow: []domain.Username{}}
	if !reflect.DeepEqual(report.Plan, want) {
		t.Errorf("Plan = %+v, want %+v", report.Plan, want)
	}
	if len(store.accounts) != 2 {
		t.Errorf("store = %+v, want y and x1", store.accounts)
	}
}
