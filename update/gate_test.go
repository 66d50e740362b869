package update

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/tnicklin/update_gate/appstore"
	"github.com/tnicklin/update_gate/notify"
	"github.com/tnicklin/update_gate/store"
	"github.com/tnicklin/update_gate/version"
)

type fakeChecker struct {
	mu     sync.Mutex
	result Result
	calls  int
	delay  time.Duration
}

func (f *fakeChecker) Check(ctx context.Context, now time.Time) Result {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.result
}

func (f *fakeChecker) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeState struct {
	mu      sync.Mutex
	values  map[string]time.Time
	getErr  error
	setErr  error
	setCall int
}

func newFakeState() *fakeState {
	return &fakeState{values: map[string]time.Time{}}
}

func (f *fakeState) GetTime(ctx context.Context, key string) (time.Time, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return time.Time{}, false, f.getErr
	}
	t, ok := f.values[key]
	return t, ok, nil
}

func (f *fakeState) SetTime(ctx context.Context, key string, t time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setCall++
	if f.setErr != nil {
		return f.setErr
	}
	f.values[key] = t
	return nil
}

type fakeHistory struct {
	records []store.CheckRecord
}

func (f *fakeHistory) RecordCheck(ctx context.Context, rec store.CheckRecord) error {
	f.records = append(f.records, rec)
	return nil
}

type fakeNotifier struct {
	notices []notify.Notice
	err     error
}

func (f *fakeNotifier) NotifyUpdate(ctx context.Context, n notify.Notice) error {
	f.notices = append(f.notices, n)
	return f.err
}

func optionalResult() Result {
	return Result{
		Classification: Optional,
		Installed:      version.MustParse("2.1.0"),
		Store:          version.MustParse("2.2.0"),
		ReleaseDate:    tenDays,
		StoreURL:       "https://apps.apple.com/app/id989804926",
	}
}

func newTestGate(t *testing.T, p GateParams) *Gate {
	t.Helper()
	g, err := NewGate(p)
	if err != nil {
		t.Fatalf("NewGate() error = %v", err)
	}
	return g
}

func TestNewGateValidation(t *testing.T) {
	if _, err := NewGate(GateParams{State: newFakeState()}); err == nil {
		t.Fatal("expected error without checker")
	}
	if _, err := NewGate(GateParams{Checker: &fakeChecker{}}); err == nil {
		t.Fatal("expected error without state store")
	}
}

func TestGateFirstEvaluationChecksAndNotifies(t *testing.T) {
	checker := &fakeChecker{result: optionalResult()}
	state := newFakeState()
	notifier := &fakeNotifier{}
	history := &fakeHistory{}
	gate := newTestGate(t, GateParams{Checker: checker, State: state, Notifier: notifier, History: history})

	decision := gate.Evaluate(context.Background(), testNow)

	if !decision.Checked || !decision.ShouldNotify || decision.Classification != Optional {
		t.Fatalf("unexpected decision %+v", decision)
	}
	if decision.StoreURL != "https://apps.apple.com/app/id989804926" {
		t.Fatalf("unexpected store url %s", decision.StoreURL)
	}
	if got := state.values[store.LastCheckedKey]; !got.Equal(testNow) {
		t.Fatalf("expected last checked %s, got %s", testNow, got)
	}
	if len(notifier.notices) != 1 {
		t.Fatalf("expected one notice, got %d", len(notifier.notices))
	}
	notice := notifier.notices[0]
	if notice.StoreURL != decision.StoreURL || notice.Required || notice.StoreVersion != "2.2.0" || notice.InstalledVersion != "2.1.0" {
		t.Fatalf("unexpected notice %+v", notice)
	}
	if len(history.records) != 1 || history.records[0].Classification != "optional" || history.records[0].StoreVersion != "2.2.0" {
		t.Fatalf("unexpected history %+v", history.records)
	}
}

func TestGateSecondEvaluationWithinWindowIsNoop(t *testing.T) {
	checker := &fakeChecker{result: Result{Classification: Required, StoreURL: "https://apps.apple.com/app/id1"}}
	state := newFakeState()
	notifier := &fakeNotifier{}
	gate := newTestGate(t, GateParams{Checker: checker, State: state, Notifier: notifier})

	first := gate.Evaluate(context.Background(), testNow)
	second := gate.Evaluate(context.Background(), testNow.Add(time.Hour))

	if !first.ShouldNotify {
		t.Fatalf("expected first evaluation to notify")
	}
	if second.ShouldNotify || second.Checked {
		t.Fatalf("expected second evaluation to be a no-op, got %+v", second)
	}
	if checker.Calls() != 1 {
		t.Fatalf("expected one check, got %d", checker.Calls())
	}
	if state.setCall != 1 {
		t.Fatalf("expected one timestamp write, got %d", state.setCall)
	}
	if got := state.values[store.LastCheckedKey]; !got.Equal(testNow) {
		t.Fatalf("expected timestamp to stay at first check, got %s", got)
	}
	if len(notifier.notices) != 1 {
		t.Fatalf("expected one notice, got %d", len(notifier.notices))
	}
}

func TestGateReopensAfterInterval(t *testing.T) {
	checker := &fakeChecker{}
	state := newFakeState()
	gate := newTestGate(t, GateParams{Checker: checker, State: state})

	gate.Evaluate(context.Background(), testNow)
	gate.Evaluate(context.Background(), testNow.Add(7*24*time.Hour-time.Second))
	if checker.Calls() != 1 {
		t.Fatalf("expected gate closed just before interval, got %d checks", checker.Calls())
	}

	later := testNow.Add(7 * 24 * time.Hour)
	decision := gate.Evaluate(context.Background(), later)
	if !decision.Checked || checker.Calls() != 2 {
		t.Fatalf("expected check exactly at interval, got %+v after %d checks", decision, checker.Calls())
	}
	if got := state.values[store.LastCheckedKey]; !got.Equal(later) {
		t.Fatalf("expected timestamp %s, got %s", later, got)
	}
}

func TestGateNoUpdateStillStampsAndDoesNotNotify(t *testing.T) {
	state := newFakeState()
	notifier := &fakeNotifier{}
	gate := newTestGate(t, GateParams{Checker: &fakeChecker{}, State: state, Notifier: notifier})

	decision := gate.Evaluate(context.Background(), testNow)
	if decision.ShouldNotify || !decision.Checked {
		t.Fatalf("unexpected decision %+v", decision)
	}
	if _, ok := state.values[store.LastCheckedKey]; !ok {
		t.Fatal("expected timestamp written after a no-update check")
	}
	if len(notifier.notices) != 0 {
		t.Fatalf("expected no notices, got %d", len(notifier.notices))
	}
}

func TestGateFailedCheckStampsByDefault(t *testing.T) {
	state := newFakeState()
	history := &fakeHistory{}
	checker := &fakeChecker{result: Result{Installed: version.MustParse("2.1.0"), Err: appstore.ErrNetwork}}
	gate := newTestGate(t, GateParams{Checker: checker, State: state, History: history})

	decision := gate.Evaluate(context.Background(), testNow)
	if decision.ShouldNotify {
		t.Fatalf("expected failed check to not notify")
	}
	if _, ok := state.values[store.LastCheckedKey]; !ok {
		t.Fatal("expected timestamp written after a failed check")
	}
	if len(history.records) != 1 || history.records[0].Error == "" || history.records[0].InstalledVersion != "2.1.0" {
		t.Fatalf("unexpected history %+v", history.records)
	}
	if history.records[0].StoreVersion != "" {
		t.Fatalf("expected empty store version on failure, got %s", history.records[0].StoreVersion)
	}
}

func TestGateSkipStampOnFailure(t *testing.T) {
	state := newFakeState()
	checker := &fakeChecker{result: Result{Err: appstore.ErrNetwork}}
	gate := newTestGate(t, GateParams{
		Config:  Config{SkipStampOnFailure: true},
		Checker: checker,
		State:   state,
	})

	gate.Evaluate(context.Background(), testNow)
	gate.Evaluate(context.Background(), testNow.Add(time.Minute))

	if state.setCall != 0 {
		t.Fatalf("expected no timestamp writes, got %d", state.setCall)
	}
	if checker.Calls() != 2 {
		t.Fatalf("expected the failed check to be retried, got %d checks", checker.Calls())
	}
}

func TestGateReadFailureFailsClosed(t *testing.T) {
	state := newFakeState()
	state.getErr = errors.New("disk gone")
	checker := &fakeChecker{result: optionalResult()}
	gate := newTestGate(t, GateParams{Checker: checker, State: state})

	decision := gate.Evaluate(context.Background(), testNow)
	if decision.Checked || decision.ShouldNotify {
		t.Fatalf("expected closed decision, got %+v", decision)
	}
	if checker.Calls() != 0 {
		t.Fatalf("expected no check, got %d", checker.Calls())
	}
}

func TestGateWriteAndNotifyFailuresAreSwallowed(t *testing.T) {
	state := newFakeState()
	state.setErr = errors.New("read-only")
	notifier := &fakeNotifier{err: errors.New("ui gone")}
	gate := newTestGate(t, GateParams{Checker: &fakeChecker{result: optionalResult()}, State: state, Notifier: notifier})

	decision := gate.Evaluate(context.Background(), testNow)
	if !decision.ShouldNotify || decision.Classification != Optional {
		t.Fatalf("unexpected decision %+v", decision)
	}
	if len(notifier.notices) != 1 {
		t.Fatalf("expected notifier to be called, got %d", len(notifier.notices))
	}
}

func TestGateConcurrentEvaluateChecksOnce(t *testing.T) {
	checker := &fakeChecker{result: optionalResult(), delay: 20 * time.Millisecond}
	gate := newTestGate(t, GateParams{Checker: checker, State: newFakeState()})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			gate.Evaluate(context.Background(), testNow)
		}()
	}
	wg.Wait()

	if checker.Calls() != 1 {
		t.Fatalf("expected one check across concurrent evaluations, got %d", checker.Calls())
	}
}

func TestGateForceIgnoresWindow(t *testing.T) {
	checker := &fakeChecker{}
	state := newFakeState()
	gate := newTestGate(t, GateParams{Checker: checker, State: state})

	gate.Evaluate(context.Background(), testNow)
	decision := gate.Force(context.Background(), testNow.Add(time.Minute))

	if !decision.Checked || checker.Calls() != 2 {
		t.Fatalf("expected forced check, got %+v after %d checks", decision, checker.Calls())
	}
	if got := state.values[store.LastCheckedKey]; !got.Equal(testNow.Add(time.Minute)) {
		t.Fatalf("expected forced check to stamp, got %s", got)
	}
}

func TestGateStatus(t *testing.T) {
	state := newFakeState()
	gate := newTestGate(t, GateParams{Checker: &fakeChecker{}, State: state})

	status, err := gate.Status(context.Background(), testNow)
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if status.HasChecked || !status.Due {
		t.Fatalf("expected unchecked gate to be due, got %+v", status)
	}

	gate.Evaluate(context.Background(), testNow)
	status, err = gate.Status(context.Background(), testNow.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if !status.HasChecked || status.Due {
		t.Fatalf("expected checked gate to be closed, got %+v", status)
	}
	if !status.NextDueAt.Equal(testNow.Add(7 * 24 * time.Hour)) {
		t.Fatalf("unexpected next due %s", status.NextDueAt)
	}

	state.getErr = errors.New("boom")
	if _, err := gate.Status(context.Background(), testNow); err == nil {
		t.Fatal("expected status error to propagate")
	}
}

func TestGateWithSQLiteStore(t *testing.T) {
	ctx := context.Background()
	st := store.NewSQLiteStore(store.Params{})
	if err := st.Open(ctx); err != nil {
		t.Fatalf("open: %v", err)
	}
	defer st.Close()

	var urls []string
	checker := newTestChecker("2.1.0", func(ctx context.Context, url string) ([]byte, error) {
		return []byte(lookupJSON("3.0.0", tenDays)), nil
	})
	gate := newTestGate(t, GateParams{
		Checker:  checker,
		State:    st,
		History:  st,
		Notifier: notify.Func(func(storeURL string) { urls = append(urls, storeURL) }),
	})

	first := gate.Evaluate(ctx, testNow)
	second := gate.Evaluate(ctx, testNow.Add(time.Hour))

	if first.Classification != Required || !first.ShouldNotify {
		t.Fatalf("unexpected first decision %+v", first)
	}
	if second.Checked {
		t.Fatalf("expected second decision to be gated, got %+v", second)
	}
	if len(urls) != 1 || urls[0] != "https://apps.apple.com/app/id989804926" {
		t.Fatalf("unexpected callback urls %v", urls)
	}

	last, ok, err := st.GetTime(ctx, store.LastCheckedKey)
	if err != nil || !ok || !last.Equal(testNow) {
		t.Fatalf("expected persisted %s, got %s ok=%v err=%v", testNow, last, ok, err)
	}
	checks, err := st.ListChecks(ctx, 0)
	if err != nil {
		t.Fatalf("list checks: %v", err)
	}
	if len(checks) != 1 || checks[0].Classification != "required" {
		t.Fatalf("unexpected history %+v", checks)
	}
}
