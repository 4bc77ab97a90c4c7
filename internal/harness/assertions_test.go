package harness

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/roach88/roomlab/internal/auth"
	"github.com/roach88/roomlab/internal/kv"
	"github.com/roach88/roomlab/internal/testutil"
)

func intPtr(n int) *int { return &n }

func sampleTrace() []TraceEvent {
	return []TraceEvent{
		{Type: "invocation", Action: OpRegister, Args: map[string]interface{}{"name": "Ana", "email": "ana@x.com"}, Seq: 1},
		{Type: "completion", OutputCase: CaseOK, Seq: 2},
		{Type: "invocation", Action: OpUseToken, Seq: 3},
		{Type: "completion", OutputCase: CaseOK, Seq: 4},
		{Type: "invocation", Action: OpLogout, Seq: 5},
		{Type: "completion", OutputCase: CaseOK, Seq: 6},
		{Type: "invocation", Action: OpUseToken, Seq: 7},
		{Type: "completion", OutputCase: CaseAuth, Seq: 8},
	}
}

// newAssertionContext registers Ana with one spend, leaving her signed in.
func newAssertionContext(t *testing.T) *AssertionContext {
	t.Helper()
	ctx := context.Background()
	st := kv.NewMemory()
	svc := auth.New(st,
		auth.WithClock(testutil.NewDeterministicClock()),
		auth.WithIDGenerator(testutil.NewSequenceIDGenerator()),
		auth.WithBcryptCost(bcrypt.MinCost),
	)
	_, err := svc.Register(ctx, "Ana", "ana@x.com", "pw")
	require.NoError(t, err)
	spent, err := svc.UseDesignToken(ctx)
	require.NoError(t, err)
	require.True(t, spent)
	return &AssertionContext{Ctx: ctx, Store: st, Service: svc, Keys: auth.DefaultKeys()}
}

func TestAssertTraceContains_Found(t *testing.T) {
	err := assertTraceContains(sampleTrace(), Assertion{
		Type:   AssertTraceContains,
		Action: OpRegister,
		Args:   map[string]interface{}{"email": "ana@x.com"},
	})
	assert.NoError(t, err)
}

func TestAssertTraceContains_NotFound(t *testing.T) {
	err := assertTraceContains(sampleTrace(), Assertion{Type: AssertTraceContains, Action: OpPurchase})
	require.Error(t, err)

	var assertErr *AssertionError
	require.ErrorAs(t, err, &assertErr)
	assert.Equal(t, AssertTraceContains, assertErr.Type)
	assert.Contains(t, assertErr.Expected, "purchase")
	assert.Equal(t, "not found in trace", assertErr.Actual)
}

func TestAssertTraceContains_WrongArgs(t *testing.T) {
	err := assertTraceContains(sampleTrace(), Assertion{
		Type:   AssertTraceContains,
		Action: OpRegister,
		Args:   map[string]interface{}{"email": "bob@x.com"},
	})
	require.Error(t, err)
}

func TestAssertTraceOrder_AllowsRepeatsAndGaps(t *testing.T) {
	err := assertTraceOrder(sampleTrace(), Assertion{
		Type:    AssertTraceOrder,
		Actions: []string{OpRegister, OpLogout, OpUseToken},
	})
	assert.NoError(t, err)

	err = assertTraceOrder(sampleTrace(), Assertion{
		Type:    AssertTraceOrder,
		Actions: []string{OpUseToken, OpUseToken},
	})
	assert.NoError(t, err)
}

func TestAssertTraceOrder_WrongOrder(t *testing.T) {
	err := assertTraceOrder(sampleTrace(), Assertion{
		Type:    AssertTraceOrder,
		Actions: []string{OpLogout, OpRegister},
	})
	require.Error(t, err)

	var assertErr *AssertionError
	require.ErrorAs(t, err, &assertErr)
	assert.Contains(t, assertErr.Actual, "then no register")
}

func TestAssertTraceCount(t *testing.T) {
	assert.NoError(t, assertTraceCount(sampleTrace(), Assertion{Action: OpUseToken, Count: intPtr(2)}))
	assert.NoError(t, assertTraceCount(sampleTrace(), Assertion{Action: OpLogin, Count: intPtr(0)}))

	err := assertTraceCount(sampleTrace(), Assertion{Action: OpUseToken, Count: intPtr(3)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "3 occurrences of use_token")
	assert.Contains(t, err.Error(), "Actual: 2 occurrences")
}

func TestAssertionError_ListsTrace(t *testing.T) {
	err := &AssertionError{Type: "balance", Expected: "3", Actual: "2", Trace: sampleTrace()}
	msg := err.Error()
	assert.Contains(t, msg, "Assertion failed: balance")
	assert.Contains(t, msg, "[1] register")
	assert.Contains(t, msg, "[4] use_token map[] -> auth")
}

func TestEvaluateAssertions_Ledger(t *testing.T) {
	actx := newAssertionContext(t)
	result := &Result{Trace: sampleTrace()}

	errs := EvaluateAssertions(result, []Assertion{
		{Type: AssertBalance, Email: "ANA@x.com", Tokens: intPtr(2)},
		{Type: AssertConsumptionCount, Email: "ana@x.com", Count: intPtr(1)},
		{Type: AssertConsumptionCount, Count: intPtr(1)},
		{Type: AssertPurchaseCount, Count: intPtr(0)},
		{Type: AssertSession, State: "authenticated", Email: "ana@x.com"},
	}, actx)
	assert.Empty(t, errs)
}

func TestEvaluateAssertions_LedgerFailures(t *testing.T) {
	actx := newAssertionContext(t)
	result := &Result{Trace: sampleTrace()}

	errs := EvaluateAssertions(result, []Assertion{
		{Type: AssertBalance, Email: "ana@x.com", Tokens: intPtr(3)},
		{Type: AssertBalance, Email: "bob@x.com", Tokens: intPtr(3)},
		{Type: AssertPurchaseCount, Email: "ana@x.com", Count: intPtr(1)},
		{Type: AssertSession, State: "anonymous"},
		{Type: AssertSession, State: "authenticated", Email: "bob@x.com"},
	}, actx)
	require.Len(t, errs, 5)
	assert.Contains(t, errs[0], "Actual: 2 tokens")
	assert.Contains(t, errs[1], "no such account")
	assert.Contains(t, errs[2], "Actual: 0 records")
	assert.Contains(t, errs[3], "Actual: session authenticated")
	assert.Contains(t, errs[4], "signed in as ana@x.com")
}

func TestEvaluateAssertions_LedgerNeedsContext(t *testing.T) {
	errs := EvaluateAssertions(&Result{}, []Assertion{
		{Type: AssertBalance, Email: "ana@x.com", Tokens: intPtr(3)},
	}, nil)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "requires a store and service")
}

func TestEvaluateAssertions_IncompleteAssertion(t *testing.T) {
	actx := newAssertionContext(t)
	errs := EvaluateAssertions(&Result{}, []Assertion{
		{Type: AssertBalance, Email: "ana@x.com"},
	}, actx)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "email and tokens are required")
}

func TestEvaluateAssertions_UnknownType(t *testing.T) {
	errs := EvaluateAssertions(&Result{}, []Assertion{{Type: "final_state"}}, nil)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], `unknown assertion type "final_state"`)
}

func TestValuesEqual(t *testing.T) {
	tests := []struct {
		name     string
		actual   interface{}
		expected interface{}
		want     bool
	}{
		{"both nil", nil, nil, true},
		{"one nil", "x", nil, false},
		{"int widths", 3, int64(3), true},
		{"int vs whole float", 3, float64(3), true},
		{"int mismatch", 3, 4, false},
		{"decimal string vs float", "24.99", 24.99, true},
		{"decimal string trailing zero", "12.5", 12.50, true},
		{"decimal string mismatch", "9.99", 9.98, false},
		{"non-numeric string vs float", "abc", 1.5, false},
		{"strings", "ok", "ok", true},
		{"bools", true, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, valuesEqual(tt.actual, tt.expected))
		})
	}
}

func TestMatchArgs_SubsetSemantics(t *testing.T) {
	actual := map[string]interface{}{"email": "ana@x.com", "name": "Ana"}
	assert.True(t, matchArgs(actual, nil))
	assert.True(t, matchArgs(actual, map[string]interface{}{"name": "Ana"}))
	assert.False(t, matchArgs(actual, map[string]interface{}{"amount": 5}))
	assert.False(t, matchArgs(nil, map[string]interface{}{"name": "Ana"}))
}
