package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/roach88/roomlab/internal/auth"
	"github.com/roach88/roomlab/internal/catalog"
	"github.com/roach88/roomlab/internal/kv"
	"github.com/roach88/roomlab/internal/ledger"
	"github.com/roach88/roomlab/internal/testutil"
)

// redacted replaces credentials in recorded invocation args.
const redacted = "********"

// Harness is the test execution engine.
// It runs scenarios with a deterministic clock and deterministic record IDs.
type Harness struct {
	store  kv.Store
	svc    *auth.Service
	opts   []auth.Option
	seq    int64
	logger *slog.Logger
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs against a fresh in-memory store for isolation.
// Deterministic helpers ensure reproducible traces.
//
// Execution flow:
// 1. Create fresh in-memory store and service
// 2. Execute flow steps with expect validation
// 3. Evaluate assertions against the trace and the final ledger
// 4. Return result with pass/fail, trace, and errors
//
// Outcomes the scenario did not expect are reported in Result.Errors.
// The returned error is reserved for scenarios that cannot be executed.
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario)
}

// RunContext is Run with a caller-supplied context.
func RunContext(ctx context.Context, scenario *Scenario) (*Result, error) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // Suppress logs in tests

	opts := []auth.Option{
		auth.WithLogger(logger),
		auth.WithClock(testutil.NewDeterministicClock()),
		auth.WithIDGenerator(testutil.NewSequenceIDGenerator()),
		auth.WithBcryptCost(bcrypt.MinCost),
	}
	if scenario.Catalog != "" {
		cat, err := catalog.Load(scenario.Catalog)
		if err != nil {
			return nil, fmt.Errorf("failed to load catalog: %w", err)
		}
		opts = append(opts, auth.WithCatalog(cat))
	}
	if scenario.SignupGrant != nil {
		opts = append(opts, auth.WithSignupGrant(*scenario.SignupGrant))
	}

	st := kv.NewMemory()
	defer st.Close()

	h := &Harness{
		store:  st,
		svc:    auth.New(st, opts...),
		opts:   opts,
		logger: logger,
	}

	result := NewResult()
	if err := h.executeFlow(ctx, scenario.Flow, result); err != nil {
		return nil, fmt.Errorf("failed to execute flow: %w", err)
	}

	actx := &AssertionContext{
		Ctx:     ctx,
		Store:   st,
		Service: h.svc,
		Keys:    auth.DefaultKeys(),
	}
	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(errMsg)
	}

	return result, nil
}

// executeFlow runs all flow steps and validates expect clauses.
//
// Each step records an invocation, calls the service, and records the
// completion with the outcome case and result fields the service produced.
func (h *Harness) executeFlow(ctx context.Context, flow []FlowStep, result *Result) error {
	for i, step := range flow {
		result.AddInvocationTrace(step.Invoke, redactArgs(step.Args), h.nextSeq())

		outputCase, fields, err := h.execute(ctx, step)
		if err != nil {
			return fmt.Errorf("flow step %d (%s): %w", i, step.Invoke, err)
		}

		result.AddCompletionTrace(outputCase, fields, h.nextSeq())

		if step.Expect != nil {
			for _, msg := range checkExpect(i, step, outputCase, fields) {
				result.AddError(msg)
			}
		}

		h.logger.Info("flow step completed",
			"step", i,
			"action", step.Invoke,
			"output_case", outputCase,
		)
	}
	return nil
}

// execute performs one operation. Service errors become outcome cases;
// any other error aborts the run.
func (h *Harness) execute(ctx context.Context, step FlowStep) (string, map[string]interface{}, error) {
	fields, err := h.invoke(ctx, step)
	if err == nil {
		return CaseOK, fields, nil
	}

	var svcErr *auth.Error
	if !errors.As(err, &svcErr) {
		return "", nil, err
	}
	return strings.ToLower(string(svcErr.Code)), map[string]interface{}{"message": svcErr.Message}, nil
}

func (h *Harness) invoke(ctx context.Context, step FlowStep) (map[string]interface{}, error) {
	args := step.Args
	switch step.Invoke {
	case OpRegister:
		p, err := h.svc.Register(ctx, stringArg(args, "name"), stringArg(args, "email"), stringArg(args, "credential"))
		if err != nil {
			return nil, err
		}
		return profileFields(p), nil

	case OpLogin:
		p, err := h.svc.Login(ctx, stringArg(args, "email"), stringArg(args, "credential"))
		if err != nil {
			return nil, err
		}
		return profileFields(p), nil

	case OpLogout:
		return nil, h.svc.Logout(ctx)

	case OpPurchase:
		amount, err := intArg(args, "amount")
		if err != nil {
			return nil, err
		}
		p, record, err := h.svc.Purchase(ctx, amount)
		if err != nil {
			return nil, err
		}
		fields := profileFields(p)
		fields["cost"] = record.Cost.String()
		return fields, nil

	case OpUseToken:
		spent, err := h.svc.UseDesignToken(ctx)
		if err != nil {
			return nil, err
		}
		p, _, err := h.svc.CurrentAccount(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"spent": spent, "tokens": p.TokenBalance}, nil

	case OpCurrent:
		p, ok, err := h.svc.CurrentAccount(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			return map[string]interface{}{"authenticated": false}, nil
		}
		fields := profileFields(p)
		fields["authenticated"] = true
		return fields, nil

	case OpRestart:
		// A new service over the same store stands in for a new process.
		h.svc = auth.New(h.store, h.opts...)
		restored, err := h.svc.Restore(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"restored": restored}, nil
	}

	return nil, fmt.Errorf("unknown operation %q", step.Invoke)
}

func (h *Harness) nextSeq() int64 {
	h.seq++
	return h.seq
}

// checkExpect compares an outcome against the step's expect clause.
func checkExpect(index int, step FlowStep, outputCase string, fields map[string]interface{}) []string {
	var errs []string
	if outputCase != step.Expect.Case {
		msg := fmt.Sprintf("flow[%d] %s: expected case %q, got %q", index, step.Invoke, step.Expect.Case, outputCase)
		if m, ok := fields["message"]; ok {
			msg += fmt.Sprintf(" (%v)", m)
		}
		errs = append(errs, msg)
		return errs
	}
	for key, want := range step.Expect.Result {
		got, ok := fields[key]
		if !ok {
			errs = append(errs, fmt.Sprintf("flow[%d] %s: result has no field %q", index, step.Invoke, key))
			continue
		}
		if !valuesEqual(got, want) {
			errs = append(errs, fmt.Sprintf("flow[%d] %s: result.%s = %v, expected %v", index, step.Invoke, key, got, want))
		}
	}
	return errs
}

func profileFields(p ledger.Profile) map[string]interface{} {
	return map[string]interface{}{
		"id":     p.ID,
		"name":   p.Name,
		"email":  p.Email,
		"tokens": p.TokenBalance,
	}
}

// redactArgs copies args with any credential masked.
func redactArgs(args map[string]interface{}) map[string]interface{} {
	if len(args) == 0 {
		return nil
	}
	out := make(map[string]interface{}, len(args))
	for k, v := range args {
		if k == "credential" {
			v = redacted
		}
		out[k] = v
	}
	return out
}

func stringArg(args map[string]interface{}, key string) string {
	v, ok := args[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func intArg(args map[string]interface{}, key string) (int, error) {
	switch v := args[key].(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		if v == math.Trunc(v) {
			return int(v), nil
		}
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n, nil
		}
	}
	return 0, fmt.Errorf("arg %q must be an integer, got %v", key, args[key])
}
