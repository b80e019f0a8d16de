package chain

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/machinepulse/machinepulse/internal/record"
	"github.com/machinepulse/machinepulse/internal/stage"
)

var baseTime = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// fakeStage records its lifecycle and annotates passing records so tests can
// observe execution order.
type fakeStage struct {
	label     string
	initErr   error
	procErr   error
	cleanedUp bool
	calls     int
}

func (f *fakeStage) Init(p *stage.Params) error { return f.initErr }
func (f *fakeStage) Cleanup()                   { f.cleanedUp = true }

func (f *fakeStage) Process(rec record.Record, now time.Time) (record.Record, error) {
	f.calls++
	if f.procErr != nil {
		return nil, f.procErr
	}
	out := record.NewResult(rec.Device(), rec.Time())
	if in, ok := rec.(*record.Result); ok {
		for k, v := range in.Values {
			out.Values[k] = v
		}
	}
	trail, _ := out.String("trail")
	if trail != "" {
		trail += ","
	}
	out.SetString("trail", trail+f.label)
	return out, nil
}

func testManager(t *testing.T, stages map[string]*fakeStage) (*Manager, *prometheus.Registry) {
	t.Helper()
	reg := NewRegistry()
	for name, fs := range stages {
		inst := fs
		if err := reg.Register(name, func() stage.Stage { return inst }); err != nil {
			t.Fatalf("Register(%s): %v", name, err)
		}
	}
	promReg := prometheus.NewRegistry()
	return NewManager(reg, NewMetrics(promReg), nil), promReg
}

func input(device string) record.Record {
	return record.NewResult(device, baseTime)
}

func TestCreateChain_UnregisteredTypeFailsAtomically(t *testing.T) {
	a := &fakeStage{label: "a"}
	m, _ := testManager(t, map[string]*fakeStage{"a": a})

	err := m.CreateChain("c1", []StageSpec{
		{Type: "a", Name: "first"},
		{Type: "nope", Name: "second"},
	})
	if err == nil {
		t.Fatal("CreateChain with unregistered type: expected error")
	}
	if got := m.Chains(); len(got) != 0 {
		t.Errorf("chains after failed create: got %v, want none", got)
	}
	if a.calls != 0 {
		t.Error("stage ran despite failed creation")
	}
}

func TestCreateChain_InitFailureTearsDown(t *testing.T) {
	a := &fakeStage{label: "a"}
	b := &fakeStage{label: "b", initErr: errors.New("bad params")}
	m, _ := testManager(t, map[string]*fakeStage{"a": a, "b": b})

	err := m.CreateChain("c1", []StageSpec{
		{Type: "a", Name: "first"},
		{Type: "b", Name: "second"},
	})
	if err == nil {
		t.Fatal("CreateChain with failing Init: expected error")
	}
	if !a.cleanedUp {
		t.Error("earlier stage not cleaned up after Init failure")
	}
	if got := m.Chains(); len(got) != 0 {
		t.Errorf("chains after failed create: got %v", got)
	}
}

func TestCreateChain_DuplicateName(t *testing.T) {
	a := &fakeStage{label: "a"}
	m, _ := testManager(t, map[string]*fakeStage{"a": a})

	specs := []StageSpec{{Type: "a", Name: "first"}}
	if err := m.CreateChain("c1", specs); err != nil {
		t.Fatalf("CreateChain: %v", err)
	}
	if err := m.CreateChain("c1", specs); err == nil {
		t.Fatal("duplicate CreateChain: expected error")
	}
}

func TestExecute_RunsStagesInOrder(t *testing.T) {
	a := &fakeStage{label: "a"}
	b := &fakeStage{label: "b"}
	m, _ := testManager(t, map[string]*fakeStage{"a": a, "b": b})

	if err := m.CreateChain("c1", []StageSpec{
		{Type: "a", Name: "first"},
		{Type: "b", Name: "second"},
	}); err != nil {
		t.Fatalf("CreateChain: %v", err)
	}

	out, err := m.Execute("c1", input("pump-1"), baseTime)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	trail, _ := out.(*record.Result).String("trail")
	if trail != "a,b" {
		t.Errorf("execution order: got %q, want a,b", trail)
	}
}

func TestExecute_AbortsOnStageError(t *testing.T) {
	a := &fakeStage{label: "a"}
	b := &fakeStage{label: "b", procErr: errors.New("boom")}
	c := &fakeStage{label: "c"}
	m, _ := testManager(t, map[string]*fakeStage{"a": a, "b": b, "c": c})

	m.CreateChain("c1", []StageSpec{ //nolint:errcheck
		{Type: "a", Name: "first"},
		{Type: "b", Name: "second"},
		{Type: "c", Name: "third"},
	})

	out, err := m.Execute("c1", input("pump-1"), baseTime)
	if err == nil {
		t.Fatal("Execute with failing stage: expected error")
	}
	if out != nil {
		t.Error("Execute returned partial output alongside an error")
	}
	if c.calls != 0 {
		t.Error("downstream stage ran after a failure")
	}
	if !strings.Contains(err.Error(), "second") {
		t.Errorf("error does not name the failing stage: %v", err)
	}

	lastErr, ok := m.LastError("c1", "second")
	if !ok || lastErr == nil {
		t.Error("LastError not retained for the failing stage")
	}
	if lastErr, ok := m.LastError("c1", "first"); !ok || lastErr != nil {
		t.Errorf("LastError for succeeding stage: got %v", lastErr)
	}
}

func TestExecute_UnknownChain(t *testing.T) {
	m, _ := testManager(t, nil)
	if _, err := m.Execute("ghost", input("pump-1"), baseTime); err == nil {
		t.Fatal("Execute on unknown chain: expected error")
	}
}

func TestSetTransform_Projection(t *testing.T) {
	a := &fakeStage{label: "a"}
	b := &fakeStage{label: "b"}
	m, _ := testManager(t, map[string]*fakeStage{"a": a, "b": b})

	m.CreateChain("c1", []StageSpec{ //nolint:errcheck
		{Type: "a", Name: "first"},
		{Type: "b", Name: "second"},
	})
	if err := m.SetTransform("c1", "second", Project("trail")); err != nil {
		t.Fatalf("SetTransform: %v", err)
	}

	in := record.NewResult("pump-1", baseTime)
	in.SetFloat("noise", 42)
	out, err := m.Execute("c1", in, baseTime)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	res := out.(*record.Result)
	if _, ok := res.Float("noise"); ok {
		t.Error("projected-away key survived the edge")
	}
	trail, _ := res.String("trail")
	if trail != "a,b" {
		t.Errorf("trail after projection: got %q", trail)
	}
}

func TestProject_MissingKeyFailsEdge(t *testing.T) {
	a := &fakeStage{label: "a"}
	b := &fakeStage{label: "b"}
	m, _ := testManager(t, map[string]*fakeStage{"a": a, "b": b})

	m.CreateChain("c1", []StageSpec{ //nolint:errcheck
		{Type: "a", Name: "first"},
		{Type: "b", Name: "second"},
	})
	m.SetTransform("c1", "second", Project("no_such_key")) //nolint:errcheck

	if _, err := m.Execute("c1", input("pump-1"), baseTime); err == nil {
		t.Fatal("projection of missing key: expected error")
	}
	if b.calls != 0 {
		t.Error("stage ran after its edge failed")
	}
}

func TestRemoveChain_CleansUpStages(t *testing.T) {
	a := &fakeStage{label: "a"}
	m, _ := testManager(t, map[string]*fakeStage{"a": a})

	m.CreateChain("c1", []StageSpec{{Type: "a", Name: "first"}}) //nolint:errcheck
	if err := m.RemoveChain("c1"); err != nil {
		t.Fatalf("RemoveChain: %v", err)
	}
	if !a.cleanedUp {
		t.Error("stage not cleaned up on RemoveChain")
	}
	if err := m.RemoveChain("c1"); err == nil {
		t.Error("second RemoveChain: expected error")
	}
}

func TestMetricsCountExecutionsAndFailures(t *testing.T) {
	a := &fakeStage{label: "a"}
	b := &fakeStage{label: "b", procErr: errors.New("boom")}
	m, promReg := testManager(t, map[string]*fakeStage{"a": a, "b": b})

	m.CreateChain("c1", []StageSpec{ //nolint:errcheck
		{Type: "a", Name: "first"},
		{Type: "b", Name: "second"},
	})
	m.Execute("c1", input("pump-1"), baseTime) //nolint:errcheck
	m.Execute("c1", input("pump-1"), baseTime) //nolint:errcheck

	mfs, err := promReg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	found := map[string]bool{}
	for _, mf := range mfs {
		found[mf.GetName()] = true
	}
	for _, name := range []string{
		"machinepulse_chain_stage_executions_total",
		"machinepulse_chain_stage_failures_total",
		"machinepulse_chain_stage_duration_seconds",
	} {
		if !found[name] {
			t.Errorf("metric %q not gathered", name)
		}
	}

	execs := testutil.ToFloat64(m.metrics.executions.WithLabelValues("c1", "second"))
	if execs != 2 {
		t.Errorf("executions{c1,second}: got %v, want 2", execs)
	}
	fails := testutil.ToFloat64(m.metrics.failures.WithLabelValues("c1", "second"))
	if fails != 2 {
		t.Errorf("failures{c1,second}: got %v, want 2", fails)
	}
}

func TestChainStages(t *testing.T) {
	a := &fakeStage{label: "a"}
	m, _ := testManager(t, map[string]*fakeStage{"a": a})

	m.CreateChain("c1", []StageSpec{{Type: "a", Name: "only"}}) //nolint:errcheck
	stages, ok := m.ChainStages("c1")
	if !ok || len(stages) != 1 || stages[0] != "only" {
		t.Errorf("ChainStages: got %v %v", stages, ok)
	}
	if _, ok := m.ChainStages("ghost"); ok {
		t.Error("ChainStages on unknown chain: expected false")
	}
}
