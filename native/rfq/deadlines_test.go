package rfq

import (
	"math"
	"testing"
)

func TestDeadlinesUndeterminedBeforeOpen(t *testing.T) {
	r := &RFQ{CreatedAt: 1_000, CommitTTL: 10, RevealTTL: 20, SelectionTTL: 30, FundTTL: 40}
	if _, ok := CommitDeadline(r); ok {
		t.Fatalf("commit deadline must be undetermined before open")
	}
	if _, ok := RevealDeadline(r); ok {
		t.Fatalf("reveal deadline must be undetermined before open")
	}
	if _, ok := SelectionDeadline(r); ok {
		t.Fatalf("selection deadline must be undetermined before open")
	}
	funding, ok := FundingDeadline(r)
	if !ok || funding != 1_100 {
		t.Fatalf("expected funding preview from creation, got %d %v", funding, ok)
	}
	if _, err := mustDeadline(CommitDeadline(r)); err != ErrDeadlineUndetermined {
		t.Fatalf("expected ErrDeadlineUndetermined, got %v", err)
	}
	if _, ok := FundingDeadline(nil); ok {
		t.Fatalf("nil rfq has no deadline")
	}
}

func TestDeadlineOrdering(t *testing.T) {
	r := &RFQ{CreatedAt: 0, OpenedAt: int64Ptr(500), CommitTTL: 1, RevealTTL: 1, SelectionTTL: 1, FundTTL: 1}
	commit, _ := CommitDeadline(r)
	reveal, _ := RevealDeadline(r)
	selection, _ := SelectionDeadline(r)
	if !(commit < reveal && reveal < selection) {
		t.Fatalf("deadlines out of order: %d %d %d", commit, reveal, selection)
	}
	funding, _ := FundingDeadline(r)
	if funding != 504 {
		t.Fatalf("expected funding preview from open, got %d", funding)
	}
	r.SelectedAt = int64Ptr(10_000)
	funding, _ = FundingDeadline(r)
	if funding != 10_001 {
		t.Fatalf("funding deadline must be anchored on selection, got %d", funding)
	}
}

func TestDeadlinesDoNotOverflowWideTTLs(t *testing.T) {
	r := &RFQ{OpenedAt: int64Ptr(0), CommitTTL: math.MaxUint32, RevealTTL: math.MaxUint32, SelectionTTL: math.MaxUint32, FundTTL: math.MaxUint32}
	funding, ok := FundingDeadline(r)
	if !ok || funding != 4*int64(math.MaxUint32) {
		t.Fatalf("unexpected funding deadline %d", funding)
	}
	selection, _ := SelectionDeadline(r)
	if selection != 3*int64(math.MaxUint32) {
		t.Fatalf("unexpected selection deadline %d", selection)
	}
}

func TestComputeDeadlines(t *testing.T) {
	r := &RFQ{OpenedAt: int64Ptr(100), CommitTTL: 60, RevealTTL: 60, SelectionTTL: 60, FundTTL: 60}
	d := ComputeDeadlines(r)
	if d.Commit == nil || *d.Commit != 160 || *d.Reveal != 220 || *d.Selection != 280 || *d.Funding != 340 {
		t.Fatalf("unexpected deadlines %+v", d)
	}
	draft := ComputeDeadlines(&RFQ{CommitTTL: 1, RevealTTL: 1, SelectionTTL: 1, FundTTL: 1})
	if draft.Commit != nil || draft.Reveal != nil || draft.Selection != nil || draft.Funding == nil {
		t.Fatalf("unexpected draft deadlines %+v", draft)
	}
}
