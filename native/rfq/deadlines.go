package rfq

// Deadlines are derived from the open time and the four phase durations. A
// false second return means the deadline is undetermined; callers must treat
// it as a failed precondition.

// CommitDeadline returns opened_at + commit_ttl.
func CommitDeadline(r *RFQ) (int64, bool) {
	if r == nil || r.OpenedAt == nil {
		return 0, false
	}
	return *r.OpenedAt + int64(r.CommitTTL), true
}

// RevealDeadline returns the commit deadline + reveal_ttl.
func RevealDeadline(r *RFQ) (int64, bool) {
	commit, ok := CommitDeadline(r)
	if !ok {
		return 0, false
	}
	return commit + int64(r.RevealTTL), true
}

// SelectionDeadline returns the reveal deadline + selection_ttl.
func SelectionDeadline(r *RFQ) (int64, bool) {
	reveal, ok := RevealDeadline(r)
	if !ok {
		return 0, false
	}
	return reveal + int64(r.SelectionTTL), true
}

// FundingDeadline is anchored on selected_at once a quote is selected.
// Before selection it previews the full horizon from opened_at, or from
// created_at when the RFQ never opened.
func FundingDeadline(r *RFQ) (int64, bool) {
	if r == nil {
		return 0, false
	}
	if r.OpenedAt != nil && r.SelectedAt != nil {
		return *r.SelectedAt + int64(r.FundTTL), true
	}
	if r.OpenedAt != nil {
		return *r.OpenedAt + totalTTL(r), true
	}
	return r.CreatedAt + totalTTL(r), true
}

func totalTTL(r *RFQ) int64 {
	return int64(r.CommitTTL) + int64(r.RevealTTL) + int64(r.SelectionTTL) + int64(r.FundTTL)
}

// ComputeDeadlines returns every deadline that is currently determined.
func ComputeDeadlines(r *RFQ) Deadlines {
	var out Deadlines
	if v, ok := CommitDeadline(r); ok {
		out.Commit = int64Ptr(v)
	}
	if v, ok := RevealDeadline(r); ok {
		out.Reveal = int64Ptr(v)
	}
	if v, ok := SelectionDeadline(r); ok {
		out.Selection = int64Ptr(v)
	}
	if v, ok := FundingDeadline(r); ok {
		out.Funding = int64Ptr(v)
	}
	return out
}

func mustDeadline(v int64, ok bool) (int64, error) {
	if !ok {
		return 0, ErrDeadlineUndetermined
	}
	return v, nil
}
