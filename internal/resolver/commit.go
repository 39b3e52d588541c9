package resolver

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"flashdetail/internal/chip"
	"flashdetail/internal/store"
)

// CommitPolicy decides what happens to an affirmative result's handle.
type CommitPolicy string

const (
	// CommitAffirmative hands the caller a live handle. This is the default.
	CommitAffirmative CommitPolicy = "affirmative"
	// CommitAlways persists before returning; the handle comes back consumed.
	CommitAlways CommitPolicy = "always"
	// CommitNever returns a no-op handle.
	CommitNever CommitPolicy = "never"
)

// ParseCommitPolicy maps "" to CommitAffirmative.
func ParseCommitPolicy(s string) (CommitPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "affirmative", "auto":
		return CommitAffirmative, nil
	case "always", "save":
		return CommitAlways, nil
	case "never", "nosave":
		return CommitNever, nil
	}
	return "", fmt.Errorf("unknown commit policy %q (want affirmative, always or never)", s)
}

// CommitHandle persists one resolution result. Only the first call to
// Commit writes; later calls return nil without touching the store.
type CommitHandle struct {
	st    store.Store
	table string
	key   string
	data  chip.Attributes
	used  atomic.Bool
}

func newCommitHandle(st store.Store, table, key string, data chip.Attributes) *CommitHandle {
	return &CommitHandle{st: st, table: table, key: key, data: data.Persistable()}
}

func noopHandle() *CommitHandle {
	h := &CommitHandle{}
	h.used.Store(true)
	return h
}

// Commit writes the result to its table. A nil handle is a no-op.
func (h *CommitHandle) Commit(ctx context.Context) error {
	if h == nil || !h.used.CompareAndSwap(false, true) {
		return nil
	}
	if err := h.st.Set(ctx, h.table, h.key, store.Record{Data: h.data}); err != nil {
		return fmt.Errorf("%w: %w", ErrStoreIO, err)
	}
	return nil
}

// Pending reports whether Commit would still write.
func (h *CommitHandle) Pending() bool {
	return h != nil && !h.used.Load()
}

// Target returns the table and key the handle writes to.
func (h *CommitHandle) Target() (table, key string) {
	if h == nil {
		return "", ""
	}
	return h.table, h.key
}

// CommitMeaningful invokes res's handle when the result carries enough known
// fields and policy is not CommitNever, and records the outcome on res. A
// result the pipeline already committed stays Committed. The returned error
// is the store failure, also reported in res.Warning.
func CommitMeaningful(ctx context.Context, res *Result, policy CommitPolicy) error {
	if policy == CommitNever || !res.Meaningful() || !res.Commit.Pending() {
		return nil
	}
	if err := res.Commit.Commit(ctx); err != nil {
		res.Warning = err.Error()
		return err
	}
	res.Committed = true
	return nil
}
