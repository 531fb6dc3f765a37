package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/consensus-shipyard/ipc-checkpointer/types"
)

func newTestJournal(t *testing.T) (*Journal, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), FileName)

	j, err := NewJournal(path, hclog.NewNullLogger())
	require.NoError(t, err)

	return j, path
}

func record(child string, dir types.Direction, epoch types.Epoch, validator types.Address) *types.SubmissionRecord {
	return &types.SubmissionRecord{
		Direction:   dir,
		Child:       child,
		Parent:      "/r31415926",
		Epoch:       epoch,
		Validator:   validator,
		Height:      epoch + 5,
		Ref:         types.SubmissionRef("bafy" + string(validator)),
		SubmittedAt: time.Date(2023, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func epochs(records []*types.SubmissionRecord) []types.Epoch {
	out := make([]types.Epoch, 0, len(records))
	for _, r := range records {
		out = append(out, r.Epoch)
	}

	return out
}

func TestJournal_RecordAndList(t *testing.T) {
	t.Parallel()

	j, _ := newTestJournal(t)
	t.Cleanup(func() { _ = j.Close() })

	const (
		child = "/r31415926/t01002"
		other = "/r31415926/t010021"
	)

	// inserted out of order on purpose, 256 sorts after 30
	for _, r := range []*types.SubmissionRecord{
		record(child, types.BottomUp, 256, "t01001"),
		record(child, types.BottomUp, 30, "t01001"),
		record(child, types.BottomUp, 30, "t01003"),
		record(child, types.TopDown, 25, "t01001"),
		record(other, types.BottomUp, 10, "t01001"),
	} {
		require.NoError(t, j.Record(r))
	}

	all, err := j.List(Filter{})
	require.NoError(t, err)
	require.Len(t, all, 5)

	bottomUp, err := j.List(Filter{Child: child, Direction: types.BottomUp})
	require.NoError(t, err)
	assert.Equal(t, []types.Epoch{30, 30, 256}, epochs(bottomUp))
	assert.Equal(t, record(child, types.BottomUp, 30, "t01001"), bottomUp[0])

	byChild, err := j.List(Filter{Child: child})
	require.NoError(t, err)
	assert.Len(t, byChild, 4)

	topDown, err := j.List(Filter{Direction: types.TopDown})
	require.NoError(t, err)
	assert.Equal(t, []types.Epoch{25}, epochs(topDown))

	last, err := j.List(Filter{Child: child, Direction: types.BottomUp, Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, []types.Epoch{256}, epochs(last))

	none, err := j.List(Filter{Child: "/r31415926/t09999"})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestJournal_RecordOverwritesSameVote(t *testing.T) {
	t.Parallel()

	j, _ := newTestJournal(t)
	t.Cleanup(func() { _ = j.Close() })

	first := record("/r31415926/t01002", types.BottomUp, 10, "t01001")
	second := record("/r31415926/t01002", types.BottomUp, 10, "t01001")
	second.Height = 99

	require.NoError(t, j.Record(first))
	require.NoError(t, j.Record(second))

	records, err := j.List(Filter{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, types.Epoch(99), records[0].Height)
}

func TestJournal_Reopen(t *testing.T) {
	t.Parallel()

	j, path := newTestJournal(t)

	require.NoError(t, j.Record(record("/r31415926/t01002", types.TopDown, 5, "t01001")))
	require.NoError(t, j.Close())

	require.ErrorIs(t, j.Record(record("/r31415926/t01002", types.TopDown, 6, "t01001")), ErrClosed)

	_, err := j.List(Filter{})
	require.ErrorIs(t, err, ErrClosed)

	reopened, err := NewJournal(path, hclog.NewNullLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })

	records, err := reopened.List(Filter{})
	require.NoError(t, err)
	assert.Equal(t, []types.Epoch{5}, epochs(records))
}

func TestJournal_OpenReadOnly(t *testing.T) {
	t.Parallel()

	j, path := newTestJournal(t)

	require.NoError(t, j.Record(record("/r31415926/t01002", types.BottomUp, 10, "t01001")))

	_, err := OpenReadOnly(path, hclog.NewNullLogger())
	require.ErrorIs(t, err, ErrInUse)

	require.NoError(t, j.Close())

	ro, err := OpenReadOnly(path, hclog.NewNullLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = ro.Close() })

	records, err := ro.List(Filter{Direction: types.BottomUp})
	require.NoError(t, err)
	assert.Equal(t, []types.Epoch{10}, epochs(records))

	require.Error(t, ro.Record(record("/r31415926/t01002", types.BottomUp, 20, "t01001")))
}
