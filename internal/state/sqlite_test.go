package state

import (
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teamcutter/patchr/internal/domain"
)

func TestJournalLifecycle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	j, err := NewJournal(path, zerolog.Nop())
	require.NoError(t, err)

	tr := domain.Transfer{RemoteKey: "patches/patch-B.MPQ", LocalPath: "Data/patch-B.MPQ"}
	require.NoError(t, j.Begin("batch-1", tr))
	require.NoError(t, j.Finish(domain.TransferRecord{
		BatchID:   "batch-1",
		RemoteKey: tr.RemoteKey,
		LocalPath: tr.LocalPath,
		Bytes:     42,
		ETag:      "abc",
		Status:    domain.StatusDone,
	}))

	hist, err := j.History(10)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, domain.StatusDone, hist[0].Status)
	assert.Equal(t, int64(42), hist[0].Bytes)
	assert.Equal(t, "abc", hist[0].ETag)
	assert.False(t, hist[0].FinishedAt.IsZero())
	require.NoError(t, j.Close())
}

func TestJournalRecoversPending(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	j, err := NewJournal(path, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, j.Begin("batch-1", domain.Transfer{RemoteKey: "patches/a", LocalPath: "Data/a"}))
	require.NoError(t, j.Close())

	j, err = NewJournal(path, zerolog.Nop())
	require.NoError(t, err)
	defer j.Close()

	hist, err := j.History(0)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, domain.StatusInterrupted, hist[0].Status)
}

func TestJournalFinishWithoutBegin(t *testing.T) {
	j, err := NewJournal(filepath.Join(t.TempDir(), "journal.db"), zerolog.Nop())
	require.NoError(t, err)
	defer j.Close()

	require.NoError(t, j.Finish(domain.TransferRecord{
		BatchID:   "b",
		RemoteKey: "patches/x",
		LocalPath: "Data/x",
		Status:    domain.StatusFailed,
		Error:     "boom",
	}))
	hist, err := j.History(5)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, "boom", hist[0].Error)
}
