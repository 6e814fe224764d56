package notify

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := OpenJournal(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	require.NoError(t, j.Migrate(context.Background()))
	t.Cleanup(func() { j.Close() }) //nolint:errcheck
	return j
}

func TestJournal_MigrateIdempotent(t *testing.T) {
	j := newTestJournal(t)
	assert.NoError(t, j.Migrate(context.Background()))
}

func TestJournal_NotifyAndRecent(t *testing.T) {
	ctx := context.Background()
	j := newTestJournal(t)
	base := time.Date(2024, 9, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, j.Notify(ctx, Record{
		ID: "e1", Kind: KindEstimate, SessionID: "s1", CreatedAt: base,
		ClientType: "Entreprise", Urgency: "Urgent", Question: "Bail commercial",
		Priced: true, Price: 2250, DomainLabel: "Droit immobilier commercial", ServiceLabel: "Rédaction de bail commercial",
		Outcome: "ok",
	}))
	require.NoError(t, j.Notify(ctx, Record{
		ID: "c1", Kind: KindContact, SessionID: "s1", CreatedAt: base.Add(time.Minute),
		Question: "Rappelez-moi", ContactName: "Jeanne", ContactEmail: "jeanne@example.fr", Outcome: "ok",
	}))

	all, err := j.Recent(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "c1", all[0].ID)
	assert.Equal(t, KindContact, all[0].Kind)
	assert.Equal(t, "jeanne@example.fr", all[0].ContactEmail)

	estimate := all[1]
	assert.Equal(t, "e1", estimate.ID)
	assert.True(t, estimate.Priced)
	assert.Equal(t, 2250, estimate.Price)
	assert.Equal(t, "Rédaction de bail commercial", estimate.ServiceLabel)
	assert.True(t, base.Equal(estimate.CreatedAt))

	contacts, err := j.Recent(ctx, KindContact, 10)
	require.NoError(t, err)
	require.Len(t, contacts, 1)
	assert.Equal(t, "c1", contacts[0].ID)
}

func TestJournal_RecentLimit(t *testing.T) {
	ctx := context.Background()
	j := newTestJournal(t)
	base := time.Date(2024, 9, 1, 9, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, j.Notify(ctx, Record{ID: id, Kind: KindEstimate, Question: "q", Outcome: "ok", CreatedAt: base.Add(time.Duration(i) * time.Second)}))
	}

	recs, err := j.Recent(ctx, KindEstimate, 2)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "c", recs[0].ID)
	assert.Equal(t, "b", recs[1].ID)
}

func TestJournal_DuplicateID(t *testing.T) {
	ctx := context.Background()
	j := newTestJournal(t)
	rec := Record{ID: "dup", Kind: KindEstimate, Question: "q", Outcome: "ok", CreatedAt: time.Now()}
	require.NoError(t, j.Notify(ctx, rec))

	err := j.Notify(ctx, rec)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "journal: insert record dup")
}
