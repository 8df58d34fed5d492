package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/fyrsmithlabs/frontdesk/internal/callsession"
	"github.com/fyrsmithlabs/frontdesk/internal/callsession/callsessiontest"
	"github.com/fyrsmithlabs/frontdesk/internal/helprequest"
	"github.com/fyrsmithlabs/frontdesk/internal/helprequest/helprequesttest"
	"github.com/fyrsmithlabs/frontdesk/internal/knowledge"
	"github.com/fyrsmithlabs/frontdesk/internal/knowledge/knowledgetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "frontdesk.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestHelpRequestStore(t *testing.T) {
	helprequesttest.RunStoreSuite(t, func(t *testing.T) helprequest.Store {
		return openTestDB(t).HelpRequests()
	})
}

func TestKnowledgeStore(t *testing.T) {
	knowledgetest.RunStoreSuite(t, func(t *testing.T) knowledge.Store {
		return openTestDB(t).Knowledge()
	})
}

func TestSessionStore(t *testing.T) {
	callsessiontest.RunStoreSuite(t, func(t *testing.T) callsession.Store {
		return openTestDB(t).Sessions()
	})
}

func TestOpen(t *testing.T) {
	_, err := Open("")
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "frontdesk.db")
	db, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, db.Ping(context.Background()))

	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, db.Knowledge().Create(context.Background(), &knowledge.Item{
		ID: "k1", Question: "q", Answer: "a", Confidence: 0.8, Active: true, CreatedAt: now, UpdatedAt: now,
	}))
	require.NoError(t, db.Close())

	// Reopening keeps data and tolerates the existing schema.
	db, err = Open(path)
	require.NoError(t, err)
	defer db.Close()
	n, err := db.Knowledge().Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
