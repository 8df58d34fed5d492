package callsession_test

import (
	"testing"

	"github.com/fyrsmithlabs/frontdesk/internal/callsession"
	"github.com/fyrsmithlabs/frontdesk/internal/callsession/callsessiontest"
)

func TestMemoryStore(t *testing.T) {
	callsessiontest.RunStoreSuite(t, func(t *testing.T) callsession.Store {
		return callsession.NewMemoryStore()
	})
}
