package knowledge_test

import (
	"testing"

	"github.com/fyrsmithlabs/frontdesk/internal/knowledge"
	"github.com/fyrsmithlabs/frontdesk/internal/knowledge/knowledgetest"
)

func TestMemoryStore(t *testing.T) {
	knowledgetest.RunStoreSuite(t, func(t *testing.T) knowledge.Store {
		return knowledge.NewMemoryStore()
	})
}
