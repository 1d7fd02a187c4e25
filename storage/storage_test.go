package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/homeschool/core"
)

func TestOpen(t *testing.T) {
	conf := core.NewTestConfig()

	store, err := Open(context.Background(), conf)
	require.NoError(t, err)
	assert.Equal(t, EngineMemory, store.Engine)
	assert.NotNil(t, store.Tx)
	assert.NotNil(t, store.StudentAssignments)

	subjects, err := store.Subjects.QueryAllSubjects(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, subjects)
	assert.NoError(t, store.Close())

	conf.Database.Engine = "mongo"
	_, err = Open(context.Background(), conf)
	assert.EqualError(t, err, `unknown database engine "mongo"`)
}
