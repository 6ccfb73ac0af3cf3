package job

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xxxsen/ragchat/internal/graph"
	"github.com/xxxsen/ragchat/internal/index"
)

func TestGraphCheckpointJobRun(t *testing.T) {
	store := index.NewStore(t.TempDir())
	reg := graph.NewRegistry(store)
	require.NoError(t, reg.Update("u1", func(g *graph.Graph) {
		g.AddEntity("Kafka", "term", "a.md")
	}))

	j := NewGraphCheckpointJob(reg)
	assert.Equal(t, "graph_checkpoint", j.Name())
	assert.NoError(t, j.Run(context.Background()))

	assert.NoError(t, NewGraphCheckpointJob(nil).Run(context.Background()))
}
