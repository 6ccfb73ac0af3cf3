package job

import (
	"context"

	"github.com/xxxsen/ragchat/internal/graph"
)

type GraphCheckpointJob struct {
	graphs *graph.Registry
}

func NewGraphCheckpointJob(graphs *graph.Registry) *GraphCheckpointJob {
	return &GraphCheckpointJob{graphs: graphs}
}

func (j *GraphCheckpointJob) Name() string {
	return "graph_checkpoint"
}

func (j *GraphCheckpointJob) Run(ctx context.Context) error {
	if j.graphs == nil {
		return nil
	}
	return j.graphs.Flush(ctx)
}
