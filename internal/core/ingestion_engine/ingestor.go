package ingestion_engine

import "context"

type Ingestor interface {
	Run(ctx context.Context) (*RunResult, error)
}

var _ Ingestor = (*NewsIngestor)(nil)
