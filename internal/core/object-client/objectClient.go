package objectclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/markdave123-py/newsdesk/internal/core"
	"github.com/markdave123-py/newsdesk/internal/models"
)

const snapshotPrefix = "ingestion-runs/"

// RunSnapshot is the archived record of one ingestion run.
type RunSnapshot struct {
	RunID      string           `json:"runId"`
	StartedAt  time.Time        `json:"startedAt"`
	FinishedAt time.Time        `json:"finishedAt"`
	Feeds      []string         `json:"feeds"`
	Articles   []models.Article `json:"articles"`
}

// SnapshotKey is the object key a run is archived under.
func SnapshotKey(runID string) string {
	return snapshotPrefix + runID + ".json"
}

// Archive stores run snapshots in object storage.
type Archive struct {
	client core.ObjectClient
}

func NewArchive(client core.ObjectClient) *Archive {
	return &Archive{client: client}
}

// Save uploads the snapshot and returns its URL.
func (a *Archive) Save(ctx context.Context, snap RunSnapshot) (string, error) {
	if snap.RunID == "" {
		return "", fmt.Errorf("snapshot without run id")
	}
	body, err := json.Marshal(snap)
	if err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}
	return a.client.UploadFile(ctx, SnapshotKey(snap.RunID), bytes.NewReader(body), "application/json")
}

// Remove deletes an archived run.
func (a *Archive) Remove(ctx context.Context, runID string) error {
	return a.client.DeleteFile(ctx, SnapshotKey(runID))
}
