package api

import (
	"context"

	"go.uber.org/zap"

	"github.com/atinyakov/PicTag/internal/models"
)

// Collection names reported by WriteResult.
const (
	CollectionAnalyses        = "analyses"
	CollectionGeneratedImages = "generated_images"
)

// WriteResult reports a background record write. Callers log it and move
// on; a failed write never surfaces to the user.
type WriteResult struct {
	Collection string
	ID         string
	Err        error
}

// Log writes the outcome to log.
func (r WriteResult) Log(log *zap.Logger) {
	if r.Err != nil {
		log.Error("record write failed", zap.String("collection", r.Collection), zap.Error(r.Err))
		return
	}
	log.Info("record saved", zap.String("collection", r.Collection), zap.String("id", r.ID))
}

// PersistAnalysis saves a into the caller's history.
func (c *Client) PersistAnalysis(ctx context.Context, token string, a *models.Analysis) WriteResult {
	id, err := c.SaveAnalysis(ctx, token, a)
	return WriteResult{Collection: CollectionAnalyses, ID: id, Err: err}
}

// PersistGeneratedImage appends g to the caller's generation log.
func (c *Client) PersistGeneratedImage(ctx context.Context, token string, g *models.GeneratedImage) WriteResult {
	id, err := c.SaveGeneratedImage(ctx, token, g)
	return WriteResult{Collection: CollectionGeneratedImages, ID: id, Err: err}
}
