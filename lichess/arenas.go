package lichess

import (
	"context"
	"fmt"
)

// GetArenas fetches the current tournament catalog. A catalog which does not
// decode is an error for this call.
func (c *Client) GetArenas(ctx context.Context) (*Catalog, error) {
	ctx, span := tracer.Start(ctx, "GetArenas")
	defer span.End()

	var cat Catalog
	if err := c.getJSON(ctx, "/api/tournament", &cat); err != nil {
		return nil, fmt.Errorf("fetching arena catalog: %w", err)
	}
	c.logger.Debug("fetched arena catalog", "created", len(cat.Created), "started", len(cat.Started), "finished", len(cat.Finished))
	return &cat, nil
}
