package polymarket

import (
	"context"
	"fmt"
	"log/slog"
)

// BatchPrices looks up BUY and SELL prices for tokenIDs in chunks. Chunks
// that fail are logged and skipped, so the result may cover only part of the
// request. Chunks are spaced by the configured delay.
func (c *Client) BatchPrices(ctx context.Context, tokenIDs []string) Quotes {
	quotes := make(Quotes, len(tokenIDs))
	if len(tokenIDs) == 0 {
		return quotes
	}

	chunks := 0
	for start := 0; start < len(tokenIDs); start += c.chunkSize {
		end := min(start+c.chunkSize, len(tokenIDs))
		chunk := tokenIDs[start:end]
		chunks++

		got, err := c.priceChunk(ctx, chunk)
		if err != nil {
			c.logger.WarnContext(ctx, "polymarket: price chunk failed, skipping",
				slog.Int("chunk", chunks),
				slog.Int("tokens", len(chunk)),
				slog.String("error", err.Error()),
			)
		}
		for id, q := range got {
			quotes[id] = q
		}

		if end < len(tokenIDs) {
			if err := c.sleep(ctx, c.chunkDelay); err != nil {
				break
			}
		}
	}

	c.logger.DebugContext(ctx, "polymarket: prices fetched",
		slog.Int("requested", len(tokenIDs)),
		slog.Int("priced", len(quotes)),
		slog.Int("chunks", chunks),
	)
	return quotes
}

// priceChunk issues one POST /prices for a chunk of tokens.
func (c *Client) priceChunk(ctx context.Context, chunk []string) (Quotes, error) {
	params := make([]priceParam, 0, 2*len(chunk))
	for _, id := range chunk {
		params = append(params,
			priceParam{TokenID: id, Side: SideBuy},
			priceParam{TokenID: id, Side: SideSell},
		)
	}

	var resp pricesResponse
	if err := c.rest.PostJSON(ctx, "prices", params, &resp); err != nil {
		return nil, fmt.Errorf("polymarket: post prices: %w", err)
	}
	return resp.toQuotes(chunk), nil
}
