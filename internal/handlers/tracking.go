package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"coldreach/internal/cache"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// trackingPixel is a 1x1 transparent PNG.
var trackingPixel = []byte{
	0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A,
	0x00, 0x00, 0x00, 0x0D, 0x49, 0x48, 0x44, 0x52,
	0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1F, 0x15, 0xC4, 0x89,
	0x00, 0x00, 0x00, 0x0D, 0x49, 0x44, 0x41, 0x54,
	0x78, 0x9C, 0x62, 0x60, 0x01, 0x00, 0x00, 0x00, 0x05, 0x00, 0x01,
	0x0D, 0x0A, 0x2D, 0xB4,
	0x00, 0x00, 0x00, 0x00, 0x49, 0x45, 0x4E, 0x44, 0xAE, 0x42, 0x60, 0x82,
}

// openDedupTTL suppresses repeat writes while a mail client refetches the
// pixel in quick succession.
const openDedupTTL = 30 * time.Second

// OpenMarker flips an email's opened flag. The returned bool reports whether
// this call did the flip.
type OpenMarker interface {
	MarkOpened(ctx context.Context, emailID int64) (bool, error)
}

// TrackOpenHandler serves the open-tracking pixel. The pixel is always
// returned, whatever happens to the tracking write; a broken image in a
// prospect's mail client would give the game away.
func TrackOpenHandler(store OpenMarker, pixelCache *cache.Cache, logger zerolog.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		serve := func() error {
			c.Response().Header().Set("Cache-Control", "no-store")
			return c.Blob(http.StatusOK, "image/png", trackingPixel)
		}

		emailID, err := strconv.ParseInt(c.QueryParam("email_id"), 10, 64)
		if err != nil || emailID <= 0 {
			return serve()
		}

		key := fmt.Sprintf("open:%d", emailID)
		if _, hit := pixelCache.Get(key); hit {
			return serve()
		}
		pixelCache.Set(key, struct{}{}, openDedupTTL)

		flipped, err := store.MarkOpened(c.Request().Context(), emailID)
		if err != nil {
			logger.Warn().Err(err).Int64("email_id", emailID).Msg("Failed to record email open")
			return serve()
		}
		if flipped {
			logger.Info().Int64("email_id", emailID).Msg("Email opened")
		}

		return serve()
	}
}
