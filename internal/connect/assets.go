package connect

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
)

// StylesheetLoader returns an AssetLoader that checks each font stylesheet
// and keeps the reachable ones, in order. Unreachable stylesheets are
// logged and skipped.
func StylesheetLoader(client *http.Client, urls []string, logger *slog.Logger) AssetLoader {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context) ([]FontSource, error) {
		var fonts []FontSource
		for _, u := range urls {
			if err := checkStylesheet(ctx, client, u); err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				logger.Warn("skipping font stylesheet", "url", u, "err", err)
				continue
			}
			fonts = append(fonts, FontSource{CSSSrc: u})
		}
		return fonts, nil
	}
}

func checkStylesheet(ctx context.Context, client *http.Client, u string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, u, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return nil
}
