package xtream

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/goccy/go-json"

	"github.com/snapetech/strmsync/internal/catalog"
)

func decodeEach[T any](c *Client, action string, raw []json.RawMessage) []T {
	out := make([]T, 0, len(raw))
	for _, r := range raw {
		var v T
		if err := json.Unmarshal(r, &v); err != nil {
			c.log.Debugf("xtream: %s: skipping undecodable item: %v", action, err)
			continue
		}
		out = append(out, v)
	}
	return out
}

// LiveCategories returns get_live_categories.
func (c *Client) LiveCategories(ctx context.Context) []catalog.Category {
	return decodeEach[catalog.Category](c, ActionLiveCategories, c.Fetch(ctx, ActionLiveCategories, nil))
}

// LiveStreams returns get_live_streams.
func (c *Client) LiveStreams(ctx context.Context) []catalog.LiveChannel {
	return decodeEach[catalog.LiveChannel](c, ActionLiveStreams, c.Fetch(ctx, ActionLiveStreams, nil))
}

// VODStreams returns get_vod_streams.
func (c *Client) VODStreams(ctx context.Context) []catalog.Movie {
	return decodeEach[catalog.Movie](c, ActionVODStreams, c.Fetch(ctx, ActionVODStreams, nil))
}

// SeriesList returns get_series.
func (c *Client) SeriesList(ctx context.Context) []catalog.Series {
	return decodeEach[catalog.Series](c, ActionSeries, c.Fetch(ctx, ActionSeries, nil))
}

// SeriesInfo returns get_series_info for one series. ok is false when the request failed
// or the body could not be decoded; the info is then empty.
func (c *Client) SeriesInfo(ctx context.Context, seriesID string) (info catalog.SeriesInfo, ok bool) {
	body, err := c.get(ctx, ActionSeriesInfo, url.Values{"series_id": {seriesID}})
	if err != nil {
		c.log.Warnf("xtream: series %s info failed: %v", seriesID, err)
		return catalog.SeriesInfo{}, false
	}
	if err := json.Unmarshal(body, &info); err != nil {
		c.log.Warnf("xtream: series %s info: undecodable body: %v", seriesID, err)
		return catalog.SeriesInfo{}, false
	}
	return info, true
}

// Probe calls the bare auth endpoint and returns the account block.
func (c *Client) Probe(ctx context.Context) (*catalog.AccountInfo, error) {
	body, err := c.get(ctx, "", nil)
	if err != nil {
		return nil, err
	}
	var acct catalog.AccountInfo
	if err := json.Unmarshal(body, &acct); err != nil {
		return nil, fmt.Errorf("auth: decode: %w", err)
	}
	if acct.UserInfo.Auth == "0" {
		return &acct, fmt.Errorf("auth: credentials rejected")
	}
	return &acct, nil
}

func (c *Client) playback(kind, id, ext string) string {
	u := c.streamBase + "/" + kind + "/" + url.PathEscape(c.user) + "/" + url.PathEscape(c.pass) + "/" + url.PathEscape(id)
	if ext != "" {
		u += "." + url.PathEscape(strings.TrimPrefix(ext, "."))
	}
	return u
}

// MovieURL returns <base>/movie/<u>/<p>/<id>.<ext>; ext defaults to mp4.
func (c *Client) MovieURL(id, ext string) string {
	if ext == "" {
		ext = "mp4"
	}
	return c.playback("movie", id, ext)
}

// LiveURL returns <base>/live/<u>/<p>/<id>.m3u8.
func (c *Client) LiveURL(id string) string {
	return c.playback("live", id, "m3u8")
}

// EpisodeURL returns <base>/series/<u>/<p>/<id>, with .<ext> appended when ext is set.
func (c *Client) EpisodeURL(id, ext string) string {
	return c.playback("series", id, ext)
}
