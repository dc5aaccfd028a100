package provider

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// Asset is the provider's view of an uploaded video.
type Asset struct {
	ID         string
	Ready      bool
	Status     string
	PlaybackID string
	Duration   float64
}

// RenditionStatus is the provider's report on the downloadable rendition.
type RenditionStatus struct {
	Status          string
	PercentComplete float64
	URL             string
}

// Complete reports whether the provider claims the rendition is finished.
// A claim is only a hint: the URL still has to pass a HEAD probe.
func (s RenditionStatus) Complete() bool {
	switch strings.ToLower(s.Status) {
	case "ready", "completed":
		return true
	}
	return s.PercentComplete >= 100
}

// AssetStatus fetches the processing status of an asset.
func (c *Client) AssetStatus(ctx context.Context, assetID string) (Asset, error) {
	path := "/assets/" + url.PathEscape(assetID)
	body, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return Asset{}, err
	}
	if !gjson.ValidBytes(body) {
		return Asset{}, errors.New("provider asset status: invalid json")
	}
	root := envelope(body)

	asset := Asset{
		ID:         firstString(root, "id"),
		Status:     strings.ToLower(firstString(root, "status")),
		PlaybackID: firstString(root, "playback_id", "playback_ids.0.id"),
		Duration:   root.Get("duration").Float(),
	}
	if asset.ID == "" {
		asset.ID = assetID
	}
	asset.Ready = root.Get("ready").Bool() || asset.Status == "ready"
	return asset, nil
}

// StartRendition asks the provider to begin generating a downloadable rendition.
// The provider treats repeated calls for an existing rendition as a no-op.
func (c *Client) StartRendition(ctx context.Context, assetID string) error {
	path := "/assets/" + url.PathEscape(assetID) + "/renditions"
	payload := `{"name":` + strconv.Quote(c.cfg.RenditionName) + `}`
	_, err := c.do(ctx, http.MethodPost, path, strings.NewReader(payload))
	return err
}

// RenditionStatus fetches the generation status of the downloadable rendition.
func (c *Client) RenditionStatus(ctx context.Context, assetID string) (RenditionStatus, error) {
	path := "/assets/" + url.PathEscape(assetID) + "/renditions"
	body, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return RenditionStatus{}, err
	}
	if !gjson.ValidBytes(body) {
		return RenditionStatus{}, errors.New("provider rendition status: invalid json")
	}
	root := envelope(body)
	return RenditionStatus{
		Status:          strings.ToLower(firstString(root, "status")),
		PercentComplete: percent(root),
		URL:             firstString(root, "url"),
	}, nil
}

func envelope(body []byte) gjson.Result {
	if data := gjson.GetBytes(body, "data"); data.IsObject() {
		return data
	}
	return gjson.ParseBytes(body)
}

func firstString(root gjson.Result, paths ...string) string {
	for _, path := range paths {
		if value := strings.TrimSpace(root.Get(path).String()); value != "" {
			return value
		}
	}
	return ""
}

// percent tolerates both 100 and "100" as well as snake_case keys.
func percent(root gjson.Result) float64 {
	for _, path := range []string{"percentComplete", "percent_complete"} {
		value := root.Get(path)
		switch value.Type {
		case gjson.Number:
			return value.Float()
		case gjson.String:
			parsed, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(value.Str), "%"), 64)
			if err == nil {
				return parsed
			}
		}
	}
	return 0
}
