package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/nurlabs/nurchat/internal/models"
)

// FindVerse looks up a single verse by its surah:ayah reference
func (c *Client) FindVerse(ctx context.Context, ref string) (*models.Verse, error) {
	parsed, err := models.ParseReference(ref)
	if err != nil {
		return nil, err
	}

	query := url.Values{"ref": {parsed.String()}}
	var verse models.Verse
	if err := c.doJSON(ctx, http.MethodGet, models.EndpointFindVerse, query, nil, &verse); err != nil {
		return nil, err
	}
	if verse.Reference == "" {
		verse.Reference = parsed.String()
	}
	return &verse, nil
}
