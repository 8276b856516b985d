package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
)

type ckanResponse struct {
	Success bool `json:"success"`
	Result  struct {
		Records []map[string]any `json:"records"`
		Total   int              `json:"total"`
	} `json:"result"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// DatastoreSearch pages through a CKAN datastore resource, as published by
// the Brazilian open-data portals, and returns every matching record.
func (c *Client) DatastoreSearch(ctx context.Context, base, resourceID string, filters map[string]string, pageSize int) ([]map[string]any, error) {
	if resourceID == "" {
		return nil, errors.New("no resource id configured")
	}
	if pageSize <= 0 {
		pageSize = 1000
	}
	f, err := json.Marshal(filters)
	if err != nil {
		return nil, fmt.Errorf("encode filters: %w", err)
	}

	var records []map[string]any
	for offset := 0; ; offset += pageSize {
		q := url.Values{}
		q.Set("resource_id", resourceID)
		q.Set("limit", strconv.Itoa(pageSize))
		q.Set("offset", strconv.Itoa(offset))
		if len(filters) > 0 {
			q.Set("filters", string(f))
		}

		var res ckanResponse
		if err := c.GetJSON(ctx, base+"/api/3/action/datastore_search", q, &res); err != nil {
			return nil, err
		}
		if !res.Success {
			msg := "unknown error"
			if res.Error != nil {
				msg = res.Error.Message
			}
			return nil, fmt.Errorf("datastore search failed: %s", msg)
		}

		records = append(records, res.Result.Records...)
		if len(res.Result.Records) < pageSize || len(records) >= res.Result.Total {
			return records, nil
		}
	}
}
