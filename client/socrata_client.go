/*
 * @module client/socrata_client
 * @description Socrata open-data client: fetches a resource from datos.gov.co as an ordered batch of raw records
 * @architecture Thin HTTP client - package-level client with timeout, base URL overridable for tests
 * @documentReference service/models/errors.go
 * @stateFlow build request -> GET resource.json -> decode records -> capture column order -> RawBatch
 * @rules Failures map onto FetchError kinds (network, status, payload); retry policy belongs to the caller, not this client
 * @dependencies bytes, encoding/json, io, net/http, net/url, os, time, github.com/spf13/cast
 * @refs api/controllers/dataset_controller.go
 */

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/spf13/cast"

	"opendata-service/service/models"
)

var SocrataBaseUrl = "https://www.datos.gov.co"
var socrataClient = &http.Client{
	Timeout: 30 * time.Second,
}

func init() {
	if envUrl := os.Getenv("SOCRATA_BASE_URL"); envUrl != "" {
		SocrataBaseUrl = envUrl
	}
}

// SetSocrataBaseUrl overrides the base URL (for tests).
func SetSocrataBaseUrl(url string) {
	SocrataBaseUrl = url
}

// GetSocrataBaseUrl returns the current base URL.
func GetSocrataBaseUrl() string {
	return SocrataBaseUrl
}

// FetchDataset retrieves up to limit rows of a Socrata resource as a raw
// batch. The column order of the payload's first record is preserved on the
// batch, since decoded record maps lose it.
func FetchDataset(ctx context.Context, resourceID string, limit int) (*models.RawBatch, error) {
	if resourceID == "" {
		return nil, &models.FetchError{Kind: models.FetchErrorPayload, Resource: resourceID,
			Err: fmt.Errorf("resource id cannot be empty")}
	}
	if limit <= 0 {
		limit = 5000
	}

	values := url.Values{}
	values.Add("$limit", cast.ToString(limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		SocrataBaseUrl+"/resource/"+resourceID+".json", nil)
	if err != nil {
		return nil, &models.FetchError{Kind: models.FetchErrorNetwork, Resource: resourceID, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.URL.RawQuery = values.Encode()

	resp, err := socrataClient.Do(req)
	if err != nil {
		return nil, &models.FetchError{Kind: models.FetchErrorNetwork, Resource: resourceID, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &models.FetchError{Kind: models.FetchErrorStatus, Resource: resourceID,
			StatusCode: resp.StatusCode}
	}

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &models.FetchError{Kind: models.FetchErrorNetwork, Resource: resourceID, Err: err}
	}

	var records []models.RawRecord
	if err := json.Unmarshal(payload, &records); err != nil {
		return nil, &models.FetchError{Kind: models.FetchErrorPayload, Resource: resourceID, Err: err}
	}

	columns, err := firstRecordColumns(payload)
	if err != nil {
		// Records decoded fine; fall back to unordered columns.
		columns = nil
		seen := make(map[string]struct{})
		for _, record := range records {
			for col := range record {
				if _, ok := seen[col]; !ok {
					seen[col] = struct{}{}
					columns = append(columns, col)
				}
			}
		}
	}

	return &models.RawBatch{Columns: columns, Records: records}, nil
}

// firstRecordColumns walks the JSON tokens of the first array element to
// recover the source's column order.
func firstRecordColumns(payload []byte) ([]string, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	if _, err := dec.Token(); err != nil { // opening '['
		return nil, err
	}
	if !dec.More() {
		return nil, nil
	}
	if _, err := dec.Token(); err != nil { // opening '{'
		return nil, err
	}

	var columns []string
	depth := 0
	for dec.More() || depth > 0 {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case json.Delim:
			switch t {
			case '{', '[':
				depth++
			case '}', ']':
				depth--
			}
		case string:
			if depth == 0 {
				columns = append(columns, t)
				// Skip this key's value, including nested structures.
				var discard interface{}
				if err := dec.Decode(&discard); err != nil {
					return nil, err
				}
			}
		}
		if depth < 0 {
			break
		}
	}
	return columns, nil
}
