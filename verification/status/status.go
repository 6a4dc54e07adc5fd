/*
Package status provides a client for Google's Android attestation key
revocation status list.

The status list is a JSON document enumerating attestation certificates that
must no longer be trusted, keyed by certificate serial number:

	{
	    "entries": {
	        "2c8cdddfd5e03bfc": {
	            "status": "REVOKED",
	            "reason": "KEY_COMPROMISE"
	        },
	        ...
	    }
	}

Every serial number of an attestation certificate chain has to be checked
against the list before the chain is trusted. The list is large and changes
rarely, so responses are cached for a short period.
*/
package status

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"k8s.io/utils/clock"
)

const (
	// statusURL is the URL of Google's attestation status list.
	statusURL = "https://android.googleapis.com/attestation/status"
	// cacheValidity is how long a fetched status list is reused before it is
	// fetched again.
	cacheValidity = 5 * time.Minute
)

// Revocation states of the status list.
const (
	StatusRevoked   = "REVOKED"
	StatusSuspended = "SUSPENDED"
)

// Entry is the revocation record of a single attestation certificate.
type Entry struct {
	Status  string `json:"status"`
	Reason  string `json:"reason"`
	Comment string `json:"comment"`
	Expires string `json:"expires"`
}

type statusList struct {
	Entries map[string]Entry `json:"entries"`
}

type statusAPI interface {
	getStatusList(ctx context.Context) ([]byte, error)
}

// Client retrieves and caches Google's attestation status list.
type Client struct {
	api   statusAPI
	clock clock.Clock

	mux       sync.Mutex
	cached    *statusList
	fetchedAt time.Time
}

// New returns a new Client.
func New() *Client {
	return &Client{
		api:   &statusAPIClient{client: http.DefaultClient},
		clock: clock.RealClock{},
	}
}

// GetEntry returns the status list entry for the given certificate serial
// number, or nil if the certificate is not listed.
func (c *Client) GetEntry(ctx context.Context, serialNumber *big.Int) (*Entry, error) {
	list, err := c.getStatusList(ctx)
	if err != nil {
		return nil, err
	}

	// Serial numbers are listed as lowercase hex without leading zeros.
	entry, ok := list.Entries[strings.ToLower(serialNumber.Text(16))]
	if !ok {
		return nil, nil
	}
	return &entry, nil
}

func (c *Client) getStatusList(ctx context.Context) (*statusList, error) {
	c.mux.Lock()
	defer c.mux.Unlock()

	if c.cached != nil && c.clock.Since(c.fetchedAt) < cacheValidity {
		return c.cached, nil
	}

	raw, err := c.api.getStatusList(ctx)
	if err != nil {
		return nil, fmt.Errorf("getting attestation status list: %w", err)
	}

	var list statusList
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("unmarshaling attestation status list: %w", err)
	}

	c.cached = &list
	c.fetchedAt = c.clock.Now()
	return c.cached, nil
}

type statusAPIClient struct {
	client *http.Client
}

func (c *statusAPIClient) getStatusList(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, statusURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	// Bypass intermediate HTTP caches; a stale list may miss fresh revocations.
	req.Header.Set("Cache-Control", "max-age=0, no-cache")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("request failed with status %s", resp.Status)
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	return respBody, nil
}
