package diag

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
)

// Getter is the subset of http.Get's signature a Client uses to fetch
// outcomes, swappable in tests.
type Getter func(url string) (*http.Response, error)

// Client pulls recorded outcomes from a remote diag.API.
type Client interface {
	GetOutcomes() ([]Outcome, error)
	Hostname() string
	Port() string
}

type httpClient struct {
	hostname string
	port     string
	getFunc  Getter
}

// NewClient creates a client that polls the diag.API running at
// hostname:port.
func NewClient(hostname, port string) Client {
	return &httpClient{hostname: hostname, port: port, getFunc: http.Get}
}

func (c *httpClient) Hostname() string { return c.hostname }
func (c *httpClient) Port() string     { return c.port }

// GetOutcomes fetches the remote's most recent outcome snapshot.
func (c *httpClient) GetOutcomes() ([]Outcome, error) {
	url := fmt.Sprintf("http://%s:%s/warnings", c.hostname, c.port)

	resp, err := c.getFunc(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("diag: status %s (%s)", resp.Status, body)
	}

	var outcomes []Outcome
	if err := json.Unmarshal(body, &outcomes); err != nil {
		return nil, err
	}
	return outcomes, nil
}
