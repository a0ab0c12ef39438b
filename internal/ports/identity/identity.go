// Package identity is the client-side boundary of the employee registry, an
// external collaborator. The engine only ever asks whether a reference
// resolves and what display fields it carries.
package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"
)

// ErrUnknownEmployee means the reference does not resolve in the registry.
var ErrUnknownEmployee = errors.New("employee reference does not resolve")

// Employee is the display snapshot denormalized into summaries at write time.
type Employee struct {
	Ref        string `json:"employee_ref"`
	Name       string `json:"name"`
	Department string `json:"department"`
}

// Lookup is the read-only contract the engine consumes.
type Lookup interface {
	Exists(ctx context.Context, ref string) (bool, error)
	Resolve(ctx context.Context, ref string) (*Employee, error)
}

// HTTPClient talks to the registry over HTTP. Calls go through a circuit
// breaker so a struggling registry is not hammered by large batches.
type HTTPClient struct {
	client  *http.Client
	baseURL string
	cb      *gobreaker.CircuitBreaker
}

// NewHTTPClient creates a registry client for the given base URL.
func NewHTTPClient(baseURL string) *HTTPClient {
	settings := gobreaker.Settings{
		Name:        "identity-registry",
		MaxRequests: 5,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			// Trip if failure rate exceeds 50% after at least 10 requests
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 10 && failureRatio >= 0.5
		},
	}

	return &HTTPClient{
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		baseURL: strings.TrimSuffix(baseURL, "/"),
		cb:      gobreaker.NewCircuitBreaker(settings),
	}
}

// Resolve fetches the display snapshot for a reference.
func (c *HTTPClient) Resolve(ctx context.Context, ref string) (*Employee, error) {
	res, err := c.cb.Execute(func() (interface{}, error) {
		return c.fetch(ctx, ref)
	})
	if err != nil {
		return nil, err
	}
	emp := res.(*Employee)
	if emp == nil {
		// A 404 is a definitive answer, not a registry failure, so it must
		// not count toward tripping the breaker.
		return nil, fmt.Errorf("%w: %s", ErrUnknownEmployee, ref)
	}
	return emp, nil
}

// Exists reports whether the reference resolves. A 404 from the registry is a
// definitive "no", not a transport failure.
func (c *HTTPClient) Exists(ctx context.Context, ref string) (bool, error) {
	_, err := c.Resolve(ctx, ref)
	if errors.Is(err, ErrUnknownEmployee) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (c *HTTPClient) fetch(ctx context.Context, ref string) (*Employee, error) {
	url := c.baseURL + "/employees/" + ref
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create registry request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call employee registry: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("employee registry returned status %d", resp.StatusCode)
	}

	var emp Employee
	if err := json.NewDecoder(resp.Body).Decode(&emp); err != nil {
		return nil, fmt.Errorf("failed to decode registry response: %w", err)
	}
	if emp.Ref == "" {
		emp.Ref = ref
	}
	return &emp, nil
}
