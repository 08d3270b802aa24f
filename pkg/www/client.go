package www

import (
	"fmt"
	"net/http"
)

// Do performs the request, and if any error occurs (transport or non-2xx status code), returns an error.
// The error includes a summary of the response body.
func Do(client *http.Client, req *http.Request) (*http.Response, error) {
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("HTTP error %v", FailedRequestSummary(resp, nil))
	}
	return resp, nil
}
