package www

import (
	"fmt"
	"io"
	"net/http"
)

// HTTPError is an object that can be panic'ed, and the outer HTTP handler function
// will return the appropriate HTTP error message.
type HTTPError struct {
	Code    int
	Message string
}

func (e HTTPError) Error() string {
	return fmt.Sprintf("%v %v", e.Code, e.Message)
}

// Panic creates an HTTPError object and panics it.
func Panic(code int, message string) {
	panic(HTTPError{code, message})
}

// PanicNotFound panics with a 404 Not Found.
func PanicNotFound() {
	panic(HTTPError{http.StatusNotFound, "Not Found"})
}

// PanicServerErrorf panics with a 500 Internal Server Error
func PanicServerErrorf(format string, args ...any) {
	panic(HTTPError{http.StatusInternalServerError, fmt.Sprintf(format, args...)})
}

// Check causes a panic if err is not nil.
func Check(err error) {
	if err != nil {
		panic(err)
	}
}

// FailedRequestSummary returns a string that you can emit into a log message, when an HTTP request that you've made fails.
// The response body is closed.
func FailedRequestSummary(resp *http.Response, err error) string {
	return FailedRequestSummaryEx(resp, err, 100)
}

func FailedRequestSummaryEx(resp *http.Response, err error, maxBodyLen int) string {
	if resp != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		return err.Error()
	}
	txt := resp.Status
	if resp.Body != nil {
		all, _ := io.ReadAll(io.LimitReader(resp.Body, int64(maxBodyLen)+1))
		body := string(all)
		if len(body) > maxBodyLen {
			body = body[:maxBodyLen] + "..."
		}
		if len(body) != 0 {
			txt += "; " + body
		}
		if txt[len(txt)-1] == '\n' {
			txt = txt[:len(txt)-1]
		}
	}
	return txt
}
