package taskagent

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"taskagent/pkg/async"

	"github.com/tidwall/gjson"
)

const TaskTypeFetch = "fetch"

type FetchErrorCode string

const (
	CodeBadURL        FetchErrorCode = "BAD_URL"
	CodeRequestFailed FetchErrorCode = "REQUEST_FAILED"
	CodeBadStatus     FetchErrorCode = "BAD_STATUS"
	CodeReadFailed    FetchErrorCode = "READ_FAILED"
	CodeParseFailed   FetchErrorCode = "PARSE_FAILED"
	CodeFetchSuccess  FetchErrorCode = "SUCCESS"
)

// FetchTaskRequest asks the agent to GET a URL and extract a JSON value
// from the response body.
type FetchTaskRequest struct {
	TaskID  string            `json:"task_id"`
	URL     string            `json:"url"`
	Query   map[string]string `json:"query,omitempty"`
	Path    string            `json:"path,omitempty"` // gjson path, e.g. "data"; empty means whole body
	Headers map[string]string `json:"headers,omitempty"`
	Timeout int               `json:"timeout"` // seconds, 0 means 30
}

// FetchProgress is published while the fetch runs: once when the
// request goes out and once per body chunk read.
type FetchProgress struct {
	Stage string `json:"stage"` // "request" or "download"
	Bytes int64  `json:"bytes"`
}

type FetchResult struct {
	Code       FetchErrorCode  `json:"code"`
	HTTPStatus int             `json:"httpStatus"`
	Value      json.RawMessage `json:"value,omitempty"`
	StartTime  time.Time       `json:"startTime"`
	EndTime    time.Time       `json:"endTime"`
}

type fetchError struct {
	Code FetchErrorCode
	Err  error
}

func (e *fetchError) Error() string {
	return fmt.Sprintf("%s: %v", e.Code, e.Err)
}

func (e *fetchError) Unwrap() error { return e.Err }

// RunFetchTask is the background function of a fetch task. Network
// reachability is a host precondition; when it is missing the request
// simply fails and the fault is reported on the cancellation path.
func RunFetchTask(tc *async.TaskContext[FetchProgress], req *FetchTaskRequest) (*FetchResult, error) {
	startTime := time.Now()

	target, err := url.Parse(req.URL)
	if err != nil {
		return nil, &fetchError{CodeBadURL, err}
	}
	if len(req.Query) > 0 {
		q := target.Query()
		for k, v := range req.Query {
			q.Set(k, v)
		}
		target.RawQuery = q.Encode()
	}

	timeout := 30 * time.Second
	if req.Timeout > 0 {
		timeout = time.Duration(req.Timeout) * time.Second
	}
	client := &http.Client{Timeout: timeout}

	httpReq, err := http.NewRequest(http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, &fetchError{CodeBadURL, err}
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	tc.Publish(FetchProgress{Stage: "request"})

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, &fetchError{CodeRequestFailed, err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &fetchError{CodeBadStatus, fmt.Errorf("unexpected status %s", resp.Status)}
	}

	body, err := readAllCancellable(tc, resp.Body, func(total int64) FetchProgress {
		return FetchProgress{Stage: "download", Bytes: total}
	})
	if err != nil {
		if err == async.ErrCancelled {
			return nil, err
		}
		return nil, &fetchError{CodeReadFailed, err}
	}

	value, err := extractJSON(body, req.Path)
	if err != nil {
		return nil, &fetchError{CodeParseFailed, err}
	}

	return &FetchResult{
		Code:       CodeFetchSuccess,
		HTTPStatus: resp.StatusCode,
		Value:      value,
		StartTime:  startTime,
		EndTime:    time.Now(),
	}, nil
}

func extractJSON(body []byte, path string) (json.RawMessage, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("response body is not valid JSON")
	}
	if path == "" {
		return json.RawMessage(body), nil
	}
	value := gjson.GetBytes(body, path)
	if !value.Exists() {
		return nil, fmt.Errorf("path %q not found in response", path)
	}
	return json.RawMessage(value.Raw), nil
}

// readAllCancellable reads r to the end in chunks, publishing progress
// after each chunk and honouring cooperative cancellation between
// chunks.
func readAllCancellable[Q any](tc *async.TaskContext[Q], r io.Reader, progress func(total int64) Q) ([]byte, error) {
	var out []byte
	buf := make([]byte, 32*1024)
	var total int64
	for {
		if tc.Cancelled() {
			return nil, async.ErrCancelled
		}
		n, err := r.Read(buf)
		if n > 0 {
			total += int64(n)
			out = append(out, buf[:n]...)
			tc.Publish(progress(total))
		}
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
	}
}
