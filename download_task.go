package taskagent

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"taskagent/pkg/async"
)

const TaskTypeDownload = "download"

// DownloadRequest asks the agent to stream a remote file to disk.
type DownloadRequest struct {
	TaskID string `json:"task_id"`
	URL    string `json:"url"`
	Dest   string `json:"dest,omitempty"` // directory or full path; empty means the configured download dir
}

// DownloadProgress is published once per chunk written.
type DownloadProgress struct {
	BytesReceived int64   `json:"bytesReceived"`
	TotalBytes    int64   `json:"totalBytes"` // -1 when the server sends no length
	Percent       float64 `json:"percent"`    // 0 when total is unknown
}

type DownloadResult struct {
	Path      string    `json:"path"`
	Size      int64     `json:"size"`
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
}

// ResolveDest turns the request destination into a full file path. dir
// is the configured default download directory.
func (req *DownloadRequest) ResolveDest(dir string) string {
	name := filepath.Base(req.URL)
	switch {
	case req.Dest == "":
		return filepath.Join(dir, name)
	case filepath.Ext(req.Dest) == "" && name != "":
		return filepath.Join(req.Dest, name)
	default:
		return req.Dest
	}
}

// RunDownloadTask is the background function of a download task. A
// cancelled download removes the partial file.
func RunDownloadTask(tc *async.TaskContext[DownloadProgress], req *DownloadRequest) (*DownloadResult, error) {
	startTime := time.Now()

	resp, err := http.Get(req.URL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}

	dest := req.Dest
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return nil, err
	}
	out, err := os.Create(dest)
	if err != nil {
		return nil, err
	}

	total := resp.ContentLength
	var received int64
	buf := make([]byte, 64*1024)
	for {
		if tc.Cancelled() {
			out.Close()
			os.Remove(dest)
			return nil, async.ErrCancelled
		}
		n, rerr := resp.Body.Read(buf)
		if n > 0 {
			if _, werr := out.Write(buf[:n]); werr != nil {
				out.Close()
				os.Remove(dest)
				return nil, werr
			}
			received += int64(n)
			progress := DownloadProgress{BytesReceived: received, TotalBytes: total}
			if total > 0 {
				progress.Percent = float64(received) / float64(total) * 100
			}
			tc.Publish(progress)
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			out.Close()
			os.Remove(dest)
			return nil, rerr
		}
	}

	if err := out.Close(); err != nil {
		return nil, err
	}

	return &DownloadResult{
		Path:      dest,
		Size:      received,
		StartTime: startTime,
		EndTime:   time.Now(),
	}, nil
}
