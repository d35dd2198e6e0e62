package batch

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"apiclient/pkg/api"
	"apiclient/pkg/storage"

	"gopkg.in/yaml.v3"
)

// Job is one request of a batch file. Its response is stored under Name.
type Job struct {
	Name    string            `yaml:"name"`
	Method  string            `yaml:"method"`
	Path    string            `yaml:"path"`
	Headers map[string]string `yaml:"headers,omitempty"`
	Body    any               `yaml:"body,omitempty"`
	Retries *int              `yaml:"retries,omitempty"`
}

// File is the on-disk layout of a batch file
type File struct {
	Requests []Job `yaml:"requests"`
}

// LoadFile reads and validates a batch file
func LoadFile(path string) ([]Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read batch file: %w", err)
	}
	return Parse(data)
}

// Parse decodes batch YAML. A missing method defaults to GET.
func Parse(data []byte) ([]Job, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse batch file: %w", err)
	}
	if len(f.Requests) == 0 {
		return nil, errors.New("batch file contains no requests")
	}

	var errs []error
	seen := make(map[string]bool, len(f.Requests))
	for i := range f.Requests {
		job := &f.Requests[i]
		job.Method = strings.ToUpper(strings.TrimSpace(job.Method))
		if job.Method == "" {
			job.Method = http.MethodGet
		}

		if err := storage.ValidateName(job.Name); err != nil {
			errs = append(errs, fmt.Errorf("request %d: %w", i+1, err))
			continue
		}
		if seen[job.Name] {
			errs = append(errs, fmt.Errorf("request %d: duplicate name %q", i+1, job.Name))
		}
		seen[job.Name] = true

		if job.Path == "" {
			errs = append(errs, fmt.Errorf("request %q: path is required", job.Name))
		}
		if job.Retries != nil && *job.Retries < 0 {
			errs = append(errs, fmt.Errorf("request %q: retries cannot be negative", job.Name))
		}
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return f.Requests, nil
}

// Request converts the job into a client request
func (j Job) Request() (*api.Request, error) {
	req := &api.Request{
		Method:  j.Method,
		Path:    j.Path,
		Headers: j.Headers,
		Retries: j.Retries,
	}
	if j.Body != nil {
		body, err := json.Marshal(j.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode body of %q: %w", j.Name, err)
		}
		req.Body = body
	}
	return req, nil
}
