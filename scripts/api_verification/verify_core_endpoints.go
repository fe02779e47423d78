// Package main checks a running OCR service end to end.
// It can be run with: go run scripts/api_verification/verify_core_endpoints.go
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"time"
)

const (
	baseURLEnvVar  = "API_BASE_URL"
	apiKeyEnvVar   = "API_KEY"
	defaultBaseURL = "http://localhost:8080"
)

type EndpointTest struct {
	Name           string
	Method         string
	Path           string
	Upload         []byte
	ExpectedStatus int
	// Check inspects the decoded JSON body. Nil skips body checks.
	Check func(body map[string]any) error
}

func main() {
	baseURL := os.Getenv(baseURLEnvVar)
	if baseURL == "" {
		baseURL = defaultBaseURL
		fmt.Printf("No %s environment variable found, using default: %s\n", baseURLEnvVar, defaultBaseURL)
	}
	apiKey := os.Getenv(apiKeyEnvVar)

	fmt.Println("OCR API Verification Tool")
	fmt.Println("=========================")
	fmt.Printf("Target API: %s\n\n", baseURL)

	endpoints := []EndpointTest{
		{Name: "Health Check", Method: http.MethodGet, Path: "/health", ExpectedStatus: http.StatusOK, Check: hasKeys("status", "services", "version")},
		{Name: "Liveness Check", Method: http.MethodGet, Path: "/health/liveness", ExpectedStatus: http.StatusOK},
		{Name: "Metrics", Method: http.MethodGet, Path: "/metrics", ExpectedStatus: http.StatusOK},
		{Name: "Supported Languages", Method: http.MethodGet, Path: "/supported-languages", ExpectedStatus: http.StatusOK},
		{Name: "Document Types", Method: http.MethodGet, Path: "/document-types", ExpectedStatus: http.StatusOK},
		{
			Name:           "Empty Document",
			Method:         http.MethodPost,
			Path:           "/process",
			Upload:         []byte{},
			ExpectedStatus: http.StatusUnprocessableEntity,
			Check:          emptyDocumentFailure,
		},
	}

	successCount := 0
	for _, test := range endpoints {
		fmt.Printf("Testing %s... ", test.Name)

		statusCode, err := testEndpoint(baseURL, test, apiKey)
		if err != nil {
			fmt.Printf("FAILED (HTTP %d): %v\n", statusCode, err)
			continue
		}
		successCount++
		fmt.Printf("ok (HTTP %d)\n", statusCode)
	}

	fmt.Println("\nTest Summary:")
	fmt.Printf("Passed: %d/%d\n", successCount, len(endpoints))
	if successCount != len(endpoints) {
		os.Exit(1)
	}
}

func testEndpoint(baseURL string, test EndpointTest, apiKey string) (int, error) {
	client := &http.Client{Timeout: 30 * time.Second}

	var body io.Reader
	contentType := ""
	if test.Upload != nil {
		var buf bytes.Buffer
		w := multipart.NewWriter(&buf)
		fw, err := w.CreateFormFile("file", "verify.png")
		if err != nil {
			return 0, err
		}
		if _, err := fw.Write(test.Upload); err != nil {
			return 0, err
		}
		if err := w.Close(); err != nil {
			return 0, err
		}
		body = &buf
		contentType = w.FormDataContentType()
	}

	req, err := http.NewRequest(test.Method, baseURL+test.Path, body)
	if err != nil {
		return 0, fmt.Errorf("creating request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != test.ExpectedStatus {
		return resp.StatusCode, fmt.Errorf("expected %d: %s", test.ExpectedStatus, raw)
	}
	if test.Check == nil {
		return resp.StatusCode, nil
	}

	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return resp.StatusCode, fmt.Errorf("decoding body: %w", err)
	}
	return resp.StatusCode, test.Check(decoded)
}

func hasKeys(keys ...string) func(map[string]any) error {
	return func(body map[string]any) error {
		for _, k := range keys {
			if _, ok := body[k]; !ok {
				return fmt.Errorf("missing %q", k)
			}
		}
		return nil
	}
}

func emptyDocumentFailure(body map[string]any) error {
	if body["success"] != false {
		return fmt.Errorf("expected success=false, got %v", body["success"])
	}
	if id, _ := body["jobId"].(string); id == "" {
		return fmt.Errorf("jobId is missing")
	}
	return nil
}
