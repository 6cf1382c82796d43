package ipc

import (
	"encoding/json"
	"testing"
)

func TestSuccessResponse(t *testing.T) {
	data := StatusData{
		Running:   true,
		URL:       "https://example.com",
		Title:     "Example",
		WorkerPID: 1234,
	}

	resp := SuccessResponse("req-1", data)

	if resp.Status != StatusOK {
		t.Errorf("expected status ok, got %q", resp.Status)
	}
	if resp.RequestID != "req-1" {
		t.Errorf("expected request id to round-trip, got %q", resp.RequestID)
	}
	if resp.Error != "" {
		t.Errorf("expected no error, got %q", resp.Error)
	}
	if resp.Data == nil {
		t.Error("expected data to be set")
	}

	var status StatusData
	if err := json.Unmarshal(resp.Data, &status); err != nil {
		t.Fatalf("failed to unmarshal data: %v", err)
	}
	if status.Running != true || status.URL != "https://example.com" {
		t.Error("data mismatch")
	}
}

func TestSuccessResponseNilData(t *testing.T) {
	resp := SuccessResponse("req-2", nil)

	if resp.Status != StatusOK {
		t.Errorf("expected status ok, got %q", resp.Status)
	}
	if resp.Data != nil {
		t.Errorf("expected nil data, got %v", resp.Data)
	}
}

func TestErrorResponse(t *testing.T) {
	resp := ErrorResponse("req-3", "NO_SESSION", "something went wrong")

	if resp.Status != StatusError {
		t.Errorf("expected status error, got %q", resp.Status)
	}
	if resp.Error != "something went wrong" {
		t.Errorf("expected error message, got %q", resp.Error)
	}
	if resp.ErrorCode != "NO_SESSION" {
		t.Errorf("expected error code, got %q", resp.ErrorCode)
	}
	if resp.Data != nil {
		t.Error("expected nil data for error response")
	}
}

func TestRequest_JSON(t *testing.T) {
	tests := []struct {
		name string
		req  Request
		want string
	}{
		{
			name: "simple type",
			req:  Request{Type: "status", RequestID: "r1"},
			want: `{"type":"status","requestId":"r1"}`,
		},
		{
			name: "type with params",
			req:  Request{Type: "clear", RequestID: "r2", Params: json.RawMessage(`{"target":"console"}`)},
			want: `{"type":"clear","requestId":"r2","params":{"target":"console"}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.req)
			if err != nil {
				t.Fatalf("failed to marshal: %v", err)
			}
			if string(data) != tt.want {
				t.Errorf("marshal mismatch: got %s, want %s", data, tt.want)
			}

			var got Request
			if err := json.Unmarshal(data, &got); err != nil {
				t.Fatalf("failed to unmarshal: %v", err)
			}

			if got.Type != tt.req.Type || got.RequestID != tt.req.RequestID {
				t.Errorf("round-trip mismatch: got %+v, want %+v", got, tt.req)
			}
		})
	}
}

func TestResponse_JSON(t *testing.T) {
	resp := Response{RequestID: "r1", Status: StatusOK, Data: json.RawMessage(`{"ok":true}`)}

	data, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("failed to marshal: %v", err)
	}

	var got Response
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}

	if got.RequestID != resp.RequestID || got.Status != resp.Status {
		t.Errorf("round-trip mismatch: got %+v, want %+v", got, resp)
	}
}

func TestStartParams_JSON(t *testing.T) {
	params := StartParams{URL: "https://example.com", Headless: true, ChromeArgs: []string{"--no-sandbox"}}

	data, err := json.Marshal(params)
	if err != nil {
		t.Fatalf("failed to marshal: %v", err)
	}

	var got StartParams
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}

	if got.URL != params.URL || got.Headless != params.Headless || len(got.ChromeArgs) != 1 {
		t.Errorf("round-trip mismatch: got %+v", got)
	}
}
