package detect

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func detectorStub(t *testing.T, wantModel string, response faceResponse) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s; want POST", r.Method)
		}
		if r.URL.Path != "/detect/face" {
			t.Errorf("path = %s; want /detect/face", r.URL.Path)
		}
		if got := r.URL.Query().Get("model"); got != wantModel {
			t.Errorf("model = %s; want %s", got, wantModel)
		}

		file, _, err := r.FormFile("file")
		if err != nil {
			t.Errorf("missing multipart file part: %v", err)
		} else {
			file.Close()
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(response)
	}))
}

func TestDetectParsesFaces(t *testing.T) {
	server := detectorStub(t, ModelHOG, faceResponse{
		FacesCount: 2,
		Faces: []faceDetection{
			{
				FaceIndex: 0,
				Dim:       3,
				Embedding: []float32{0.1, 0.2, 0.3},
				BBox:      []float64{10, 20, 110, 120},
				DetScore:  0.97,
			},
			{
				// No embedding; must be dropped.
				FaceIndex: 1,
				BBox:      []float64{5, 5, 50, 50},
				DetScore:  0.4,
			},
		},
		Model: "hog",
	})
	defer server.Close()

	client := NewClient(server.URL, false)
	detections, err := client.Detect(context.Background(), []byte{0xFF, 0xD8, 0xFF, 0x00, 0x00, 0x00, 0x00, 0x00})
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}

	if len(detections) != 1 {
		t.Fatalf("detections = %d; want 1 (face without embedding dropped)", len(detections))
	}
	d := detections[0]
	if d.Box != [4]int{10, 20, 110, 120} {
		t.Errorf("box = %v", d.Box)
	}
	if len(d.Embedding) != 3 || d.Embedding[2] != 0.3 {
		t.Errorf("embedding = %v", d.Embedding)
	}
	if d.Confidence != 0.97 {
		t.Errorf("confidence = %v; want 0.97", d.Confidence)
	}
}

func TestDetectAcceleratedRequestsCNN(t *testing.T) {
	server := detectorStub(t, ModelCNN, faceResponse{})
	defer server.Close()

	client := NewClient(server.URL, true)
	if client.Model() != ModelCNN {
		t.Errorf("model = %s; want %s", client.Model(), ModelCNN)
	}
	if _, err := client.Detect(context.Background(), []byte("12345678")); err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
}

func TestDetectMalformedBoxDropped(t *testing.T) {
	server := detectorStub(t, ModelHOG, faceResponse{
		Faces: []faceDetection{
			{Embedding: []float32{0.1}, BBox: []float64{1, 2, 3}, DetScore: 0.9},
		},
	})
	defer server.Close()

	client := NewClient(server.URL, false)
	detections, err := client.Detect(context.Background(), []byte("12345678"))
	if err != nil {
		t.Fatal(err)
	}
	if len(detections) != 0 {
		t.Errorf("a 3-element box must be dropped, got %d detections", len(detections))
	}
}

func TestDetectServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(server.URL, false)
	if _, err := client.Detect(context.Background(), []byte("12345678")); err == nil {
		t.Error("expected an error for a 500 response")
	}
}

func TestDetectMIMEType(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		expected string
	}{
		{"jpeg", []byte{0xFF, 0xD8, 0xFF, 0xE0, 0, 0, 0, 0}, "image/jpeg"},
		{"png", []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}, "image/png"},
		{"gif", []byte{0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0, 0}, "image/gif"},
		{"unknown", []byte("plain text"), "application/octet-stream"},
		{"too short", []byte{0xFF}, "application/octet-stream"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := detectMIMEType(tc.data); got != tc.expected {
				t.Errorf("detectMIMEType = %s; want %s", got, tc.expected)
			}
		})
	}
}
