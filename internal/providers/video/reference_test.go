package video

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"server/internal/domain"
)

func TestReferenceSubmitAccepted(t *testing.T) {
	var gotBody referenceSubmitPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/tasks" {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer secret" {
			t.Fatalf("authorization header = %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{"task_id": "ref-42", "eta_seconds": 90})
	}))
	defer srv.Close()

	client, err := NewReferenceClient(ReferenceOptions{APIKey: "secret", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	sub, err := client.Submit(context.Background(), SubmitRequest{
		ImageURL:    "https://cdn.example.com/product.png",
		Prompt:      "slow 360 orbit",
		AspectRatio: "16:9",
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if sub.ProviderTaskID != "ref-42" {
		t.Fatalf("provider task id = %q", sub.ProviderTaskID)
	}
	if sub.EstimatedSeconds != 90 {
		t.Fatalf("eta = %d, want 90", sub.EstimatedSeconds)
	}
	if gotBody.ImageURL != "https://cdn.example.com/product.png" {
		t.Fatalf("image url not forwarded: %q", gotBody.ImageURL)
	}
	if gotBody.Model == "" {
		t.Fatal("model must default when unset")
	}
}

func TestReferenceSubmitContentPolicyRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(map[string]any{
			"code":    "content_policy_violation",
			"message": "prompt contains disallowed content",
		})
	}))
	defer srv.Close()

	client, _ := NewReferenceClient(ReferenceOptions{APIKey: "secret", BaseURL: srv.URL})
	_, err := client.Submit(context.Background(), SubmitRequest{ImageURL: "https://x/i.png", Prompt: "bad"})
	if !errors.Is(err, domain.ErrContentPolicy) {
		t.Fatalf("expected content policy error, got %v", err)
	}
	if errors.Is(err, domain.ErrProviderRejected) {
		t.Fatal("policy rejection must not double as a generic rejection")
	}
}

func TestReferenceSubmitGenericRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{"code": "invalid_image", "message": "image unreadable"})
	}))
	defer srv.Close()

	client, _ := NewReferenceClient(ReferenceOptions{APIKey: "secret", BaseURL: srv.URL})
	_, err := client.Submit(context.Background(), SubmitRequest{ImageURL: "https://x/i.png", Prompt: "orbit"})
	if !errors.Is(err, domain.ErrProviderRejected) {
		t.Fatalf("expected provider rejection, got %v", err)
	}
}

func TestReferencePollStates(t *testing.T) {
	responses := map[string]any{
		"queued": map[string]any{"status": "queued", "progress": 5},
		"run":    map[string]any{"status": "running", "progress": 60},
		"done": map[string]any{
			"status": "succeeded",
			"result": map[string]any{
				"video_url":        "https://ephemeral.vidspin.ai/out.mp4",
				"thumbnail_url":    "https://ephemeral.vidspin.ai/out.jpg",
				"duration_seconds": 12,
			},
		},
		"failed": map[string]any{
			"status": "failed",
			"error":  map[string]any{"code": "policy_violation", "message": "blocked"},
		},
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Path[len("/tasks/"):]
		json.NewEncoder(w).Encode(responses[id])
	}))
	defer srv.Close()

	client, _ := NewReferenceClient(ReferenceOptions{APIKey: "secret", BaseURL: srv.URL})
	ctx := context.Background()

	queued, err := client.Poll(ctx, "queued")
	if err != nil || queued.State != PollQueued {
		t.Fatalf("queued poll = %+v, %v", queued, err)
	}
	running, err := client.Poll(ctx, "run")
	if err != nil || running.State != PollRunning || running.Progress != 60 {
		t.Fatalf("running poll = %+v, %v", running, err)
	}
	done, err := client.Poll(ctx, "done")
	if err != nil {
		t.Fatalf("done poll: %v", err)
	}
	if done.State != PollDone || done.ResultURL == "" || done.DurationSeconds != 12 {
		t.Fatalf("done poll = %+v", done)
	}
	if done.ThumbnailURL == "" {
		t.Fatal("thumbnail url missing")
	}
	failed, err := client.Poll(ctx, "failed")
	if err != nil {
		t.Fatalf("failed poll: %v", err)
	}
	if failed.State != PollFailed || !failed.PolicyViolation {
		t.Fatalf("failed poll = %+v, want policy violation flagged", failed)
	}
}

func TestReferenceRequiresCredentials(t *testing.T) {
	client, _ := NewReferenceClient(ReferenceOptions{})
	if _, err := client.Submit(context.Background(), SubmitRequest{ImageURL: "https://x/i.png"}); !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("expected missing api key error, got %v", err)
	}
}
