package websocket

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/estudioia/timeline-render/internal/logger"
	"github.com/estudioia/timeline-render/internal/model"
	"github.com/estudioia/timeline-render/internal/scheduler"
	"github.com/estudioia/timeline-render/pkg/response"
)

func startHub(t *testing.T) (*Hub, context.CancelFunc) {
	t.Helper()
	hub := NewHub(logger.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)
	return hub, cancel
}

func receive(t *testing.T, client *Client) map[string]interface{} {
	t.Helper()
	select {
	case data, ok := <-client.Send:
		if !ok {
			t.Fatal("send channel closed")
		}
		var msg map[string]interface{}
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("invalid message: %v", err)
		}
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
	}
	return nil
}

func TestHub_RoutesByJob(t *testing.T) {
	hub, _ := startHub(t)

	watching := &Client{JobID: "job-1", Send: make(chan []byte, 8)}
	other := &Client{JobID: "job-2", Send: make(chan []byte, 8)}
	hub.Register(watching)
	hub.Register(other)

	hub.BroadcastEvent(model.ProgressEvent{
		Type:        model.EventProgress,
		JobID:       "job-1",
		Status:      model.JobStatusProcessing,
		Frame:       15,
		TotalFrames: 30,
		Percentage:  50,
	})

	msg := receive(t, watching)
	if msg["type"] != model.WSMessageTypeProgress || msg["progress"] != float64(50) {
		t.Errorf("unexpected message %v", msg)
	}
	if hub.ClientCount("job-1") != 1 {
		t.Errorf("expected one client on job-1")
	}

	select {
	case data := <-other.Send:
		t.Errorf("unexpected message for other job: %s", data)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_TerminalMessages(t *testing.T) {
	hub, _ := startHub(t)

	client := &Client{JobID: "job-1", Send: make(chan []byte, 8)}
	hub.Register(client)

	hub.BroadcastEvent(model.ProgressEvent{Type: model.EventCompleted, JobID: "job-1", OutputURL: "https://cdn/out.mp4"})
	msg := receive(t, client)
	if msg["type"] != model.WSMessageTypeComplete || msg["outputUrl"] != "https://cdn/out.mp4" {
		t.Errorf("unexpected complete message %v", msg)
	}

	hub.BroadcastEvent(model.ProgressEvent{Type: model.EventFailed, JobID: "job-1", Error: scheduler.CancelledMessage})
	msg = receive(t, client)
	errField, _ := msg["error"].(map[string]interface{})
	if msg["type"] != model.WSMessageTypeError || errField["code"] != response.CodeRenderCancelled {
		t.Errorf("unexpected cancel message %v", msg)
	}

	hub.BroadcastEvent(model.ProgressEvent{Type: model.EventFailed, JobID: "job-1", Error: "render frame 3: boom"})
	msg = receive(t, client)
	errField, _ = msg["error"].(map[string]interface{})
	if errField["code"] != response.CodeRenderFailed || errField["message"] != "render frame 3: boom" {
		t.Errorf("unexpected failure message %v", msg)
	}
}

func TestHub_Unregister(t *testing.T) {
	hub, _ := startHub(t)

	client := &Client{JobID: "job-1", Send: make(chan []byte, 1)}
	hub.Register(client)
	hub.Unregister(client)

	if _, ok := <-client.Send; ok {
		t.Error("expected send channel to be closed")
	}
	if hub.ClientCount("job-1") != 0 {
		t.Error("expected no clients")
	}
}

func TestHub_StopsCleanly(t *testing.T) {
	hub := NewHub(logger.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()

	client := &Client{JobID: "job-1", Send: make(chan []byte, 1)}
	if !hub.Register(client) {
		t.Fatal("expected register to succeed while running")
	}

	cancel()
	<-stopped

	if _, ok := <-client.Send; ok {
		t.Error("expected send channel to be closed on stop")
	}
	if hub.Register(&Client{JobID: "job-2", Send: make(chan []byte, 1)}) {
		t.Error("register must fail after stop")
	}
	hub.Unregister(client)
	hub.BroadcastEvent(model.ProgressEvent{Type: model.EventCompleted, JobID: "job-1"})
}

func TestEncodeEvent_OmitsUnknownEstimate(t *testing.T) {
	data, err := EncodeEvent(model.ProgressEvent{Type: model.EventStarted, JobID: "job-1", Status: model.JobStatusProcessing})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var msg map[string]interface{}
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("invalid message: %v", err)
	}
	if _, ok := msg["estimatedRemainingSeconds"]; ok {
		t.Errorf("estimate must be omitted before the first frame: %s", data)
	}
}
