package websocket

import (
	"errors"
	"testing"
	"time"
)

func TestSavedPayload(t *testing.T) {
	at := time.Date(2026, 3, 4, 5, 6, 7, 8000000, time.FixedZone("X", 3600))
	payload := savedPayload("design-1", at)

	if payload["designId"] != "design-1" {
		t.Errorf("designId mismatch: got %v", payload["designId"])
	}
	if want := "2026-03-04T04:06:07.008Z"; payload["updatedAt"] != want {
		t.Errorf("updatedAt mismatch: got %v, want %s", payload["updatedAt"], want)
	}
}

func TestDesignArg(t *testing.T) {
	tests := []struct {
		name    string
		args    []any
		want    string
		wantErr bool
	}{
		{"missing", nil, "", true},
		{"not a string", []any{42}, "", true},
		{"empty", []any{""}, "", true},
		{"valid", []any{"design-1"}, "design-1", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := designArg(tt.args)
			if (err != nil) != tt.wantErr {
				t.Fatalf("designArg() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("designArg() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractAck(t *testing.T) {
	var gotPayload map[string]any
	ack, args := extractAck([]any{"design-1", func(p map[string]any) { gotPayload = p }})
	if ack == nil {
		t.Fatal("Expected an ack callback")
	}
	if len(args) != 1 || args[0] != "design-1" {
		t.Errorf("args mismatch: got %v", args)
	}
	ack(nil, map[string]any{"status": "ok"})
	if gotPayload["status"] != "ok" {
		t.Errorf("payload mismatch: got %v", gotPayload)
	}

	var gotErr error
	ack, _ = extractAck([]any{"design-1", func(err error, p map[string]any) { gotErr = err; gotPayload = p }})
	ack(errors.New("boom"), map[string]any{"status": "error"})
	if gotErr == nil || gotErr.Error() != "boom" || gotPayload["status"] != "error" {
		t.Errorf("two-argument ack mismatch: err %v payload %v", gotErr, gotPayload)
	}

	ack, args = extractAck([]any{"design-1"})
	if ack != nil || len(args) != 1 {
		t.Errorf("non-callback argument treated as ack")
	}
}

func TestWatchers(t *testing.T) {
	n := &Notifier{watchers: make(map[string]int)}

	n.setWatchers("design-1", 2)
	if got := n.Watchers("design-1"); got != 2 {
		t.Errorf("Watchers() = %d, want 2", got)
	}
	n.setWatchers("design-1", 0)
	if _, ok := n.watchers["design-1"]; ok {
		t.Error("design with no watchers was kept")
	}
}

func TestDesignSaved_NoWatchers(t *testing.T) {
	n := NewNotifier()
	defer n.Close()

	n.DesignSaved("design-1", time.Now())
	if n.Server() == nil {
		t.Error("Server() returned nil")
	}
}
