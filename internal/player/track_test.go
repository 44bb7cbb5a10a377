// ABOUTME: Tests for loop modes, titles and session metadata
// ABOUTME: Table tests over parsing and merge rules
package player

import (
	"encoding/json"
	"testing"
)

func TestParseLoopMode(t *testing.T) {
	tests := []struct {
		in      string
		want    LoopMode
		wantErr bool
	}{
		{"none", LoopNone, false},
		{"", LoopNone, false},
		{"Track", LoopTrack, false},
		{"QUEUE", LoopQueue, false},
		{"shuffle", LoopNone, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLoopMode(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLoopModeJSON(t *testing.T) {
	var body struct {
		Mode LoopMode `json:"mode"`
	}
	if err := json.Unmarshal([]byte(`{"mode":"queue"}`), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body.Mode != LoopQueue {
		t.Errorf("expected queue, got %v", body.Mode)
	}
	if err := json.Unmarshal([]byte(`{"mode":"sideways"}`), &body); err == nil {
		t.Error("expected an error for an unknown mode")
	}
}

func TestDisplayTitle(t *testing.T) {
	tests := []struct {
		name       string
		identifier string
		tag        string
		want       string
	}{
		{"tag wins", "/music/a.mp3", "Real Title", "Real Title"},
		{"file stem", "/music/Night Drive.flac", "", "Night Drive"},
		{"file url", "file:///srv/audio/intro.wav", "", "intro"},
		{"http url", "https://cdn.example.com/media/loop.ogg?sig=1", "", "loop"},
		{"provider link", "https://www.youtube.com/watch?v=abc", "", "https://www.youtube.com/watch?v=abc"},
		{"search", "ytsearch:lofi beats", "", "ytsearch:lofi beats"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := displayTitle(tt.identifier, tt.tag); got != tt.want {
				t.Errorf("displayTitle() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMergeMetadata(t *testing.T) {
	tests := []struct {
		name  string
		base  string
		patch string
		want  string
	}{
		{"merge objects", `{"a":1,"b":2}`, `{"b":3,"c":4}`, `{"a":1,"b":3,"c":4}`},
		{"empty base", ``, `{"a":1}`, `{"a":1}`},
		{"array replaces", `{"a":1}`, `[1,2]`, `[1,2]`},
		{"object replaces scalar", `"x"`, `{"a":1}`, `{"a":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := mergeMetadata(json.RawMessage(tt.base), json.RawMessage(tt.patch))
			if err != nil {
				t.Fatalf("merge: %v", err)
			}
			var gotV, wantV any
			json.Unmarshal(got, &gotV)
			json.Unmarshal([]byte(tt.want), &wantV)
			gotJSON, _ := json.Marshal(gotV)
			wantJSON, _ := json.Marshal(wantV)
			if string(gotJSON) != string(wantJSON) {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestMergeMetadataRejectsInvalid(t *testing.T) {
	if _, err := mergeMetadata(nil, json.RawMessage(`{broken`)); err == nil {
		t.Error("expected invalid json to be rejected")
	}
}

func TestTrackExtrasFromMetadata(t *testing.T) {
	e := extrasFrom(json.RawMessage(`{"artworkUrl":"https://img/x.jpg","isrc":"USX1"}`))
	if e.ArtworkURL != "https://img/x.jpg" || e.ISRC != "USX1" {
		t.Errorf("unexpected extras: %+v", e)
	}
	if e := extrasFrom(json.RawMessage(`[1]`)); e.ArtworkURL != "" {
		t.Errorf("expected no extras from an array, got %+v", e)
	}
}
