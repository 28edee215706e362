package domain

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParseTaskType(t *testing.T) {
	tests := []struct {
		in      string
		want    TaskType
		wantErr bool
	}{
		{"analyze", TaskAnalyze, false},
		{"  Generate ", TaskGenerate, false},
		{"REVIEW", TaskReview, false},
		{"refactor", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTaskType(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrUnknownTaskType) {
					t.Fatalf("ParseTaskType(%q) error = %v, want ErrUnknownTaskType", tt.in, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseTaskType(%q) unexpected error: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseTaskType(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestTaskValidate(t *testing.T) {
	tests := []struct {
		name    string
		task    Task
		wantErr error
	}{
		{"valid", Task{Type: TaskAnalyze, Description: "look"}, nil},
		{"blank description", Task{Type: TaskAnalyze, Description: "   "}, ErrEmptyDescription},
		{"unknown type", Task{Type: "deploy", Description: "ship it"}, ErrUnknownTaskType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.task.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Validate() unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestTaskJSONFieldNames(t *testing.T) {
	raw := `{"task_type":"review","description":"check it","context":{"files":{"a.go":"package a"},"language":"go"}}`
	var task Task
	if err := json.Unmarshal([]byte(raw), &task); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if task.Type != TaskReview {
		t.Errorf("Type = %q, want review", task.Type)
	}
	if task.Context.Language != "go" {
		t.Errorf("Language = %q, want go", task.Context.Language)
	}
	if task.Context.Files["a.go"] != "package a" {
		t.Errorf("Files[a.go] = %q", task.Context.Files["a.go"])
	}
}

func TestCodeContextPathsSorted(t *testing.T) {
	c := CodeContext{Files: map[string]string{"z.go": "", "a.go": "", "m/b.go": ""}}
	got := c.Paths()
	want := []string{"a.go", "m/b.go", "z.go"}
	if len(got) != len(want) {
		t.Fatalf("Paths() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Paths()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
	if (CodeContext{}).IsEmpty() != true {
		t.Error("empty context should report IsEmpty")
	}
}

func TestMessageWithSourceCopiesMetadata(t *testing.T) {
	orig := Message{Role: RoleUser, Content: "hi", Metadata: map[string]string{"k": "v"}}
	tagged := orig.WithSource(SourceSlack)

	if tagged.Metadata[MetadataSource] != "slack" {
		t.Errorf("source = %q, want slack", tagged.Metadata[MetadataSource])
	}
	if _, ok := orig.Metadata[MetadataSource]; ok {
		t.Error("WithSource mutated the original metadata")
	}
	if tagged.Metadata["k"] != "v" {
		t.Error("WithSource dropped existing metadata")
	}
}
