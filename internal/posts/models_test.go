package posts

import (
	"encoding/json"
	"testing"
)

func TestPostInput_AcceptsAnyPresentValue(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		title    string
		contents string
	}{
		{"strings", `{"title":"Hello","contents":"World"}`, "Hello", "World"},
		{"number", `{"title":5,"contents":"x"}`, "5", "x"},
		{"bool", `{"title":true,"contents":"x"}`, "true", "x"},
		{"object", `{"title":"t","contents":{"a":1}}`, "t", `{"a":1}`},
		{"array", `{"title":[1,2],"contents":"x"}`, "[1,2]", "x"},
		{"falsy values", `{"title":0,"contents":false}`, "", ""},
		{"null", `{"title":null,"contents":"x"}`, "", "x"},
		{"missing", `{"contents":"x"}`, "", "x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var in PostInput
			if err := json.Unmarshal([]byte(tt.body), &in); err != nil {
				t.Fatalf("Unmarshal: %v", err)
			}
			if in.Title != tt.title || in.Contents != tt.contents {
				t.Errorf("Expected (%q, %q), got (%q, %q)", tt.title, tt.contents, in.Title, in.Contents)
			}
		})
	}
}

func TestPostInput_RejectsNonObject(t *testing.T) {
	for _, body := range []string{`[]`, `"title"`, `5`} {
		var in PostInput
		if err := json.Unmarshal([]byte(body), &in); err == nil {
			t.Errorf("Expected error for %s", body)
		}
	}
}

func TestCommentInput_AcceptsAnyPresentValue(t *testing.T) {
	var in CommentInput
	if err := json.Unmarshal([]byte(`{"text":42}`), &in); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if in.Text != "42" {
		t.Errorf("Expected text 42, got %q", in.Text)
	}

	in = CommentInput{}
	if err := json.Unmarshal([]byte(`{"text":""}`), &in); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if in.Text != "" {
		t.Errorf("Expected empty text, got %q", in.Text)
	}
}
