package cmd

import (
	"bytes"
	"strings"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"
)

func newViewTestCmd(out, errOut *bytes.Buffer, flags ...string) *cobra.Command {
	cmd := &cobra.Command{Use: "view"}
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	addViewFlags(cmd)
	_ = cmd.Flags().Parse(flags)
	return cmd
}

func TestViewText_DefaultFilters(t *testing.T) {
	resetViper(t, "text")
	file := writeTempFile(t, t.TempDir(), "session.jsonl", sessionLines)

	var out, errOut bytes.Buffer
	if err := runView(newViewTestCmd(&out, &errOut), []string{file}); err != nil {
		t.Fatalf("runView() error = %v", err)
	}

	got := out.String()
	for _, want := range []string{"system", "be brief", "It is sunny.", "***@***"} {
		if !strings.Contains(got, want) {
			t.Errorf("expected %q in output:\n%s", want, got)
		}
	}
	for _, hidden := range []string{"tool_call", "tool_result", "answer from search", "bob@example.com"} {
		if strings.Contains(got, hidden) {
			t.Errorf("unexpected %q in output:\n%s", hidden, got)
		}
	}

	if !strings.Contains(errOut.String(), "1 malformed record(s)") || !strings.Contains(errOut.String(), "line 4:") {
		t.Errorf("expected parse error report on stderr, got:\n%s", errOut.String())
	}
}

func TestViewJSONL_ShowAll(t *testing.T) {
	resetViper(t, "jsonl")
	file := writeTempFile(t, t.TempDir(), "session.jsonl", sessionLines)

	var out, errOut bytes.Buffer
	cmd := newViewTestCmd(&out, &errOut, "--show-tools", "--show-reasoning", "--no-redact")
	if err := runView(cmd, []string{file}); err != nil {
		t.Fatalf("runView() error = %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	wantTypes := []string{"system", "user", "tool_call", "tool_result", "meta", "assistant"}
	if len(lines) != len(wantTypes) {
		t.Fatalf("got %d events, want %d:\n%s", len(lines), len(wantTypes), out.String())
	}
	for i, line := range lines {
		var ev map[string]any
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			t.Fatalf("line %d is not JSON: %q", i, line)
		}
		if ev["type"] != wantTypes[i] {
			t.Errorf("event %d type = %v, want %s", i, ev["type"], wantTypes[i])
		}
	}
	if !strings.Contains(out.String(), "bob@example.com") {
		t.Errorf("--no-redact should keep the email:\n%s", out.String())
	}
}

func TestViewJSON_Array(t *testing.T) {
	resetViper(t, "json")
	file := writeTempFile(t, t.TempDir(), "session.jsonl", sessionLines)

	var out, errOut bytes.Buffer
	if err := runView(newViewTestCmd(&out, &errOut), []string{file}); err != nil {
		t.Fatalf("runView() error = %v", err)
	}

	var events []map[string]any
	if err := json.Unmarshal(out.Bytes(), &events); err != nil {
		t.Fatalf("output is not a JSON array: %v\n%s", err, out.String())
	}
	if len(events) != 3 {
		t.Errorf("got %d events, want 3 messages", len(events))
	}
}

func TestViewPattern(t *testing.T) {
	resetViper(t, "jsonl")
	file := writeTempFile(t, t.TempDir(), "session.jsonl", sessionLines)

	tests := []struct {
		name  string
		flags []string
		want  int
	}{
		{"text match", []string{"--pattern", "sunny"}, 1},
		{"tool name", []string{"--show-tools", "--pattern", "^search$"}, 2},
		{"inverted", []string{"--pattern", "sunny", "--invert"}, 2},
		{"time window", []string{"--since", "2025-01-26T10:00:01Z", "--until", "2025-01-26T10:00:04Z"}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out, errOut bytes.Buffer
			if err := runView(newViewTestCmd(&out, &errOut, tt.flags...), []string{file}); err != nil {
				t.Fatalf("runView() error = %v", err)
			}
			got := 0
			if s := strings.TrimSpace(out.String()); s != "" {
				got = len(strings.Split(s, "\n"))
			}
			if got != tt.want {
				t.Errorf("got %d events, want %d:\n%s", got, tt.want, out.String())
			}
		})
	}
}

func TestViewFlagErrors(t *testing.T) {
	resetViper(t, "text")
	file := writeTempFile(t, t.TempDir(), "session.jsonl", sessionLines)

	tests := []struct {
		name  string
		flags []string
	}{
		{"invert without pattern", []string{"--invert"}},
		{"bad pattern", []string{"--pattern", "("}},
		{"bad since", []string{"--since", "yesterday-ish"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out, errOut bytes.Buffer
			if err := runView(newViewTestCmd(&out, &errOut, tt.flags...), []string{file}); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestViewInvalidDocument(t *testing.T) {
	resetViper(t, "text")
	file := writeTempFile(t, t.TempDir(), "broken.json", []string{`[{"role":"user","content":"hi"},`})

	var out, errOut bytes.Buffer
	err := runView(newViewTestCmd(&out, &errOut), []string{file})
	if err == nil {
		t.Fatal("expected run failure")
	}
	if !strings.Contains(errOut.String(), "Invalid JSON content") {
		t.Errorf("stderr = %q", errOut.String())
	}
}

func TestViewMissingFile(t *testing.T) {
	resetViper(t, "text")

	var out, errOut bytes.Buffer
	err := runView(newViewTestCmd(&out, &errOut), []string{"/nonexistent/session.jsonl"})
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestViewStdin(t *testing.T) {
	resetViper(t, "jsonl")

	var out, errOut bytes.Buffer
	cmd := newViewTestCmd(&out, &errOut)
	cmd.SetIn(strings.NewReader(strings.Join(sessionLines, "\n")))

	if err := runView(cmd, []string{"-"}); err != nil {
		t.Fatalf("runView() error = %v", err)
	}
	if n := strings.Count(strings.TrimSpace(out.String()), "\n") + 1; n != 3 {
		t.Errorf("got %d events, want 3:\n%s", n, out.String())
	}
}

func TestViewProgress(t *testing.T) {
	resetViper(t, "text")
	file := writeTempFile(t, t.TempDir(), "session.jsonl", sessionLines)

	var out, errOut bytes.Buffer
	if err := runView(newViewTestCmd(&out, &errOut, "--progress"), []string{file}); err != nil {
		t.Fatalf("runView() error = %v", err)
	}
	if !strings.Contains(errOut.String(), "(100%)") {
		t.Errorf("expected final progress line, got:\n%s", errOut.String())
	}
}
