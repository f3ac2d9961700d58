package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newLsTestCmd(out *bytes.Buffer, flags ...string) *cobra.Command {
	cmd := &cobra.Command{Use: "ls"}
	cmd.SetOut(out)
	cmd.Flags().String("sort", "name", "sort entries by name or date")
	_ = cmd.Flags().Parse(flags)
	return cmd
}

func setupDataDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeTempFile(t, dir, "b.jsonl", []string{`{}`})
	writeTempFile(t, dir, "a.json", []string{`[]`})
	writeTempFile(t, dir, "notes.txt", []string{"skip"})
	if err := os.Mkdir(filepath.Join(dir, "agents"), 0o755); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestLsText(t *testing.T) {
	resetViper(t, "text")
	viper.Set("data_dir", setupDataDir(t))

	var out bytes.Buffer
	if err := runLs(newLsTestCmd(&out), nil); err != nil {
		t.Fatalf("runLs() error = %v", err)
	}

	output := out.String()
	if !strings.HasPrefix(output, "TYPE") {
		t.Errorf("missing header:\n%s", output)
	}
	for _, want := range []string{"a.json", "b.jsonl", "agents"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in:\n%s", want, output)
		}
	}
	if strings.Contains(output, "notes.txt") {
		t.Errorf("unsupported file listed:\n%s", output)
	}
}

func TestLsJSON(t *testing.T) {
	resetViper(t, "json")
	viper.Set("data_dir", setupDataDir(t))

	var out bytes.Buffer
	if err := runLs(newLsTestCmd(&out), nil); err != nil {
		t.Fatalf("runLs() error = %v", err)
	}

	var listing struct {
		Path    string `json:"path"`
		Entries []struct {
			Name string `json:"name"`
		} `json:"entries"`
	}
	if err := json.Unmarshal(out.Bytes(), &listing); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, out.String())
	}
	if listing.Path != "/" || len(listing.Entries) != 3 {
		t.Errorf("listing = %+v", listing)
	}
}

func TestLsErrors(t *testing.T) {
	resetViper(t, "text")
	viper.Set("data_dir", setupDataDir(t))

	var out bytes.Buffer
	if err := runLs(newLsTestCmd(&out, "--sort", "size"), nil); err == nil {
		t.Error("expected error for invalid sort")
	}
	if err := runLs(newLsTestCmd(&out), []string{"../.."}); err == nil {
		t.Error("expected error for traversal")
	}
}
