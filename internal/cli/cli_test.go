package cli

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

func TestNewLoggerLevels(t *testing.T) {
	tests := []struct {
		name    string
		level   log.Level
		logFunc func(*log.Logger)
		wantLog bool
	}{
		{"info at info level", log.InfoLevel, func(l *log.Logger) { l.Info("test") }, true},
		{"debug at info level", log.InfoLevel, func(l *log.Logger) { l.Debug("test") }, false},
		{"debug at debug level", log.DebugLevel, func(l *log.Logger) { l.Debug("test") }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			tt.logFunc(newLogger(&buf, tt.level))
			if got := buf.Len() > 0; got != tt.wantLog {
				t.Errorf("logged = %v, want %v", got, tt.wantLog)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]log.Level{
		"":      log.InfoLevel,
		"debug": log.DebugLevel,
		"WARN":  log.WarnLevel,
		"error": log.ErrorLevel,
	} {
		got, err := parseLevel(in)
		if err != nil || got != want {
			t.Errorf("parseLevel(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := parseLevel("chatty"); err == nil {
		t.Error("parseLevel(chatty) should fail")
	}
}

func TestLoggerFromContext(t *testing.T) {
	if loggerFromContext(context.Background()) == nil {
		t.Fatal("loggerFromContext() returned nil without a logger")
	}
	l := newLogger(io.Discard, log.InfoLevel)
	if got := loggerFromContext(withLogger(context.Background(), l)); got != l {
		t.Error("loggerFromContext() did not return the attached logger")
	}
}

func TestProgressBarRedrawsOnChange(t *testing.T) {
	var buf bytes.Buffer
	bar := newProgressBar(&buf, "test")
	bar.SetProgress(0)
	n := buf.Len()
	bar.SetProgress(0.001)
	if buf.Len() != n {
		t.Error("progress bar redrew without a percentage change")
	}
	bar.SetProgress(0.5)
	bar.SetProgress(1)
	out := buf.String()
	if !strings.Contains(out, " 50%") || !strings.Contains(out, "100%") {
		t.Errorf("missing percentages in %q", out)
	}
	if !strings.HasSuffix(out, "\n") {
		t.Error("completed bar should end the line")
	}
}

// writeStack writes depth PNG slices of size w x h into dir
func writeStack(t *testing.T, dir string, w, h, depth int) {
	t.Helper()
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	for z := 0; z < depth; z++ {
		img := image.NewGray16(image.Rect(0, 0, w, h))
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				img.Set(x, y, color.Gray16{Y: uint16((x + y + z) * 2000)})
			}
		}
		f, err := os.Create(filepath.Join(dir, fmt.Sprintf("slice_%d.png", z)))
		if err != nil {
			t.Fatal(err)
		}
		if err := png.Encode(f, img); err != nil {
			t.Fatal(err)
		}
		f.Close()
	}
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCommand(io.Discard)
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "run.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestExportCommand(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping file I/O test in short mode")
	}
	dir := t.TempDir()
	input := filepath.Join(dir, "in")
	output := filepath.Join(dir, "out")
	writeStack(t, input, 6, 5, 3)
	cfgPath := writeConfig(t, dir, fmt.Sprintf(`
export:
  numThreads: 2
  policy: slice
transform:
  type: translation
  translation: [1, 0, 0]
input:
  dir: %q
output:
  dir: %q
  axes: [z, x]
`, input, output))

	stdout, err := runCLI(t, "--config", cfgPath, "export", "--threads", "3")
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}
	if !strings.Contains(stdout, "moving_warped") {
		t.Errorf("output does not name the channel: %q", stdout)
	}
	for _, name := range []string{"slice_z_000.jpg", "slice_z_002.jpg", "slice_x_005.jpg"} {
		if _, err := os.Stat(filepath.Join(output, "moving_warped", name)); err != nil {
			t.Errorf("missing %s: %v", name, err)
		}
	}
}

func TestExportCommandCropsToRegion(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping file I/O test in short mode")
	}
	dir := t.TempDir()
	input := filepath.Join(dir, "in")
	output := filepath.Join(dir, "out")
	writeStack(t, input, 4, 4, 3)
	cfgPath := writeConfig(t, dir, fmt.Sprintf(`
input:
  dir: %q
output:
  dir: %q
  regionMin: [0, 0, 1]
  regionMax: [3, 3, 1]
`, input, output))

	if _, err := runCLI(t, "--config", cfgPath, "export"); err != nil {
		t.Fatalf("export failed: %v", err)
	}
	chDir := filepath.Join(output, "moving_warped")
	if _, err := os.Stat(filepath.Join(chDir, "slice_z_000.jpg")); err != nil {
		t.Errorf("missing cropped section: %v", err)
	}
	if _, err := os.Stat(filepath.Join(chDir, "slice_z_001.jpg")); !os.IsNotExist(err) {
		t.Error("sections outside the region were written")
	}
}

func TestExportCommandRejectsBadFlags(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir, "input:\n  dir: "+filepath.Join(dir, "none")+"\n")
	if _, err := runCLI(t, "--config", cfgPath, "export", "--policy", "zigzag"); err == nil {
		t.Error("expected an error for an unknown policy")
	}
	if _, err := runCLI(t, "--config", cfgPath, "export"); err == nil {
		t.Error("expected an error for a missing input directory")
	}
}

func TestBoundsCommand(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "in")
	writeStack(t, input, 4, 4, 2)
	cfgPath := writeConfig(t, dir, fmt.Sprintf(`
transform:
  type: translation
  translation: [2, 0, 0]
input:
  dir: %q
`, input))

	stdout, err := runCLI(t, "--config", cfgPath, "bounds", "--samples", "5")
	if err != nil {
		t.Fatalf("bounds failed: %v", err)
	}
	for _, want := range []string{"native", "physical", "warped", "5 samples"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("bounds output missing %q: %q", want, stdout)
		}
	}
	if _, err := runCLI(t, "--config", cfgPath, "bounds", "--samples", "100000"); err == nil {
		t.Error("expected an error for an excessive sample count")
	}
}

func TestMagnitudeCommand(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping file I/O test in short mode")
	}
	dir := t.TempDir()
	input := filepath.Join(dir, "in")
	output := filepath.Join(dir, "mag")
	writeStack(t, input, 5, 5, 2)
	cfgPath := writeConfig(t, dir, fmt.Sprintf(`
transform:
  type: translation
  translation: [3, 4, 0]
input:
  dir: %q
`, input))

	if _, err := runCLI(t, "--config", cfgPath, "magnitude", "--output", output); err != nil {
		t.Fatalf("magnitude failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(output, "magnitude", "slice_z_000.jpg")); err != nil {
		t.Errorf("missing magnitude slice: %v", err)
	}
}

func TestConfigInitCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg", "default.toml")
	if _, err := runCLI(t, "--config", filepath.Join(t.TempDir(), "absent.yaml"), "config", "init", path); err != nil {
		t.Fatalf("config init failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("config file not written: %v", err)
	}
}
