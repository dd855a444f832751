package stack

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"warpresample/internal/models"
)

// createTestImage creates a grayscale test image with the specified dimensions and pattern
func createTestImage(width, height int, pattern func(x, y int) uint16) *image.Gray16 {
	img := image.NewGray16(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.Gray16{Y: pattern(x, y)})
		}
	}
	return img
}

// writePNG stores img losslessly so sample values survive the round trip
func writePNG(t *testing.T, path string, img image.Image) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Failed to create %s: %v", path, err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("Failed to encode %s: %v", path, err)
	}
}

func TestExtractNumber(t *testing.T) {
	tests := []struct {
		name string
		want int
	}{
		{"slice_10.png", 10},
		{"slice_2.jpg", 2},
		{"img.tif", 0},
		{"/data/s007.jpeg", 7},
	}
	for _, tt := range tests {
		if got := extractNumber(tt.name); got != tt.want {
			t.Errorf("extractNumber(%q) = %d, want %d", tt.name, got, tt.want)
		}
	}
}

// TestLoadDirOrdersNumerically verifies slices are sorted by filename number
// and stacked along z in that order
func TestLoadDirOrdersNumerically(t *testing.T) {
	dir := t.TempDir()
	for _, i := range []int{10, 2, 1} {
		level := uint16(i * 1000)
		img := createTestImage(4, 3, func(x, y int) uint16 { return level })
		writePNG(t, filepath.Join(dir, fmt.Sprintf("slice_%d.png", i)), img)
	}
	// not an image
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	slices, err := LoadDir(context.Background(), dir, 2.5, 2)
	if err != nil {
		t.Fatalf("LoadDir failed: %v", err)
	}
	if len(slices) != 3 {
		t.Fatalf("Expected 3 slices, got %d", len(slices))
	}
	wantNames := []string{"slice_1.png", "slice_2.png", "slice_10.png"}
	for i, s := range slices {
		if s.Filename != wantNames[i] {
			t.Errorf("Slice %d: expected %s, got %s", i, wantNames[i], s.Filename)
		}
		if s.Position != float64(i)*2.5 {
			t.Errorf("Slice %d: expected position %f, got %f", i, float64(i)*2.5, s.Position)
		}
	}

	r, err := ToRaster(slices)
	if err != nil {
		t.Fatalf("ToRaster failed: %v", err)
	}
	dims := r.Interval().Dimensions()
	if dims[0] != 4 || dims[1] != 3 || dims[2] != 3 {
		t.Fatalf("Expected 4x3x3 raster, got %v", dims)
	}
	if got, want := r.At([]int64{1, 1, 2}), 10000.0/65535.0; got != want {
		t.Errorf("Expected %f at z=2, got %f", want, got)
	}
	if got, want := r.At([]int64{3, 2, 0}), 1000.0/65535.0; got != want {
		t.Errorf("Expected %f at z=0, got %f", want, got)
	}
}

func TestLoadDirErrors(t *testing.T) {
	dir := t.TempDir()
	if _, err := LoadDir(context.Background(), dir, 1, 1); !errors.Is(err, ErrNoImages) {
		t.Errorf("Expected ErrNoImages, got %v", err)
	}

	writePNG(t, filepath.Join(dir, "a1.png"), createTestImage(4, 4, func(x, y int) uint16 { return 0 }))
	writePNG(t, filepath.Join(dir, "a2.png"), createTestImage(5, 4, func(x, y int) uint16 { return 0 }))
	if _, err := LoadDir(context.Background(), dir, 1, 1); !errors.Is(err, ErrSizeMismatch) {
		t.Errorf("Expected ErrSizeMismatch, got %v", err)
	}
}

func TestLoadDirJPEG(t *testing.T) {
	dir := t.TempDir()
	f, err := os.Create(filepath.Join(dir, "slice_0.jpg"))
	if err != nil {
		t.Fatal(err)
	}
	img := createTestImage(8, 8, func(x, y int) uint16 { return 32768 })
	if err := jpeg.Encode(f, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatal(err)
	}
	f.Close()

	slices, err := LoadDir(context.Background(), dir, 1, 4)
	if err != nil {
		t.Fatalf("LoadDir failed: %v", err)
	}
	if b := slices[0].Image.Bounds(); b.Dx() != 8 || b.Dy() != 8 {
		t.Errorf("Expected 8x8 image, got %v", b)
	}
}

func TestNewSourcePlacesByVoxelSize(t *testing.T) {
	slices := []models.Slice{
		{Image: createTestImage(6, 5, func(x, y int) uint16 { return uint16(x) })},
		{Image: createTestImage(6, 5, func(x, y int) uint16 { return uint16(y) })},
	}
	src, err := NewSource("mri", slices, models.VoxelSize{X: 0.5, Y: 0.5, Z: 3, Unit: "mm"})
	if err != nil {
		t.Fatalf("NewSource failed: %v", err)
	}

	out := make([]float64, 3)
	src.SourceTransform(0, 0).Apply([]float64{2, 4, 1}, out)
	if out[0] != 1 || out[1] != 2 || out[2] != 3 {
		t.Errorf("Expected physical (1, 2, 3), got %v", out)
	}
	vd := src.VoxelDimensions()
	if vd.Unit != "mm" || vd.Size[2] != 3 {
		t.Errorf("Unexpected voxel dimensions %+v", vd)
	}
	itvl := src.Interval(0, 0)
	if itvl.Max[0] != 5 || itvl.Max[1] != 4 || itvl.Max[2] != 1 {
		t.Errorf("Unexpected interval %v", itvl)
	}
}
