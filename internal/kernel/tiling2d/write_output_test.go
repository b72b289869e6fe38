package tiling2d

import (
	"testing"

	"github.com/ember-ml/ember/internal/parallel"
	"github.com/ember-ml/ember/internal/tensor"
)

// testTiling matches the 8x8x8 block configuration the fixtures assume.
func testTiling() Tiling {
	return Tiling{BlockSizeM: 8, BlockSizeK: 8, BlockSizeN: 8}
}

func zerosOut(t *testing.T, m, n int) *tensor.RawTensor {
	t.Helper()
	out, err := tensor.NewRaw(tensor.Shape{m, n}, tensor.Float32, tensor.CPU)
	if err != nil {
		t.Fatalf("NewRaw failed: %v", err)
	}
	return out
}

// arangeTile returns tile values 0..15, row-major 4x4.
func arangeTile() []float32 {
	tile := make([]float32, 16)
	for i := range tile {
		tile[i] = float32(i)
	}
	return tile
}

func assertOut(t *testing.T, out *tensor.RawTensor, want []float32) {
	t.Helper()
	got := out.AsFloat32()
	if len(got) != len(want) {
		t.Fatalf("output length %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("out[%d] = %f, want %f", i, got[i], want[i])
		}
	}
}

// TestWriteRow tests one bounds-unchecked tile row written with vectorized
// stores: row index 2 of the tile lands on output row 6, columns 4..7.
func TestWriteRow(t *testing.T) {
	cfg := NewConfig(testTiling(), 8, 8, 4, 4)
	if cfg.CheckMBounds || cfg.CheckNBounds {
		t.Fatal("8x8 output with block size 8 should need no bounds checks")
	}

	out := zerosOut(t, 8, 8)
	columns := specializeColumns(cfg, specializeStore(cfg))
	columns(out, arangeTile(), 2, 4, 4, 0, 8)

	want := make([]float32, 64)
	copy(want[52:56], []float32{8, 9, 10, 11})
	assertOut(t, out, want)
}

// fullTileWant is the expected 8x8 output after writing the 4x4 arange
// tile at rows/cols 4..7.
func fullTileWant() []float32 {
	want := make([]float32, 64)
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			want[(4+r)*8+4+c] = float32(r*4 + c)
		}
	}
	return want
}

// TestWriter_FullTile tests the whole tile written without bounds checks,
// vector width 4.
func TestWriter_FullTile(t *testing.T) {
	cfg := NewConfig(testTiling(), 8, 8, 4, 4)
	write, err := Specialize(cfg)
	if err != nil {
		t.Fatalf("Specialize failed: %v", err)
	}

	out := zerosOut(t, 8, 8)
	write(out, arangeTile(), Coordinates{UnitRow: 4, UnitCol: 4}, 0)

	assertOut(t, out, fullTileWant())
}

// TestWriter_VectorWidth2 tests the same full tile with vector width 2.
func TestWriter_VectorWidth2(t *testing.T) {
	cfg := NewConfig(testTiling(), 8, 8, 4, 2)
	write, err := Specialize(cfg)
	if err != nil {
		t.Fatalf("Specialize failed: %v", err)
	}

	out := zerosOut(t, 8, 8)
	write(out, arangeTile(), Coordinates{UnitRow: 4, UnitCol: 4}, 0)

	assertOut(t, out, fullTileWant())
}

// TestWriter_ScalarStores tests the same full tile with scalar stores.
func TestWriter_ScalarStores(t *testing.T) {
	cfg := NewConfig(testTiling(), 8, 8, 4, 1)
	write, err := Specialize(cfg)
	if err != nil {
		t.Fatalf("Specialize failed: %v", err)
	}

	out := zerosOut(t, 8, 8)
	write(out, arangeTile(), Coordinates{UnitRow: 4, UnitCol: 4}, 0)

	assertOut(t, out, fullTileWant())
}

// TestWriter_RowOverhang tests a tile overhanging the bottom edge: only
// the two in-bounds rows are written, the rest are skipped entirely.
func TestWriter_RowOverhang(t *testing.T) {
	cfg := NewConfig(testTiling(), 6, 8, 4, 4)
	if !cfg.CheckMBounds {
		t.Fatal("6-row output with block size 8 should need M bounds checks")
	}
	write, err := Specialize(cfg)
	if err != nil {
		t.Fatalf("Specialize failed: %v", err)
	}

	out := zerosOut(t, 6, 8)
	write(out, arangeTile(), Coordinates{UnitRow: 4, UnitCol: 4}, 0)

	want := make([]float32, 48)
	copy(want[36:40], []float32{0, 1, 2, 3})
	copy(want[44:48], []float32{4, 5, 6, 7})
	assertOut(t, out, want)
}

// TestWriter_ColumnOverhang tests a tile placed entirely past the right
// edge: no lane is in bounds, so nothing is written.
func TestWriter_ColumnOverhang(t *testing.T) {
	cfg := NewConfig(testTiling(), 8, 4, 4, 4)
	if !cfg.CheckNBounds {
		t.Fatal("4-column output with block size 8 should need N bounds checks")
	}
	write, err := Specialize(cfg)
	if err != nil {
		t.Fatalf("Specialize failed: %v", err)
	}

	out := zerosOut(t, 8, 4)
	write(out, arangeTile(), Coordinates{UnitRow: 4, UnitCol: 4}, 0)

	assertOut(t, out, make([]float32, 32))
}

// TestWriter_TileSize1 tests the scalar fast path: a single element at the
// computed flat offset.
func TestWriter_TileSize1(t *testing.T) {
	cfg := NewConfig(testTiling(), 8, 8, 1, 1)
	write, err := Specialize(cfg)
	if err != nil {
		t.Fatalf("Specialize failed: %v", err)
	}

	out := zerosOut(t, 8, 8)
	write(out, []float32{42}, Coordinates{UnitRow: 4, UnitCol: 4}, 0)

	want := make([]float32, 64)
	want[36] = 42
	assertOut(t, out, want)
}

// TestLaunch_OutOfBoundsUnits tests a two-unit dispatch against a 5x1
// output: the first unit writes four rows of its leading column, the
// second unit's tile overhangs after one row.
func TestLaunch_OutOfBoundsUnits(t *testing.T) {
	cfg := NewConfig(testTiling(), 5, 1, 4, 1)
	if !cfg.CheckMBounds || !cfg.CheckNBounds {
		t.Fatal("5x1 output should need bounds checks on both dimensions")
	}
	write, err := Specialize(cfg)
	if err != nil {
		t.Fatalf("Specialize failed: %v", err)
	}

	// Column-major values 1..16 of a 4x4 block: each tile row r leads
	// with r+1.
	results := []float32{
		1, 5, 9, 13,
		2, 6, 10, 14,
		3, 7, 11, 15,
		4, 8, 12, 16,
	}

	out := zerosOut(t, 5, 1)
	Launch(
		write, cfg, testTiling(),
		CubeDim{X: 1, Y: 1}, CubeDim{X: 2, Y: 1},
		out,
		func(Coordinates) []float32 { return results },
		0,
		parallel.Config{},
	)

	assertOut(t, out, []float32{1, 2, 3, 4, 1})
}

// TestWriter_Unrolled tests that the unrolled specialization writes the
// same output as the looped one.
func TestWriter_Unrolled(t *testing.T) {
	tiling := testTiling()
	tiling.Unroll = true
	cfg := NewConfig(tiling, 8, 8, 4, 4)
	if !cfg.Unroll {
		t.Fatal("config should carry the unroll flag")
	}
	write, err := Specialize(cfg)
	if err != nil {
		t.Fatalf("Specialize failed: %v", err)
	}

	out := zerosOut(t, 8, 8)
	write(out, arangeTile(), Coordinates{UnitRow: 4, UnitCol: 4}, 0)

	assertOut(t, out, fullTileWant())
}

// TestConfig_Validate tests the specialization invariants.
func TestConfig_Validate(t *testing.T) {
	bad := []Config{
		{TileSize: 0, VectorWidth: 1},
		{TileSize: 4, VectorWidth: 0},
		{TileSize: 4, VectorWidth: 3},
		{TileSize: 1, VectorWidth: 4},
	}
	for _, cfg := range bad {
		if err := cfg.Validate(); err == nil {
			t.Errorf("Validate(%+v) should fail", cfg)
		}
		if _, err := Specialize(cfg); err == nil {
			t.Errorf("Specialize(%+v) should fail", cfg)
		}
	}

	good := Config{TileSize: 4, VectorWidth: 4}
	if err := good.Validate(); err != nil {
		t.Errorf("Validate(%+v) failed: %v", good, err)
	}
}
