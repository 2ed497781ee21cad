package checkpoint

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "block-1.json")
	want := Value{Form: "kbn", LastTested: 4242, Min: 4000, Max: 5000}
	if err := Save(path, want); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, ok := Load(path)
	if !ok {
		t.Fatal("load reported not ok for a freshly saved checkpoint")
	}
	if got != want {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, want)
	}
}

func TestLoadMissingOrCorruptIsNonFatal(t *testing.T) {
	if _, ok := Load(filepath.Join(t.TempDir(), "nope.json")); ok {
		t.Fatal("expected ok=false for a missing file")
	}
	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, ok := Load(path); ok {
		t.Fatal("expected ok=false for corrupt JSON")
	}
}

func TestSaveLeavesNoTempFileBehind(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "block-2.json")
	if err := Save(path, Value{Form: "twin", LastTested: 7}); err != nil {
		t.Fatalf("save: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "block-2.json" {
		t.Fatalf("expected only the checkpoint file in %s, got %v", dir, entries)
	}
}

func TestEffectiveStart(t *testing.T) {
	cases := []struct {
		name       string
		blockStart uint64
		blockEnd   uint64
		v          Value
		ok         bool
		want       uint64
	}{
		{"no checkpoint", 100, 200, Value{}, false, 100},
		{"mid block", 100, 200, Value{LastTested: 150}, true, 151},
		{"before block", 100, 200, Value{LastTested: 50}, true, 100},
		{"past block", 100, 200, Value{LastTested: 400}, true, 100},
		{"at block end", 100, 200, Value{LastTested: 199}, true, 200},
	}
	for _, c := range cases {
		if got := EffectiveStart(c.blockStart, c.blockEnd, c.v, c.ok); got != c.want {
			t.Errorf("%s: EffectiveStart = %d, want %d", c.name, got, c.want)
		}
	}
}
