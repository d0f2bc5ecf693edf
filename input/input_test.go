package input

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ids.csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func TestLoadIdentifiers(t *testing.T) {
	path := writeFile(t, "goodsNo,thumbnail,goodsName\n123,http://img/1,Shirt\n456,http://img/2,Pants\n")

	ids, err := LoadIdentifiers(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(ids) != 2 || ids[0] != "123" || ids[1] != "456" {
		t.Fatalf("ids = %v, want [123 456]", ids)
	}
}

func TestLoadIdentifiersSkipsBlankRows(t *testing.T) {
	path := writeFile(t, "goodsNo\n1\n\n  \n2\n")

	ids, err := LoadIdentifiers(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("ids = %v, want 2 entries", ids)
	}
}

func TestLoadIdentifiersMissingFile(t *testing.T) {
	if _, err := LoadIdentifiers(filepath.Join(t.TempDir(), "absent.csv")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestLoadIdentifiersEmptyFile(t *testing.T) {
	path := writeFile(t, "")
	if _, err := LoadIdentifiers(path); err == nil {
		t.Fatalf("expected error for empty file")
	}
}

func TestLoadIdentifiersHeaderOnly(t *testing.T) {
	path := writeFile(t, "goodsNo\n")
	ids, err := LoadIdentifiers(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(ids) != 0 {
		t.Fatalf("ids = %v, want empty", ids)
	}
}
