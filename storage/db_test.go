package storage

import (
	"errors"
	"path/filepath"
	"testing"
)

func testDatabase(t *testing.T, db Database) {
	t.Helper()
	key := []byte("swap/record/1")

	if _, err := db.Get(key); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("missing key: got %v, want ErrKeyNotFound", err)
	}
	if err := db.Put(key, []byte("open")); err != nil {
		t.Fatalf("put: %v", err)
	}
	value, err := db.Get(key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(value) != "open" {
		t.Fatalf("get = %q, want %q", value, "open")
	}
	if err := db.Put(key, []byte("retired")); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	value, err = db.Get(key)
	if err != nil {
		t.Fatalf("get after overwrite: %v", err)
	}
	if string(value) != "retired" {
		t.Fatalf("get = %q, want %q", value, "retired")
	}
	if err := db.Delete(key); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := db.Get(key); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("deleted key: got %v, want ErrKeyNotFound", err)
	}
	if err := db.Delete(key); err != nil {
		t.Fatalf("delete of missing key must be a no-op, got %v", err)
	}
}

func TestMemDB(t *testing.T) {
	db := NewMemDB()
	defer db.Close()
	testDatabase(t, db)
}

func TestMemDBCopiesValues(t *testing.T) {
	db := NewMemDB()
	defer db.Close()
	value := []byte("original")
	if err := db.Put([]byte("k"), value); err != nil {
		t.Fatalf("put: %v", err)
	}
	value[0] = 'X'
	stored, err := db.Get([]byte("k"))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(stored) != "original" {
		t.Fatalf("stored value aliased the caller's slice")
	}
	stored[0] = 'Y'
	again, err := db.Get([]byte("k"))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(again) != "original" {
		t.Fatalf("returned value aliased the stored slice")
	}
}

func TestLevelDB(t *testing.T) {
	db, err := NewLevelDB(filepath.Join(t.TempDir(), "ledger"))
	if err != nil {
		t.Fatalf("open leveldb: %v", err)
	}
	defer db.Close()
	testDatabase(t, db)
}
