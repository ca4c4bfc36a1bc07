package mute

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	logx "github.com/suprun/ck-blackout-bot/pkg/logx"
)

func TestMutedAbsentFile(t *testing.T) {
	t.Parallel()
	l := New(filepath.Join(t.TempDir(), "mute.json"), logx.Nop())
	if l.Muted(-100123) {
		t.Fatal("absent file must mute nothing")
	}
}

func TestMutedObjectForm(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "mute.json")
	if err := os.WriteFile(path, []byte(`{"-100123": true, "-100456": false}`), 0o644); err != nil {
		t.Fatal(err)
	}
	l := New(path, logx.Nop())
	if !l.Muted(-100123) {
		t.Fatal("expected -100123 muted")
	}
	if l.Muted(-100456) {
		t.Fatal("false entry must not mute")
	}
	if l.Muted(-1) {
		t.Fatal("unlisted channel must not be muted")
	}
}

func TestMutedArrayForm(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "mute.json")
	if err := os.WriteFile(path, []byte(`[-100123, "-100456"]`), 0o644); err != nil {
		t.Fatal(err)
	}
	l := New(path, logx.Nop())
	if !l.Muted(-100123) || !l.Muted(-100456) {
		t.Fatal("both numeric and string ids must mute")
	}
}

func TestMutedReloadsOnChange(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "mute.json")
	if err := os.WriteFile(path, []byte(`[]`), 0o644); err != nil {
		t.Fatal(err)
	}
	l := New(path, logx.Nop())
	if l.Muted(-1) {
		t.Fatal("empty list must mute nothing")
	}

	time.Sleep(5 * time.Millisecond)
	if err := os.WriteFile(path, []byte(`[-1]`), 0o644); err != nil {
		t.Fatal(err)
	}
	if !l.Muted(-1) {
		t.Fatal("rewritten file must be picked up")
	}

	// Removing the file unmutes everything without an error.
	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	if l.Muted(-1) {
		t.Fatal("absent file must mute nothing")
	}
}

func TestMutedCorruptFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "mute.json")
	if err := os.WriteFile(path, []byte("{oops"), 0o644); err != nil {
		t.Fatal(err)
	}
	l := New(path, logx.Nop())
	if l.Muted(-100123) {
		t.Fatal("corrupt file must mute nothing")
	}
}
