package store

import (
	"context"
	"testing"
)

func TestSettings(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, ok, err := s.GetSetting(ctx, "janitor.last_sweep")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected setting to be absent")
	}

	if err := s.SetSetting(ctx, "janitor.last_sweep", "a"); err != nil {
		t.Fatal(err)
	}
	if err := s.SetSetting(ctx, "janitor.last_sweep", "b"); err != nil {
		t.Fatal(err)
	}

	value, ok, err := s.GetSetting(ctx, "janitor.last_sweep")
	if err != nil {
		t.Fatal(err)
	}
	if !ok || value != "b" {
		t.Fatalf("expected overwritten value 'b', got %q (ok=%v)", value, ok)
	}
}
