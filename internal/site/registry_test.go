package site

import (
	"errors"
	"testing"

	"fieldops-gateway/internal/geo"
	"fieldops-gateway/internal/model"
)

func TestRegistryOrderAndLookup(t *testing.T) {
	r := NewRegistry()
	for _, s := range []model.Site{
		{ID: "site-trondheim", Name: "Trondheim", Lat: 63.4305, Lon: 10.3951},
		{ID: "site-oslo", Name: "Oslo", Lat: 59.9139, Lon: 10.7522},
	} {
		if err := r.Add(s); err != nil {
			t.Fatalf("add %s: %v", s.ID, err)
		}
	}

	got := r.List(nil)
	if len(got) != 2 || got[0].ID != "site-trondheim" || got[1].ID != "site-oslo" {
		t.Fatalf("list = %v, want registration order", got)
	}

	s, err := r.Get("site-oslo")
	if err != nil || s.Name != "Oslo" {
		t.Fatalf("get = %+v, %v", s, err)
	}
	if _, err := r.Get("nope"); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	r := NewRegistry()
	if err := r.Add(model.Site{ID: "a"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := r.Add(model.Site{ID: "a"}); !errors.Is(err, model.ErrBadRequest) {
		t.Fatalf("err = %v, want ErrBadRequest", err)
	}
}

func TestRegistryBBoxFilter(t *testing.T) {
	r := NewRegistry()
	r.Add(model.Site{ID: "north", Lat: 63.5, Lon: 10.5})
	r.Add(model.Site{ID: "south", Lat: 59.9, Lon: 10.7})

	got := r.List(geo.ParseBBox("10.0,63.0,11.0,64.0"))
	if len(got) != 1 || got[0].ID != "north" {
		t.Fatalf("filtered = %v", got)
	}
}
