package viewerapi_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bbtrace/bbtrace/internal/viewercore"
	"github.com/bbtrace/bbtrace/internal/viewerapi"
	"github.com/bbtrace/bbtrace/internal/wire"
)

type fakeSnapshotter struct {
	snap viewercore.Snapshot
}

func (f *fakeSnapshotter) Snapshot() viewercore.Snapshot { return f.snap }

type fakeRangeSender struct {
	added   []wire.AddressRange
	cleared bool
	err     error
}

func (f *fakeRangeSender) AddRanges(ranges []wire.AddressRange) error {
	if f.err != nil {
		return f.err
	}
	f.added = ranges
	return nil
}

func (f *fakeRangeSender) ClearRanges() error {
	if f.err != nil {
		return f.err
	}
	f.cleared = true
	return nil
}

func TestHealthz(t *testing.T) {
	srv := viewerapi.NewServer(&fakeSnapshotter{}, &fakeRangeSender{}, nil)
	h := viewerapi.NewRouter(srv)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestGetSnapshot(t *testing.T) {
	snap := viewercore.Snapshot{HitLog: []int{9, 10}}
	srv := viewerapi.NewServer(&fakeSnapshotter{snap: snap}, &fakeRangeSender{}, nil)
	h := viewerapi.NewRouter(srv)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/snapshot", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var got viewercore.Snapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if len(got.HitLog) != 2 || got.HitLog[0] != 9 {
		t.Errorf("got %+v", got)
	}
}

func TestPostRanges(t *testing.T) {
	sender := &fakeRangeSender{}
	srv := viewerapi.NewServer(&fakeSnapshotter{}, sender, nil)
	h := viewerapi.NewRouter(srv)

	body := `{"ranges":[{"Base":4194304,"BeginRVA":16,"EndRVA":32}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/ranges", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if len(sender.added) != 1 || sender.added[0].Base != 0x400000 {
		t.Errorf("AddRanges not called with expected ranges: %+v", sender.added)
	}
}

func TestPostRangesInvalidJSON(t *testing.T) {
	srv := viewerapi.NewServer(&fakeSnapshotter{}, &fakeRangeSender{}, nil)
	h := viewerapi.NewRouter(srv)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/ranges", bytes.NewBufferString("not json"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestDeleteRanges(t *testing.T) {
	sender := &fakeRangeSender{}
	srv := viewerapi.NewServer(&fakeSnapshotter{}, sender, nil)
	h := viewerapi.NewRouter(srv)

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/ranges", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !sender.cleared {
		t.Error("ClearRanges was not called")
	}
}
