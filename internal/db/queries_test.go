package db

import (
	"context"
	"database/sql"
	"testing"

	"github.com/hpungsan/elclones/internal/errors"
	"github.com/hpungsan/elclones/internal/record"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	database, err := Init(t.TempDir())
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return database
}

func newTestRecord(id, html string) record.Record {
	return record.Record{
		ID:        id,
		HTML:      html,
		Styles:    `{"color":"rgb(0, 0, 0)"}`,
		Timestamp: 1700000000000,
		Name:      "div",
	}
}

func TestInsertAndGetElement(t *testing.T) {
	ctx := context.Background()
	database := newTestDB(t)

	r := newTestRecord("id-1", `<div id="a">x</div>`)
	if err := InsertElement(ctx, database, r); err != nil {
		t.Fatalf("InsertElement failed: %v", err)
	}

	got, err := GetElement(ctx, database, "id-1")
	if err != nil {
		t.Fatalf("GetElement failed: %v", err)
	}
	if *got != r {
		t.Errorf("GetElement = %+v, want %+v", *got, r)
	}
}

func TestInsertElement_DuplicateRejected(t *testing.T) {
	ctx := context.Background()
	database := newTestDB(t)

	r := newTestRecord("dup", "<p>1</p>")
	if err := InsertElement(ctx, database, r); err != nil {
		t.Fatalf("first insert: %v", err)
	}

	r.HTML = "<p>2</p>"
	err := InsertElement(ctx, database, r)
	if !errors.Is(err, errors.ErrDuplicateID) {
		t.Fatalf("second insert error = %v, want DUPLICATE_ID", err)
	}

	got, err := GetElement(ctx, database, "dup")
	if err != nil {
		t.Fatal(err)
	}
	if got.HTML != "<p>1</p>" {
		t.Errorf("HTML = %q, original record must be unchanged", got.HTML)
	}
}

func TestGetElement_NotFound(t *testing.T) {
	_, err := GetElement(context.Background(), newTestDB(t), "missing")
	if !errors.Is(err, errors.ErrNotFound) {
		t.Fatalf("error = %v, want NOT_FOUND", err)
	}
}

func TestListElements_InsertionOrder(t *testing.T) {
	ctx := context.Background()
	database := newTestDB(t)

	ids := []string{"c", "a", "b"}
	for _, id := range ids {
		if err := InsertElement(ctx, database, newTestRecord(id, "<i></i>")); err != nil {
			t.Fatal(err)
		}
	}

	records, err := ListElements(ctx, database)
	if err != nil {
		t.Fatalf("ListElements: %v", err)
	}
	if len(records) != len(ids) {
		t.Fatalf("len = %d, want %d", len(records), len(ids))
	}
	for i, id := range ids {
		if records[i].ID != id {
			t.Errorf("records[%d].ID = %q, want %q", i, records[i].ID, id)
		}
	}

	n, err := CountElements(ctx, database)
	if err != nil || n != 3 {
		t.Errorf("CountElements = %d, %v; want 3", n, err)
	}
}

func TestListElements_EmptyIsNotNil(t *testing.T) {
	records, err := ListElements(context.Background(), newTestDB(t))
	if err != nil {
		t.Fatal(err)
	}
	if records == nil {
		t.Error("ListElements returned nil, want empty slice")
	}
}

func TestElementExists(t *testing.T) {
	ctx := context.Background()
	database := newTestDB(t)
	if err := InsertElement(ctx, database, newTestRecord("here", "<b></b>")); err != nil {
		t.Fatal(err)
	}

	if ok, err := ElementExists(ctx, database, "here"); err != nil || !ok {
		t.Errorf("ElementExists(here) = %v, %v", ok, err)
	}
	if ok, err := ElementExists(ctx, database, "gone"); err != nil || ok {
		t.Errorf("ElementExists(gone) = %v, %v", ok, err)
	}
}

func TestStorage_PutGetRevisions(t *testing.T) {
	ctx := context.Background()
	database := newTestDB(t)

	rev1, err := PutStorage(ctx, database, "isEnabled", "false")
	if err != nil {
		t.Fatal(err)
	}
	rev2, err := PutStorage(ctx, database, "storedElements", "[]")
	if err != nil {
		t.Fatal(err)
	}
	rev3, err := PutStorage(ctx, database, "isEnabled", "true")
	if err != nil {
		t.Fatal(err)
	}
	if !(rev1 < rev2 && rev2 < rev3) {
		t.Fatalf("revisions not increasing: %d %d %d", rev1, rev2, rev3)
	}

	rows, err := GetStorage(ctx, database, "isEnabled", "missing")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows["isEnabled"].Value != "true" {
		t.Errorf("GetStorage = %+v", rows)
	}

	all, err := GetStorage(ctx, database)
	if err != nil || len(all) != 2 {
		t.Errorf("GetStorage(all) = %d rows, %v", len(all), err)
	}

	changed, err := StorageChangedSince(ctx, database, rev2)
	if err != nil {
		t.Fatal(err)
	}
	if len(changed) != 1 || changed[0].Key != "isEnabled" {
		t.Errorf("StorageChangedSince = %+v", changed)
	}

	maxRev, err := MaxStorageRev(ctx, database)
	if err != nil || maxRev != rev3 {
		t.Errorf("MaxStorageRev = %d, %v; want %d", maxRev, err, rev3)
	}
}

func TestMaxStorageRev_Empty(t *testing.T) {
	rev, err := MaxStorageRev(context.Background(), newTestDB(t))
	if err != nil || rev != 0 {
		t.Errorf("MaxStorageRev = %d, %v; want 0", rev, err)
	}
}

func TestListSummaries_Pages(t *testing.T) {
	ctx := context.Background()
	database := newTestDB(t)
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		if err := InsertElement(ctx, database, newTestRecord(id, "<i></i>")); err != nil {
			t.Fatal(err)
		}
	}

	page, total, err := ListSummaries(ctx, database, 2, 2)
	if err != nil {
		t.Fatalf("ListSummaries: %v", err)
	}
	if total != 5 {
		t.Errorf("total = %d, want 5", total)
	}
	if len(page) != 2 || page[0].ID != "c" || page[1].ID != "d" {
		t.Errorf("page = %+v, want c, d", page)
	}

	page, _, err = ListSummaries(ctx, database, 10, 10)
	if err != nil || page == nil || len(page) != 0 {
		t.Errorf("past the end = %+v, %v; want empty slice", page, err)
	}
}
