package persistence

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"gridmdp/models"

	. "github.com/smartystreets/goconvey/convey"
)

func testRecord(name string) *TableRecord {
	q := models.NewQTable(3)
	q.Set(0, models.EAST, 0.1+0.2)
	q.Set(1, models.SOUTH, -1.0/3.0)
	q.Set(2, models.WEST, 1e-17)
	return &TableRecord{
		Name:      name,
		Algorithm: "value-iteration",
		Param:     0.9,
		Layout:    [][]string{{"S0", "G"}, {"W0", "S1"}},
		Q:         q,
		Policy:    q.Policy(),
	}
}

func TestJSONStore(t *testing.T) {
	Convey("Given a new json store", t, func() {
		path := filepath.Join(t.TempDir(), "tables.json")
		store, err := NewJSONStore(path)
		So(err, ShouldBeNil)
		defer store.Close()

		_, err = os.Stat(path)
		So(err, ShouldBeNil)

		Convey("A saved table loads back with identical values and argmax", func() {
			rec := testRecord("vi-0.90")
			So(store.SaveTable(rec), ShouldBeNil)

			loaded, err := store.LoadTable("vi-0.90")
			So(err, ShouldBeNil)
			So(loaded.Q.MaxDelta(rec.Q), ShouldEqual, 0.0)
			So(loaded.Q.Policy(), ShouldResemble, rec.Q.Policy())
			So(loaded.Policy, ShouldResemble, rec.Policy)
			So(loaded.Layout, ShouldResemble, rec.Layout)
			So(loaded.SavedAt.IsZero(), ShouldBeFalse)

			Convey("Mutating the saved record does not alter the store", func() {
				rec.Q.Set(0, models.NORTH, 99)
				rec.Layout[0][1] = "S9"
				again, _ := store.LoadTable("vi-0.90")
				So(again.Q.Get(0, models.NORTH), ShouldEqual, 0.0)
				So(again.Layout[0][1], ShouldEqual, "G")
			})

			Convey("A reopened store sees the same table", func() {
				reopened, err := NewJSONStore(path)
				So(err, ShouldBeNil)
				loaded, err := reopened.LoadTable("vi-0.90")
				So(err, ShouldBeNil)
				So(loaded.Q.MaxDelta(rec.Q), ShouldEqual, 0.0)
				So(loaded.Algorithm, ShouldEqual, "value-iteration")
				So(loaded.Param, ShouldEqual, 0.9)
			})
		})

		Convey("A missing table is ErrNotFound", func() {
			_, err := store.LoadTable("absent")
			So(errors.Is(err, ErrNotFound), ShouldBeTrue)
		})

		Convey("An unnamed record is rejected", func() {
			So(store.SaveTable(testRecord("")), ShouldNotBeNil)
		})

		Convey("A record without a table is rejected", func() {
			rec := testRecord("empty")
			rec.Q = nil
			So(store.SaveTable(rec), ShouldNotBeNil)
			_, err := store.LoadTable("empty")
			So(errors.Is(err, ErrNotFound), ShouldBeTrue)
		})
	})

	Convey("A stored record with a null table fails to load", t, func() {
		path := filepath.Join(t.TempDir(), "tables.json")
		So(os.WriteFile(path, []byte(`{"broken": {"name": "broken", "q": null}, "gone": null}`), 0644), ShouldBeNil)
		store, err := NewJSONStore(path)
		So(err, ShouldBeNil)

		_, err = store.LoadTable("broken")
		So(err, ShouldNotBeNil)
		_, err = store.LoadTable("gone")
		So(err, ShouldNotBeNil)
	})

	Convey("A corrupt file fails to open", t, func() {
		path := filepath.Join(t.TempDir(), "tables.json")
		So(os.WriteFile(path, []byte("{not json"), 0644), ShouldBeNil)
		_, err := NewJSONStore(path)
		So(err, ShouldNotBeNil)
	})
}

// Postgres tests need a live server; set GRIDMDP_POSTGRES_DSN to run them.
func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("GRIDMDP_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("GRIDMDP_POSTGRES_DSN not set")
	}

	Convey("Given a postgres store", t, func() {
		store, err := NewStore(dsn)
		So(err, ShouldBeNil)
		defer store.Close()

		rec := testRecord("ql-test")
		So(store.SaveTable(rec), ShouldBeNil)

		loaded, err := store.LoadTable("ql-test")
		So(err, ShouldBeNil)
		So(loaded.Q.MaxDelta(rec.Q), ShouldEqual, 0.0)
		So(loaded.Policy, ShouldResemble, rec.Policy)
		So(loaded.Layout, ShouldResemble, rec.Layout)

		_, err = store.LoadTable("no-such-run")
		So(errors.Is(err, ErrNotFound), ShouldBeTrue)
	})
}
