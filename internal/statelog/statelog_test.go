package statelog

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func TestRecordAndHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	l, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer l.Close()

	ctx := context.Background()
	at := time.Unix(1700000000, 0)

	if err := l.Record(ctx, RouteChange{At: at, Dest: 2, NextHop: 2, Cost: 5, Reachable: true}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := l.Record(ctx, RouteChange{At: at.Add(time.Second), Dest: 2, NextHop: 0, Cost: 0, Reachable: false}); err != nil {
		t.Fatalf("Record: %v", err)
	}

	hist, err := l.History(ctx, 2)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(hist) != 2 {
		t.Fatalf("History returned %d rows, want 2", len(hist))
	}
	if hist[0].Cost != 5 || !hist[0].Reachable {
		t.Fatalf("first row = %+v", hist[0])
	}
	if hist[1].Reachable {
		t.Fatalf("second row should be unreachable: %+v", hist[1])
	}
}

func TestHistoryEmptyForUnknownDest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	l, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer l.Close()

	hist, err := l.History(context.Background(), 99)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(hist) != 0 {
		t.Fatalf("History = %v, want empty", hist)
	}
}
