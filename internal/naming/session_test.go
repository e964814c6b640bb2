package naming

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/kozaktomas/face-organizer/internal/cluster"
	"github.com/kozaktomas/face-organizer/internal/faces"
)

func testStore(t *testing.T) *cluster.Store {
	t.Helper()
	store, err := cluster.OpenStore(filepath.Join(t.TempDir(), "people.json"))
	if err != nil {
		t.Fatal(err)
	}
	return store
}

func putCluster(store *cluster.Store, id string, created time.Time) {
	store.Put(&cluster.Cluster{
		ID:             id,
		Representative: []float32{1, 0},
		Members: []faces.Record{
			{ImagePath: "/photos/" + id + ".jpg", Embedding: []float32{1, 0}},
		},
		CreatedAt: created,
	})
}

func TestSessionQueuesOnlyUnresolved(t *testing.T) {
	store := testStore(t)
	now := time.Now()
	putCluster(store, "open", now)
	putCluster(store, "named", now.Add(time.Second))
	if err := store.SetName("named", "Anna"); err != nil {
		t.Fatal(err)
	}

	session := NewSession(store)
	pending := session.Pending()
	if len(pending) != 1 || pending[0].ClusterID != "open" {
		t.Errorf("pending = %+v; want just the open cluster", pending)
	}
	if pending[0].Representative.ImagePath != "/photos/open.jpg" {
		t.Errorf("representative = %s; want the founding member", pending[0].Representative.ImagePath)
	}
}

func TestSubmitNamePersistsToStore(t *testing.T) {
	store := testStore(t)
	putCluster(store, "one", time.Now())

	session := NewSession(store)
	if err := session.Submit("one", "Anna"); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	c, _ := store.Get("one")
	if c.Name != "Anna" {
		t.Errorf("store name = %q; want Anna", c.Name)
	}
	if len(session.Pending()) != 0 {
		t.Error("request should be retired after Submit")
	}
}

func TestSubmitEmptyNameSkips(t *testing.T) {
	store := testStore(t)
	putCluster(store, "one", time.Now())

	session := NewSession(store)
	if err := session.Submit("one", ""); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	c, _ := store.Get("one")
	if !c.Skipped {
		t.Error("empty name should mark the cluster skipped")
	}
}

func TestSubmitUnknownCluster(t *testing.T) {
	store := testStore(t)
	putCluster(store, "one", time.Now())

	session := NewSession(store)
	if err := session.Submit("nope", "Anna"); err == nil {
		t.Error("expected an error for an unknown cluster")
	}
}

func TestWaitReturnsWhenAllResolved(t *testing.T) {
	store := testStore(t)
	now := time.Now()
	putCluster(store, "one", now)
	putCluster(store, "two", now.Add(time.Second))

	session := NewSession(store)
	if err := session.Submit("one", "Anna"); err != nil {
		t.Fatal(err)
	}
	if err := session.Submit("two", ""); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := session.Wait(ctx); err != nil {
		t.Errorf("Wait after full resolution = %v; want nil", err)
	}
}

func TestAbandonSkipsRemaining(t *testing.T) {
	store := testStore(t)
	now := time.Now()
	putCluster(store, "one", now)
	putCluster(store, "two", now.Add(time.Second))

	session := NewSession(store)
	if err := session.Submit("one", "Anna"); err != nil {
		t.Fatal(err)
	}
	session.Abandon()

	c, _ := store.Get("two")
	if !c.Skipped {
		t.Error("abandon should skip the remaining clusters")
	}
	one, _ := store.Get("one")
	if one.Name != "Anna" {
		t.Error("abandon must not undo earlier decisions")
	}

	if err := session.Submit("two", "Ben"); !errors.Is(err, ErrClosed) {
		t.Errorf("Submit after abandon = %v; want ErrClosed", err)
	}
}

func TestWaitCancelledAbandons(t *testing.T) {
	store := testStore(t)
	putCluster(store, "one", time.Now())

	session := NewSession(store)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := session.Wait(ctx); !errors.Is(err, ErrAbandoned) {
		t.Errorf("Wait on cancelled context = %v; want ErrAbandoned", err)
	}
	c, _ := store.Get("one")
	if !c.Skipped {
		t.Error("cancellation should skip the pending cluster")
	}
}

func TestRunResolvesInOrderAndSanitizes(t *testing.T) {
	store := testStore(t)
	now := time.Now()
	putCluster(store, "one", now)
	putCluster(store, "two", now.Add(time.Second))

	var seen []string
	session := NewSession(store)
	err := session.Run(context.Background(), func(req Request) (string, error) {
		seen = append(seen, req.ClusterID)
		if req.ClusterID == "one" {
			return " Anna Smith ", nil
		}
		return "", nil
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(seen) != 2 || seen[0] != "one" || seen[1] != "two" {
		t.Errorf("resolution order = %v; want creation order", seen)
	}
	one, _ := store.Get("one")
	if one.Name != "Anna_Smith" {
		t.Errorf("name = %q; want the sanitized form Anna_Smith", one.Name)
	}
	two, _ := store.Get("two")
	if !two.Skipped {
		t.Error("empty answer should skip the cluster")
	}
}

func TestRunResolverErrorAbandons(t *testing.T) {
	store := testStore(t)
	now := time.Now()
	putCluster(store, "one", now)
	putCluster(store, "two", now.Add(time.Second))

	session := NewSession(store)
	err := session.Run(context.Background(), func(req Request) (string, error) {
		return "", errors.New("terminal closed")
	})
	if !errors.Is(err, ErrAbandoned) {
		t.Fatalf("Run with failing resolver = %v; want ErrAbandoned", err)
	}

	for _, id := range []string{"one", "two"} {
		c, _ := store.Get(id)
		if !c.Skipped {
			t.Errorf("cluster %s should be skipped after abandon", id)
		}
	}
}

func TestResumedSessionDoesNotReask(t *testing.T) {
	store := testStore(t)
	putCluster(store, "one", time.Now())

	first := NewSession(store)
	if err := first.Submit("one", "Anna"); err != nil {
		t.Fatal(err)
	}

	second := NewSession(store)
	if len(second.Pending()) != 0 {
		t.Error("a cluster with a stored name must not be asked about again")
	}
}
