package application

import (
	"context"
	"errors"
	"testing"
	"time"

	masterdata "greengauge/internal/masterdata/domain"
)

func newTestHub(t *testing.T, source *stubSource) *Hub {
	t.Helper()
	catalog, err := masterdata.NewCatalog(masterdata.DefaultDevices())
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	hub, err := NewHub(catalog, source, HubConfig{
		Interval: time.Hour,
		Clock:    fixedClock{now: time.Date(2024, 1, 15, 11, 0, 0, 0, time.UTC)},
	})
	if err != nil {
		t.Fatalf("new hub: %v", err)
	}
	return hub
}

func receive(t *testing.T, sub *Subscription) Snapshot {
	t.Helper()
	select {
	case snapshot, ok := <-sub.C:
		if !ok {
			t.Fatalf("subscription closed")
		}
		return snapshot
	case <-time.After(2 * time.Second):
		t.Fatalf("expected a snapshot")
	}
	return Snapshot{}
}

func TestHubReferenceCountsPollers(t *testing.T) {
	source := &stubSource{observations: sampleObservations("KETTLE")}
	hub := newTestHub(t, source)
	defer hub.Close()

	first, err := hub.Subscribe(context.Background(), "Kettle")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	snapshot := receive(t, first)
	if snapshot.Device != "kettle" || len(snapshot.Records) != 2 {
		t.Fatalf("unexpected snapshot: %+v", snapshot)
	}

	second, err := hub.Subscribe(context.Background(), "kettle")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	replay := receive(t, second)
	if replay.Generation != snapshot.Generation {
		t.Fatalf("expected latest snapshot replayed, got generation %d", replay.Generation)
	}
	if source.Calls() != 1 {
		t.Fatalf("expected one shared poller, got %d fetches", source.Calls())
	}

	first.Close()
	first.Close()
	if !hub.Watching("kettle") {
		t.Fatalf("expected poller to survive while a subscriber remains")
	}
	second.Close()
	if hub.Watching("kettle") {
		t.Fatalf("expected poller stopped after last subscriber left")
	}
	if _, ok := <-second.C; ok {
		t.Fatalf("expected closed subscription channel")
	}
}

func TestHubUnknownDevice(t *testing.T) {
	hub := newTestHub(t, &stubSource{})
	if _, err := hub.Subscribe(context.Background(), "toaster"); !errors.Is(err, masterdata.ErrUnknownDevice) {
		t.Fatalf("expected ErrUnknownDevice, got %v", err)
	}
	if _, _, err := hub.Snapshot(context.Background(), "toaster"); !errors.Is(err, masterdata.ErrUnknownDevice) {
		t.Fatalf("expected ErrUnknownDevice, got %v", err)
	}
}

func TestHubSnapshotFetchesWhenNotWatching(t *testing.T) {
	source := &stubSource{observations: sampleObservations("KETTLE")}
	hub := newTestHub(t, source)

	device, snapshot, err := hub.Snapshot(context.Background(), "kettle")
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if device.Watts != 6.3 {
		t.Fatalf("expected kettle descriptor, got %+v", device)
	}
	if len(snapshot.Records) != 2 || snapshot.Generation != 0 {
		t.Fatalf("expected fresh uncommitted snapshot, got %+v", snapshot)
	}
	if hub.Watching("kettle") {
		t.Fatalf("expected no poller started by a one-off snapshot")
	}
}
