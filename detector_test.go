package faceoverlay

import (
	"context"
	"errors"
	"testing"
)

func TestDetectorAdapterLoad(t *testing.T) {
	tests := []struct {
		name      string
		factory   DetectorFactory
		wantReady bool
		wantIs    error
	}{
		{
			name:      "ready",
			factory:   factoryFor(&fakeDetector{initOK: true}),
			wantReady: true,
		},
		{
			name:    "init false",
			factory: factoryFor(&fakeDetector{}),
			wantIs:  ErrDetectorUnavailable,
		},
		{
			name:    "construct error",
			factory: func(string) (Detector, error) { return nil, errors.New("no opencv") },
		},
		{
			name:    "no factory",
			factory: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewDetectorAdapter(tt.factory, "/cascades/")
			err := a.Init(context.Background())

			if a.Ready() != tt.wantReady {
				t.Errorf("Ready() = %v, want %v", a.Ready(), tt.wantReady)
			}
			if tt.wantReady {
				if err != nil {
					t.Fatalf("Init() = %v", err)
				}
				return
			}
			if Classify(err).Kind != KindDetectorUnavailable {
				t.Errorf("Init() = %v, want detector unavailable", err)
			}
			if tt.wantIs != nil && !errors.Is(err, tt.wantIs) {
				t.Errorf("Init() = %v, want errors.Is %v", err, tt.wantIs)
			}
		})
	}
}

func TestDetectorAdapterAssetPath(t *testing.T) {
	var got string
	a := NewDetectorAdapter(func(path string) (Detector, error) {
		got = path
		return &fakeDetector{initOK: true}, nil
	}, "/opt/cascades/")

	if err := a.Init(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got != "/opt/cascades/" {
		t.Errorf("factory got asset path %q", got)
	}
}

func TestDetectorAdapterDispose(t *testing.T) {
	det := &fakeDetector{initOK: true}
	a := NewDetectorAdapter(factoryFor(det), "")
	if err := a.Init(context.Background()); err != nil {
		t.Fatal(err)
	}

	a.Dispose()
	a.Dispose()
	if got := det.disposals(); got != 1 {
		t.Errorf("detector disposed %d times, want 1", got)
	}
	if a.Ready() {
		t.Error("Ready() after Dispose")
	}
	if objs := a.Detect(&fakeSurface{}); objs != nil {
		t.Errorf("Detect after Dispose = %v, want nil", objs)
	}
	if err := a.Init(context.Background()); !errors.Is(err, ErrDisposed) {
		t.Errorf("Init after Dispose = %v, want ErrDisposed", err)
	}
}

func TestDetectorAdapterInstallAfterDispose(t *testing.T) {
	a := NewDetectorAdapter(nil, "")
	a.Dispose()

	late := &fakeDetector{initOK: true}
	if a.Install(late, true) {
		t.Error("Install accepted a detector after Dispose")
	}
	if got := late.disposals(); got != 1 {
		t.Errorf("late detector disposed %d times, want 1", got)
	}
}

func TestDetectorAdapterDetect(t *testing.T) {
	det := &fakeDetector{initOK: true, objects: []DetectedObject{{Rect: Rectangle{Width: 5, Height: 5}}}}
	a := NewDetectorAdapter(factoryFor(det), "")

	if objs := a.Detect(&fakeSurface{}); objs != nil {
		t.Error("Detect before Init returned objects")
	}
	if err := a.Init(context.Background()); err != nil {
		t.Fatal(err)
	}
	if objs := a.Detect(&fakeSurface{}); len(objs) != 1 {
		t.Errorf("Detect() returned %d objects, want 1", len(objs))
	}
}
