package core

import "testing"

func TestMetricsAverage(t *testing.T) {
	m := NewMetrics()
	for i := 0; i < int(AVG_COUNT); i++ {
		m.Update(0.010)
	}
	if got := m.FrameTime(); got < 9.99 || got > 10.01 {
		t.Fatalf("average frame time = %f, want 10ms", got)
	}
}

func TestMetricsFPS(t *testing.T) {
	m := NewMetrics()
	// 120 frames of 10ms cross the one second mark once.
	for i := 0; i < 120; i++ {
		m.Update(0.010)
	}
	fps, _ := m.Frame()
	if fps < 99 || fps > 101 {
		t.Fatalf("fps = %f, want about 100", fps)
	}
}
