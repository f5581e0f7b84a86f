package logging

import "testing"

func TestNewProgressSamplerDefaults(t *testing.T) {
	for _, size := range []float64{0, -1} {
		s := NewProgressSampler(size)
		if s.bucketSize != 5 {
			t.Errorf("bucketSize = %v, want 5", s.bucketSize)
		}
		if s.lastBucket != -1 {
			t.Errorf("lastBucket = %d, want -1", s.lastBucket)
		}
	}
}

func TestProgressSamplerNil(t *testing.T) {
	var s *ProgressSampler
	if !s.ShouldLog(50, "bundling") {
		t.Error("ShouldLog on nil sampler should always return true")
	}
	s.Reset() // should not panic
}

func TestProgressSamplerStageChange(t *testing.T) {
	s := NewProgressSampler(5)

	if !s.ShouldLog(0, "bundling") {
		t.Error("first stage should log")
	}
	if s.ShouldLog(0, "bundling") {
		t.Error("same stage and bucket should not log again")
	}
	if !s.ShouldLog(0, "rendering") {
		t.Error("stage change should log")
	}
}

func TestProgressSamplerBuckets(t *testing.T) {
	s := NewProgressSampler(5)

	if !s.ShouldLog(0, "rendering") {
		t.Error("initial event should log")
	}
	if s.ShouldLog(3, "rendering") {
		t.Error("same bucket should not log")
	}
	if !s.ShouldLog(7, "rendering") {
		t.Error("crossing bucket boundary should log")
	}
	if !s.ShouldLog(100, "rendering") {
		t.Error("completion should log")
	}
	if s.ShouldLog(100, "rendering") {
		t.Error("repeated completion should not log")
	}
}

func TestProgressSamplerReset(t *testing.T) {
	s := NewProgressSampler(5)
	s.ShouldLog(50, "rendering")
	s.Reset()
	if !s.ShouldLog(50, "rendering") {
		t.Error("reset should allow the same event again")
	}
}
