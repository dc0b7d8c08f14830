package gpu

import "testing"

func TestUniformChangeTrackerFirstWriteAlwaysChanges(t *testing.T) {
	tr := NewUniformChangeTracker()
	if !tr.HasChanged("blit", []byte{1, 2, 3, 4}) {
		t.Error("first payload should report changed")
	}
}

func TestUniformChangeTrackerSkipsIdenticalPayload(t *testing.T) {
	tr := NewUniformChangeTracker()
	payload := []byte{1, 2, 3, 4}

	tr.HasChanged("blit", payload)
	if tr.HasChanged("blit", payload) {
		t.Error("identical payload should not report changed")
	}
	if !tr.HasChanged("blit", []byte{1, 2, 3, 5}) {
		t.Error("modified payload should report changed")
	}
	if tr.HasChanged("blit", []byte{1, 2, 3, 5}) {
		t.Error("repeated modified payload should not report changed")
	}
}

func TestUniformChangeTrackerNamesAreIndependent(t *testing.T) {
	tr := NewUniformChangeTracker()
	payload := []byte{9, 9, 9, 9}

	tr.HasChanged("a", payload)
	if !tr.HasChanged("b", payload) {
		t.Error("same payload under a different name should report changed")
	}
}

func TestUniformChangeTrackerInvalidate(t *testing.T) {
	tr := NewUniformChangeTracker()
	payload := []byte{1, 2, 3, 4}

	tr.HasChanged("blit", payload)
	tr.Invalidate("blit")
	if !tr.HasChanged("blit", payload) {
		t.Error("payload after Invalidate should report changed")
	}

	tr.HasChanged("other", payload)
	tr.InvalidateAll()
	if !tr.HasChanged("blit", payload) || !tr.HasChanged("other", payload) {
		t.Error("payloads after InvalidateAll should report changed")
	}
}
