package service

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"mailsweep/internal/platform/logger"
	kit "mailsweep/internal/platform/testkit"
	dom "mailsweep/internal/services/verifier/domain"
)

func fill(b *Batcher, n int) {
	for _, e := range emails("b", "batch.io", n) {
		b.Enqueue(dom.Outcome{Email: e, Result: dom.ResultPass})
	}
}

func TestBatcher_FlushesInCapSizedSlices(t *testing.T) {
	sink := &fakeSink{}
	b := NewBatcher(sink, nil, 500, "run-1", logger.Nop())
	fill(b, 1200)

	var marks []int
	for {
		res, ok := b.Flush(context.Background())
		if !ok {
			break
		}
		if res.Err != nil {
			t.Fatalf("flush error: %v", res.Err)
		}
		marks = append(marks, res.Watermark)
	}
	if !reflect.DeepEqual(marks, []int{500, 1000, 1200}) {
		t.Fatalf("watermarks = %v", marks)
	}
	if !reflect.DeepEqual(sink.Sizes(), []int{500, 500, 200}) {
		t.Fatalf("batch sizes = %v", sink.Sizes())
	}
	mustNotContainDup(t, sink.All())
	if b.Pending() != 0 || b.Len() != 1200 {
		t.Fatalf("Pending=%d Len=%d", b.Pending(), b.Len())
	}
}

func TestBatcher_Due(t *testing.T) {
	b := NewBatcher(&fakeSink{}, nil, 3, "run-1", logger.Nop())
	if b.Due(true) || b.Due(false) {
		t.Fatalf("nothing pending should never be due")
	}
	fill(b, 2)
	if b.Due(true) {
		t.Fatalf("partial batch should wait while running")
	}
	if !b.Due(false) {
		t.Fatalf("partial batch should flush once draining")
	}
	fill(b, 1)
	if !b.Due(true) {
		t.Fatalf("full batch should be due while running")
	}
}

func TestBatcher_NoOverlappingFlushes(t *testing.T) {
	sink := &fakeSink{gate: make(chan struct{})}
	b := NewBatcher(sink, nil, 10, "run-1", logger.Nop())
	fill(b, 25)

	done := make(chan FlushResult, 1)
	go func() {
		res, _ := b.Flush(context.Background())
		done <- res
	}()
	kit.Eventually(t, time.Second, func() bool { return sink.active.Load() == 1 }, "first flush in sink")

	if !b.Flushing() {
		t.Fatalf("Flushing should report the in-progress write")
	}
	if _, ok := b.Flush(context.Background()); ok {
		t.Fatalf("a second flush must not start while one is in progress")
	}
	close(sink.gate)
	if res := <-done; res.Watermark != 10 {
		t.Fatalf("first flush watermark = %d", res.Watermark)
	}
	if _, ok := b.Flush(context.Background()); !ok {
		t.Fatalf("flush after the first completes should run")
	}
	if sink.overlap.Load() {
		t.Fatalf("sink saw overlapping writes")
	}
	if b.Watermark() != 20 {
		t.Fatalf("Watermark = %d, want 20", b.Watermark())
	}
}

func TestBatcher_FailedWriteKeepsWatermark(t *testing.T) {
	log, buf := kit.Logger()
	sink := &fakeSink{err: errors.New("connection reset")}
	audit := &fakeAudit{}
	b := NewBatcher(sink, audit, 4, "run-1", log)
	fill(b, 6)

	res, ok := b.Flush(context.Background())
	if !ok || res.Err == nil {
		t.Fatalf("expected failed flush, got %+v ok=%v", res, ok)
	}
	if b.Watermark() != 4 || b.Pending() != 2 {
		t.Fatalf("watermark rolled back: wm=%d pending=%d", b.Watermark(), b.Pending())
	}
	if audit.rows != 0 {
		t.Fatalf("audit should not see a failed batch")
	}
	kit.MustContain(t, buf.String(), "store write failed")

	sink.mu.Lock()
	sink.err = nil
	sink.mu.Unlock()
	res, _ = b.Flush(context.Background())
	if res.Sent != 2 || res.Watermark != 6 || res.Matched != 2 {
		t.Fatalf("retry flush = %+v", res)
	}
	if audit.rows != 2 {
		t.Fatalf("audit rows = %d, want 2", audit.rows)
	}
	kit.MustContain(t, buf.String(), `"message":"batch saved"`)
}

func TestBatcher_DropsOutcomesWithoutEmail(t *testing.T) {
	log, buf := kit.Logger()
	sink := &fakeSink{}
	b := NewBatcher(sink, nil, 10, "run-1", log)
	b.Enqueue(dom.Outcome{Result: dom.ResultPass})
	b.Enqueue(dom.Outcome{Email: "a@x.io", Result: dom.ResultFail})

	res, ok := b.Flush(context.Background())
	if !ok || res.Sent != 1 || res.Watermark != 2 {
		t.Fatalf("Flush = %+v ok=%v", res, ok)
	}
	kit.MustContain(t, buf.String(), "outcome without email dropped")

	b.Enqueue(dom.Outcome{})
	res, ok = b.Flush(context.Background())
	if !ok || res.Sent != 0 || res.Watermark != 3 {
		t.Fatalf("all-dropped flush = %+v ok=%v", res, ok)
	}
	if got := len(sink.Sizes()); got != 1 {
		t.Fatalf("empty slice should not reach the sink, writes = %d", got)
	}
}

func TestBatcher_AuditFailureIsOnlyLogged(t *testing.T) {
	log, buf := kit.Logger()
	b := NewBatcher(&fakeSink{}, &fakeAudit{err: errors.New("ch down")}, 10, "run-1", log)
	fill(b, 3)
	res, _ := b.Flush(context.Background())
	if res.Err != nil || res.Matched != 3 {
		t.Fatalf("audit failure leaked into flush result: %+v", res)
	}
	kit.MustContain(t, buf.String(), "audit sink write failed")
}
