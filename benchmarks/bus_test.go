package benchmarks

import (
	"context"
	"testing"

	"github.com/randalmurphal/causal/pkg/causal/bus"
	"github.com/randalmurphal/causal/pkg/causal/event"
)

// drain consumes a subscription until it closes.
func drain(sub *bus.Subscription) {
	go func() {
		for range sub.C() {
		}
	}()
}

func benchmarkEmit(b *testing.B, subscribers int) {
	bs := bus.New(bus.DefaultConfig)
	defer bs.Close()

	for i := 0; i < subscribers; i++ {
		drain(bs.Subscribe())
	}

	evt := event.New(event.KindCustom, "bench")
	ctx := context.Background()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = bs.Emit(ctx, evt)
	}
}

// BenchmarkEmit_NoSubscribers measures history append alone.
func BenchmarkEmit_NoSubscribers(b *testing.B) { benchmarkEmit(b, 0) }

// BenchmarkEmit_1Subscriber measures a single fan-out.
func BenchmarkEmit_1Subscriber(b *testing.B) { benchmarkEmit(b, 1) }

// BenchmarkEmit_10Subscribers measures fan-out to 10 consumers.
func BenchmarkEmit_10Subscribers(b *testing.B) { benchmarkEmit(b, 10) }

// BenchmarkEmit_Parallel measures contention on the bus lock.
func BenchmarkEmit_Parallel(b *testing.B) {
	bs := bus.New(bus.DefaultConfig)
	defer bs.Close()
	drain(bs.Subscribe())

	evt := event.New(event.KindCustom, "bench")
	ctx := context.Background()

	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_ = bs.Emit(ctx, evt)
		}
	})
}

// BenchmarkSnapshot measures copying a full history.
func BenchmarkSnapshot(b *testing.B) {
	bs := bus.New(bus.DefaultConfig)
	defer bs.Close()
	ctx := context.Background()
	for i := 0; i < 500; i++ {
		_ = bs.Emit(ctx, event.New(event.KindCustom, "bench"))
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = bs.Snapshot()
	}
}
