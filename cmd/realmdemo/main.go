// Command realmdemo wires a CellRealm, a Blueprint, and
// hooks.UseTimeout together and logs the resulting value/release
// sequence. It is a worked example, not a consumer of the library in
// any deeper sense.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/yukikurage/signiq/blueprint"
	"github.com/yukikurage/signiq/container"
	"github.com/yukikurage/signiq/hooks"
	"github.com/yukikurage/signiq/resource"
)

// every tick a Blueprint body re-reads the counter and waits one more
// second before publishing, exercising Use on both a CellRealm (via
// hooks.UseCell) and an EffectRealm (via hooks.UseTimeout) in the same
// replay chain.
func body(ctx context.Context, counter *container.CellRealm[int]) func(context.Context) int {
	return func(ctx context.Context) int {
		n := hooks.UseCell(ctx, counter)
		hooks.UseTimeout(ctx, time.Second)
		return n
	}
}

func main() {
	log.Printf("realmdemo: starting")

	counter := container.NewCellRealm(0)

	res := blueprint.ToRealm(body(context.Background(), counter)).Instantiate(
		context.Background(),
		func(ctx context.Context, v int) resource.Resource {
			log.Printf("realmdemo: value %d", v)
			return resource.Func(func(ctx context.Context) error {
				log.Printf("realmdemo: released %d", v)
				return nil
			})
		},
	)

	stop := make(chan struct{})
	go func() {
		defer close(stop)
		for i := 0; i < 3; i++ {
			time.Sleep(1500 * time.Millisecond)
			counter.Modify(func(n int) int { return n + 1 })
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	select {
	case <-sig:
		log.Printf("realmdemo: interrupted")
	case <-stop:
		log.Printf("realmdemo: demo sequence finished")
	case <-time.After(10 * time.Second):
		log.Printf("realmdemo: timed out waiting for the demo sequence")
	}

	if err := res.Release(context.Background()); err != nil {
		log.Printf("realmdemo: release error: %v", err)
	}
	if err := counter.Release(context.Background()); err != nil {
		log.Printf("realmdemo: counter release error: %v", err)
	}
	log.Printf("realmdemo: goodbye")
}
