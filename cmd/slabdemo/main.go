// Command slabdemo exercises the slab pool the way the reference design's
// own test program does: four worker goroutines each allocate a handful
// of differently sized blocks from a private thread cache, print their
// local stats, release back to the global pool, and the main goroutine
// reuses the global pool once every worker has finished.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"net/http"
	"runtime"
	"sync"
	"time"
	"unsafe"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"golang.org/x/net/netutil"

	"slabpool/global"
	"slabpool/internal/distlock"
	"slabpool/internal/obslog"
	"slabpool/slab"
	"slabpool/threadcache"
)

func main() {
	httpAddr := flag.String("http", "", "if set, serve live stats as JSON on this address (e.g. :8080)")
	lockAddr := flag.String("lock-addr", "", "if set, a Redis address used to serialize this demo run against concurrent instances")
	workers := flag.Int("workers", 4, "number of worker goroutines")
	flag.Parse()

	if *lockAddr != "" {
		release := acquireStartupLock(*lockAddr)
		defer release()
	}

	if *httpAddr != "" {
		stop := serveStats(*httpAddr)
		defer stop()
	}

	obslog.Printf("Memory Manager Test Start")

	var wg sync.WaitGroup
	for i := 0; i < *workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			workerTask(id)
		}(i)
	}
	wg.Wait()

	obslog.PrintStats("Global Memory Pool Final Stats", global.Default().Stats())

	// main goroutine reuses the global pool directly, without its own cache
	ptr := global.Default().Allocate(64)
	obslog.Printf("Main goroutine allocated (reuse global pool): %p", ptr)
	global.Default().Deallocate(ptr)

	obslog.PrintStats("Global Memory Pool After Main Goroutine", global.Default().Stats())

	obslog.Printf("Memory Manager Test End")
}

// workerTask mirrors the reference design's threadTask: allocate a mix of
// pooled and oversize requests from a private cache, print what was
// allocated, deallocate everything, print local stats, and release the
// cache's leftovers to the global pool before returning.
func workerTask(id int) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	obslog.Printf("Worker %d started", id)

	cache := threadcache.New()
	defer cache.Release()

	sizes := []int{64, 1024, 4096, 15, 0}
	ptrs := make([]unsafe.Pointer, len(sizes))
	for i, sz := range sizes {
		ptrs[i] = cache.Allocate(sz)
	}
	obslog.Printf("Worker %d allocated: %v for sizes %v", id, ptrs, sizes)

	for _, ptr := range ptrs {
		cache.Deallocate(ptr)
	}

	obslog.PrintStats(fmt.Sprintf("Worker %d Local Stats", id), cache.Stats())
	obslog.Printf("Worker %d finished", id)
}

// serveStats exposes the global pool's current stats as JSON on addr,
// bounding concurrent connections the way golang.org/x/net/netutil's
// LimitListener is meant to. The returned stop function shuts the server
// down.
func serveStats(addr string) func() {
	validate := validator.New()

	// one cache shared by every request the HTTP server handles, standing
	// in for "this server's own worker" the way a single demo thread
	// would own one cache in the reference design.
	demo := struct {
		mu    sync.Mutex
		cache *threadcache.Cache
	}{cache: threadcache.New()}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/stats", func(c *gin.Context) {
		var query struct {
			UserSize int `form:"user_size" validate:"omitempty,min=0,max=65536"`
		}
		if err := c.ShouldBindQuery(&query); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := validate.Struct(query); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		if c.Query("user_size") != "" {
			demo.mu.Lock()
			ptr := demo.cache.Allocate(query.UserSize)
			demo.cache.Deallocate(ptr)
			localStats := demo.cache.Stats()
			demo.mu.Unlock()

			c.JSON(http.StatusOK, gin.H{
				"global_stats": statsPayload(global.Default().Stats()),
				"local_stats":  statsPayload(localStats),
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{"global_stats": statsPayload(global.Default().Stats())})
	})

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		obslog.Printf("stats server: listen %s: %v", addr, err)
		return func() {}
	}
	limited := netutil.LimitListener(ln, 64)

	srv := &http.Server{Handler: router}
	go func() {
		if err := srv.Serve(limited); err != nil && err != http.ErrServerClosed {
			obslog.Printf("stats server: %v", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
		demo.cache.Release()
	}
}

type statsJSON struct {
	AllocCount   uint64 `json:"allocate_count"`
	DeallocCount uint64 `json:"deallocate_count"`
	UsedBytes    uint64 `json:"used_memory_bytes"`
	FreeBytes    uint64 `json:"free_memory_bytes"`
	HostBytes    uint64 `json:"total_allocated_bytes"`
}

func statsPayload(s slab.Stats) statsJSON {
	return statsJSON{
		AllocCount:   s.AllocCount,
		DeallocCount: s.DeallocCount,
		UsedBytes:    s.UsedBytes,
		FreeBytes:    s.FreeBytes,
		HostBytes:    s.HostBytes,
	}
}

// acquireStartupLock serializes this demo's startup against any other
// instance pointed at the same Redis address, purely so their stats
// output doesn't interleave on a shared terminal. It never guards the
// allocator itself, which is process-local by design.
func acquireStartupLock(addr string) func() {
	client := redis.NewClient(&redis.Options{Addr: addr})
	mutex, err := distlock.New(client, "slabdemo:startup", distlock.WithExpiresTime(10*time.Second))
	if err != nil {
		obslog.Printf("startup lock: %v", err)
		return func() {}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := mutex.Lock(ctx); err != nil {
		obslog.Printf("startup lock: %v", err)
		return func() {}
	}

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = mutex.Unlock(ctx)
		_ = client.Close()
	}
}
