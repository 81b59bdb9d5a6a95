package isoheap_test

import (
	"errors"
	"fmt"
	"log"
	"log/slog"

	isoheap "github.com/pichillilorenzo/flutter-inappwebview-sub022"
)

type vec3 struct {
	X, Y, Z float32
}

type element struct {
	Parent *element
}

func noEnv(string) (string, bool) { return "", false }

// Example_typed demonstrates the typed allocation helpers.
func Example_typed() {
	h, err := isoheap.New(
		isoheap.WithSeed(1),                  // Reproducible bucket assignment
		isoheap.WithSanitizerFallback(false), // Keep isolation under -race
		isoheap.WithLookupEnv(noEnv),
	)
	if err != nil {
		log.Fatal(err)
	}
	defer h.Close()

	site, err := isoheap.Site[vec3](h)
	if err != nil {
		log.Fatal(err)
	}

	v, err := isoheap.Alloc[vec3](h, site)
	if err != nil {
		log.Fatal(err)
	}
	v.X, v.Y, v.Z = 1, 2, 3
	fmt.Println(*v)

	if err := isoheap.Free(h, v); err != nil {
		log.Fatal(err)
	}
	// Output: {1 2 3}
}

// Example_callSite demonstrates explicit call site registration and the
// bucket a type identity resolves to.
func Example_callSite() {
	h, err := isoheap.New(
		isoheap.WithSeed(2),
		isoheap.WithBucketCounts(5, 3),
		isoheap.WithSanitizerFallback(false),
		isoheap.WithLookupEnv(noEnv),
	)
	if err != nil {
		log.Fatal(err)
	}
	defer h.Close()

	site, err := h.RegisterCallSite("Foo", 24, 8)
	if err != nil {
		log.Fatal(err)
	}
	p, err := h.Allocate(site, 24)
	if err != nil {
		log.Fatal(err)
	}
	defer h.Deallocate(p)

	b, err := h.BucketFor(site)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(b.Name())
	// Output: isoheap_32x16_b4
}

// Example_pointerTypes shows that types holding Go pointers are rejected.
func Example_pointerTypes() {
	h, err := isoheap.New(isoheap.WithLookupEnv(noEnv))
	if err != nil {
		log.Fatal(err)
	}
	defer h.Close()

	_, err = isoheap.Site[element](h)
	fmt.Println(errors.Is(err, isoheap.ErrPointerType))
	// Output: true
}

// Example_logging demonstrates structured logging of heap decisions.
func Example_logging() {
	h, err := isoheap.New(
		isoheap.WithLogger(isoheap.NewTextLogger(slog.LevelInfo)),
		isoheap.WithLookupEnv(noEnv),
	)
	if err != nil {
		log.Fatal(err)
	}
	defer h.Close()

	fmt.Println(h.FallbackMode() != isoheap.Undecided)
	// Output: true
}
