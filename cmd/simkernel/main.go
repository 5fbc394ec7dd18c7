// Command simkernel is the host-side simulation harness named in
// spec.md §8's "host-simulatable build": it drives the same
// memmap -> pmm -> buddy -> proc data flow as cmd/kernel, but over a
// real anonymous mmap arena instead of physical DRAM, so the memory
// substack can be exercised, stress-tested and profiled without a
// RISC-V target.
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"unsafe"

	"github.com/google/pprof/profile"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"

	"rv32kern/internal/addr"
	"rv32kern/internal/buddy"
	"rv32kern/internal/fdt"
	"rv32kern/internal/kconfig"
	"rv32kern/internal/kernerr"
	"rv32kern/internal/klog"
	"rv32kern/internal/memmap"
	"rv32kern/internal/pmm"
	"rv32kern/internal/proc"
)

func main() {
	kernerr.Sink = klog.PutString

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "run":
		err = cmdRun(os.Args[2:])
	case "stress":
		err = cmdStress(os.Args[2:])
	case "diag":
		err = cmdDiag(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: simkernel <run|stress|diag> [flags]")
}

// mmapArena backs a simulated physical region with a real anonymous
// mmap mapping (instead of a make([]byte, …) slice), then arms a
// trailing guard page with unix.Mprotect(PROT_NONE): an allocator bug
// that walks the buddy-managed region off its end faults immediately
// under the host's own page-protection hardware rather than silently
// corrupting whatever Go heap memory happened to follow the slice.
// Returns the region usable by the kernel data flow (excluding the
// guard page) and a cleanup to munmap both.
func mmapArena(usableSize uintptr) (addr.Region, func(), error) {
	total := int(usableSize) + addr.PageSize
	mem, err := unix.Mmap(-1, 0, total, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return addr.Region{}, nil, fmt.Errorf("simkernel: mmap arena: %w", err)
	}

	guard := mem[usableSize:]
	if err := unix.Mprotect(guard, unix.PROT_NONE); err != nil {
		unix.Munmap(mem)
		return addr.Region{}, nil, fmt.Errorf("simkernel: mprotect guard page: %w", err)
	}

	region := addr.Region{Addr: addr.PAddr(uintptr(unsafe.Pointer(&mem[0]))), Size: usableSize}
	cleanup := func() { unix.Munmap(mem) }
	return region, cleanup, nil
}

// cmdRun boots one simulated process over an mmap-backed region,
// retiring the pump to the buddy allocator exactly as cmd/kernel does
// (spec.md §9 open question 2), and reports the outcome.
func cmdRun(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	size := fs.Int("size", 64<<20, "simulated physical memory region size in bytes")
	if err := fs.Parse(args); err != nil {
		return err
	}

	regionSize := addr.RoundupPage(uintptr(*size))
	region, cleanup, err := mmapArena(regionSize)
	if err != nil {
		return err
	}
	defer cleanup()

	reader := fdt.Static{Regions: []addr.Region{region}}
	var kernelReserved addr.Region // nothing to exclude: no kernel image in simulation

	selected, ok := memmap.SelectRegion(reader, kernelReserved)
	if !ok {
		return fmt.Errorf("simkernel: no usable region found")
	}

	var pump pmm.Pump
	pump.Init(selected)

	scratchSize := buddy.RequiredHeap(selected.Size)
	scratchPages := (scratchSize + addr.PageSize - 1) / addr.PageSize
	scratchBase := pump.Allocate(scratchPages)
	scratch := unsafe.Slice((*byte)(scratchBase.AsPointer()), scratchSize)

	buddyRegion := addr.Region{
		Addr: pump.Cursor(),
		Size: uintptr(selected.End().Addr() - pump.Cursor().Addr()),
	}
	allocator := buddy.NewAllocator(buddyRegion, scratch)

	var table proc.Table
	first := table.Create(allocator, allocator.Region(), kernelReserved, 0x1000)

	klog.Printf("simkernel: region=%s bytes buddy=%s pages pid=%d state=%s\n",
		klog.FormatCount(uint64(selected.Size)),
		klog.FormatCount(uint64(buddyRegion.Size/addr.PageSize)),
		first.Pid, first.State.String())
	return nil
}

// cmdStress hammers a single buddy.Allocator with concurrent
// Alloc/Free pairs from an errgroup of goroutines, then checks that no
// block is left allocated. This
// is a deliberately harder test than the kernel itself ever runs
// (spec.md's Non-goals exclude multiprocessor synchronization): it
// exists to confirm Allocator.mu — not single-hart luck — is what
// keeps the free-list/metadata invariants from spec.md §8 consistent.
func cmdStress(args []string) error {
	fs := flag.NewFlagSet("stress", flag.ExitOnError)
	workers := fs.Int("workers", 8, "concurrent goroutines hammering Alloc/Free")
	rounds := fs.Int("rounds", 2000, "alloc/free rounds per worker")
	if err := fs.Parse(args); err != nil {
		return err
	}

	regionPages := uintptr(1) << (kconfig.MaxOrder + 3)
	region := addr.Region{Addr: 0x10000000, Size: regionPages * kconfig.MinBlock}
	scratch := make([]byte, buddy.RequiredHeap(region.Size))
	allocator := buddy.NewAllocator(region, scratch)

	var g errgroup.Group
	for w := 0; w < *workers; w++ {
		seed := int64(w) + 1
		g.Go(func() error {
			rng := rand.New(rand.NewSource(seed))
			for i := 0; i < *rounds; i++ {
				order := uint8(rng.Intn(kconfig.MaxOrder + 1))
				size := uintptr(kconfig.MinBlock) << order
				ptr := allocator.Alloc(size)
				if ptr == nil {
					continue
				}
				allocator.Free(ptr)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if live := allocator.LiveBlocks(); len(live) != 0 {
		return fmt.Errorf("simkernel: stress left %d blocks allocated, invariant broken", len(live))
	}
	klog.Printf("simkernel: stress ok, %d workers x %d rounds, no leaks\n", *workers, *rounds)
	return nil
}

// cmdDiag populates an allocator with a pseudo-random mix of live
// allocations and dumps them as a pprof-format heap profile: one
// sample per outstanding block, its order carried as a label and its
// size as the sample value, so fragmentation can be inspected with
// `pprof -http=:0 <file>` the same way the teacher links google/pprof
// for its own profiling support.
func cmdDiag(args []string) error {
	fs := flag.NewFlagSet("diag", flag.ExitOnError)
	out := fs.String("out", "buddy.pprof", "output path for the pprof-format heap profile")
	liveCount := fs.Int("live", 64, "number of allocations to leave outstanding before dumping")
	if err := fs.Parse(args); err != nil {
		return err
	}

	regionPages := uintptr(1) << (kconfig.MaxOrder + 4)
	region := addr.Region{Addr: 0x20000000, Size: regionPages * kconfig.MinBlock}
	scratch := make([]byte, buddy.RequiredHeap(region.Size))
	allocator := buddy.NewAllocator(region, scratch)

	rng := rand.New(rand.NewSource(1))
	for i := 0; i < *liveCount; i++ {
		order := uint8(rng.Intn(kconfig.MaxOrder + 1))
		if allocator.Alloc(uintptr(kconfig.MinBlock)<<order) == nil {
			break
		}
	}

	blocks := allocator.LiveBlocks()
	p := &profile.Profile{
		SampleType: []*profile.ValueType{
			{Type: "blocks", Unit: "count"},
			{Type: "space", Unit: "bytes"},
		},
		PeriodType: &profile.ValueType{Type: "space", Unit: "bytes"},
		Period:     1,
	}
	for _, b := range blocks {
		p.Sample = append(p.Sample, &profile.Sample{
			Value: []int64{1, int64(kconfig.MinBlock) << b.Order},
			Label: map[string][]string{
				"addr":  {b.Addr.String()},
				"order": {fmt.Sprint(b.Order)},
			},
		})
	}
	if err := p.CheckValid(); err != nil {
		return fmt.Errorf("simkernel: invalid profile: %w", err)
	}

	f, err := os.Create(*out)
	if err != nil {
		return fmt.Errorf("simkernel: %w", err)
	}
	defer f.Close()
	if err := p.Write(f); err != nil {
		return fmt.Errorf("simkernel: write profile: %w", err)
	}

	klog.Printf("simkernel: wrote %s-sample heap profile to %s\n", klog.FormatCount(uint64(len(blocks))), *out)
	return nil
}
