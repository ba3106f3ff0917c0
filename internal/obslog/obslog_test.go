package obslog

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"slabpool/slab"
)

func TestFormatStatsContainsAllFields(t *testing.T) {
	stats := slab.Stats{AllocCount: 5, DeallocCount: 3, FreeBytes: 128, UsedBytes: 256, HostBytes: 4096}
	out := FormatStats("Test Stats", stats)

	require.Contains(t, out, "Test Stats:")
	require.Contains(t, out, "Allocate Count: 5")
	require.Contains(t, out, "Deallocate Count: 3")
	require.Contains(t, out, "Used Memory: 256 B")
	require.Contains(t, out, "Free Memory: 128 B")
	require.Contains(t, out, "Total Allocated: 4096 B")
}

func TestSetOutputRedirectsLogger(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stderr)

	Printf("hello %d", 42)
	require.Contains(t, buf.String(), "hello 42")
}

func TestPrintlnRedirectsLogger(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stderr)

	Println("worker", 3, "finished")
	require.Contains(t, buf.String(), "worker 3 finished")
}
