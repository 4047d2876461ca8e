package gpu

import (
	"fmt"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
)

func TestFindMemoryType(t *testing.T) {
	props := MemoryProperties{Types: []MemoryType{
		{PropertyFlags: MemoryPropertyDeviceLocal},
		{PropertyFlags: MemoryPropertyHostVisible | MemoryPropertyHostCoherent},
		{PropertyFlags: MemoryPropertyDeviceLocal | MemoryPropertyHostVisible | MemoryPropertyHostCoherent},
		{PropertyFlags: MemoryPropertyHostVisible | MemoryPropertyHostCoherent | MemoryPropertyHostCached},
	}}

	for idx, tc := range []struct {
		bits  uint32
		flags MemoryPropertyFlags
		index uint32
	}{
		{0b1111, MemoryPropertyDeviceLocal, 0},
		// types 1, 2 and 3 all qualify, the lowest wins
		{0b1111, MemoryPropertyHostVisible | MemoryPropertyHostCoherent, 1},
		{0b1100, MemoryPropertyHostVisible, 2},
		{0b1010, MemoryPropertyHostVisible | MemoryPropertyHostCached, 3},
		{0b0100, MemoryPropertyDeviceLocal | MemoryPropertyHostVisible, 2},
		{0b1111, 0, 0},
	} {
		t.Run(fmt.Sprintf("%d/%#b/%#x", idx, tc.bits, tc.flags), func(t *testing.T) {
			index, err := FindMemoryType(props, tc.bits, tc.flags)
			require.NoError(t, err)
			require.Equal(t, tc.index, index)
		})
	}
}

func TestFindMemoryTypeNone(t *testing.T) {
	props := MemoryProperties{Types: []MemoryType{
		{PropertyFlags: MemoryPropertyDeviceLocal},
		{PropertyFlags: MemoryPropertyHostVisible},
	}}

	for idx, tc := range []struct {
		bits  uint32
		flags MemoryPropertyFlags
	}{
		{0b01, MemoryPropertyHostVisible},
		{0b00, 0},
		{0b11, MemoryPropertyHostCached},
		// bits beyond the table never match
		{0b100, 0},
	} {
		t.Run(fmt.Sprintf("%d/%#b/%#x", idx, tc.bits, tc.flags), func(t *testing.T) {
			_, err := FindMemoryType(props, tc.bits, tc.flags)
			require.Error(t, err)
			require.True(t, errors.Is(err, ErrNoMemoryType))
		})
	}
}

func TestResultClassification(t *testing.T) {
	for _, tc := range []struct {
		r            Result
		isErr, stale bool
	}{
		{Success, false, false},
		{Timeout, false, false},
		{Suboptimal, false, true},
		{ErrorOutOfDate, true, true},
		{ErrorDeviceLost, true, false},
	} {
		t.Run(tc.r.String(), func(t *testing.T) {
			require.Equal(t, tc.isErr, tc.r.IsError())
			require.Equal(t, tc.stale, tc.r.Stale())
		})
	}
}
