package nvm3_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zollek/nvm3/nvm3"
)

func buildImage(t *testing.T, appPages, protoPages [][]nvm3.RawObject, pageSize int) []byte {
	t.Helper()
	var buf []byte
	for i, objects := range appPages {
		buf = append(buf, buildPage(t, uint32(i), pageSize, objects)...)
	}
	for len(buf) < nvm3.ApplicationRegionSize {
		buf = append(buf, buildPage(t, 0, pageSize, nil)...)
	}
	for i, objects := range protoPages {
		buf = append(buf, buildPage(t, uint32(i), pageSize, objects)...)
	}
	for len(buf) < nvm3.ApplicationRegionSize+nvm3.ProtocolRegionSize {
		buf = append(buf, buildPage(t, 0, pageSize, nil)...)
	}
	return buf
}

func TestParseImage_PartitionsByRegion(t *testing.T) {
	appObj := []nvm3.RawObject{{Key: 1, Type: nvm3.TypeDataSmall, Payload: []byte("app")}}
	protoObj := []nvm3.RawObject{{Key: 1, Type: nvm3.TypeDataSmall, Payload: []byte("proto")}}

	buf := buildImage(t,
		[][]nvm3.RawObject{appObj},
		[][]nvm3.RawObject{protoObj},
		nvm3.MinPageSize)

	img, err := nvm3.ParseImage(buf, false)
	require.NoError(t, err)

	v, ok := img.ApplicationObjects.Get(1)
	require.True(t, ok)
	require.Equal(t, []byte("app"), v.Payload)

	v, ok = img.ProtocolObjects.Get(1)
	require.True(t, ok)
	require.Equal(t, []byte("proto"), v.Payload)
}

func TestParseImage_RingOrderByEraseCount(t *testing.T) {
	older := []nvm3.RawObject{{Key: 1, Type: nvm3.TypeDataSmall, Payload: []byte("old")}}
	newer := []nvm3.RawObject{{Key: 1, Type: nvm3.TypeDataSmall, Payload: []byte("new")}}

	pageA := buildPage(t, 5, nvm3.MinPageSize, newer)
	pageB := buildPage(t, 2, nvm3.MinPageSize, older)

	var buf []byte
	buf = append(buf, pageA...)
	buf = append(buf, pageB...)
	for len(buf) < nvm3.ApplicationRegionSize {
		buf = append(buf, buildPage(t, 0, nvm3.MinPageSize, nil)...)
	}
	for len(buf) < nvm3.ApplicationRegionSize+nvm3.ProtocolRegionSize {
		buf = append(buf, buildPage(t, 0, nvm3.MinPageSize, nil)...)
	}

	img, err := nvm3.ParseImage(buf, false)
	require.NoError(t, err)

	v, ok := img.ApplicationObjects.Get(1)
	require.True(t, ok)
	// Page B has the lower erase count (2 < 5), so it is replayed first;
	// page A's write of key 1 is the later one and must win.
	require.Equal(t, []byte("new"), v.Payload)
}

func TestParseImage_DeleteSupersedesEarlierWrite(t *testing.T) {
	objects := []nvm3.RawObject{
		{Key: 1, Type: nvm3.TypeDataSmall, Payload: []byte("v1")},
		{Key: 1, Type: nvm3.TypeDeleted},
	}
	buf := buildImage(t, [][]nvm3.RawObject{objects}, nil, nvm3.MinPageSize)

	img, err := nvm3.ParseImage(buf, false)
	require.NoError(t, err)
	require.False(t, img.ApplicationObjects.Has(1))
}

func TestParseImage_FragmentedObjectReassembledAcrossPages(t *testing.T) {
	payload := make([]byte, 300)
	for i := range payload {
		payload[i] = byte(i)
	}
	large := nvm3.RawObject{Key: 9, Type: nvm3.TypeDataLarge, Payload: payload}
	fragments, err := nvm3.FragmentLargeObject(large, 200, 400)
	require.NoError(t, err)
	require.True(t, len(fragments) >= 2)

	buf := buildImage(t, [][]nvm3.RawObject{{fragments[0]}, fragments[1:]}, nil, nvm3.MinPageSize)

	img, err := nvm3.ParseImage(buf, false)
	require.NoError(t, err)
	v, ok := img.ApplicationObjects.Get(9)
	require.True(t, ok)
	require.Equal(t, payload, v.Payload)
}

func TestParseImage_OrphanedFragmentIsNonFatal(t *testing.T) {
	orphan := nvm3.RawObject{Key: 3, Type: nvm3.TypeLink, Fragment: nvm3.FragmentLast, Payload: []byte("x")}
	buf := buildImage(t, [][]nvm3.RawObject{{orphan}}, nil, nvm3.MinPageSize)

	img, err := nvm3.ParseImage(buf, false)
	require.NoError(t, err)
	require.False(t, img.ApplicationObjects.Has(3))
	require.NotEmpty(t, img.Diagnostics)
}
