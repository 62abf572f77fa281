package nvm3_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zollek/nvm3/nvm3"
	"github.com/zollek/nvm3/nvm3errors"
)

func TestEncodeImage_EmptyRoundTrip(t *testing.T) {
	buf, err := nvm3.EncodeImage(nil, nil, nvm3.DefaultEncodeOptions())
	require.NoError(t, err)
	require.Len(t, buf, nvm3.ApplicationRegionSize+nvm3.ProtocolRegionSize)

	img, err := nvm3.ParseImage(buf, false)
	require.NoError(t, err)
	require.Equal(t, 0, img.ApplicationObjects.Len())
	require.Equal(t, 0, img.ProtocolObjects.Len())
	require.Empty(t, img.Diagnostics)
}

func TestEncodeImage_EveryPageStartsAtEraseCountZero(t *testing.T) {
	appObjects := buildLiveObjects(map[uint32]nvm3.Object{
		1: {Key: 1, Type: nvm3.TypeDataSmall, Payload: []byte("v")},
	})
	protoObjects := buildLiveObjects(map[uint32]nvm3.Object{
		2: {Key: 2, Type: nvm3.TypeDataSmall, Payload: []byte("w")},
	})

	buf, err := nvm3.EncodeImage(appObjects, protoObjects, nvm3.DefaultEncodeOptions())
	require.NoError(t, err)

	img, err := nvm3.ParseImage(buf, false)
	require.NoError(t, err)

	require.NotEmpty(t, img.ApplicationPages)
	require.NotEmpty(t, img.ProtocolPages)
	for _, page := range img.ApplicationPages {
		require.Equal(t, uint32(0), page.Header.EraseCount)
	}
	for _, page := range img.ProtocolPages {
		require.Equal(t, uint32(0), page.Header.EraseCount)
	}
}

func TestEncodeImage_ParseImage_RoundTrip_SmallAndCounterObjects(t *testing.T) {
	appObjects := buildLiveObjects(map[uint32]nvm3.Object{
		1: {Key: 1, Type: nvm3.TypeDataSmall, Payload: []byte("config")},
		2: {Key: 2, Type: nvm3.TypeCounterSmall, Payload: []byte{0, 0, 0, 7}},
	})
	protoObjects := buildLiveObjects(map[uint32]nvm3.Object{
		100: {Key: 100, Type: nvm3.TypeDataSmall, Payload: []byte("route-table")},
	})

	buf, err := nvm3.EncodeImage(appObjects, protoObjects, nvm3.DefaultEncodeOptions())
	require.NoError(t, err)

	img, err := nvm3.ParseImage(buf, false)
	require.NoError(t, err)

	v, ok := img.ApplicationObjects.Get(1)
	require.True(t, ok)
	require.Equal(t, []byte("config"), v.Payload)

	v, ok = img.ApplicationObjects.Get(2)
	require.True(t, ok)
	require.Equal(t, []byte{0, 0, 0, 7}, v.Payload)

	v, ok = img.ProtocolObjects.Get(100)
	require.True(t, ok)
	require.Equal(t, []byte("route-table"), v.Payload)
}

func TestEncodeImage_ParseImage_RoundTrip_FragmentsLargeObject(t *testing.T) {
	options := nvm3.DefaultEncodeOptions()
	options.PageSize = nvm3.MinPageSize

	payload := make([]byte, 3*nvm3.MinPageSize)
	for i := range payload {
		payload[i] = byte(i % 251)
	}
	appObjects := buildLiveObjects(map[uint32]nvm3.Object{
		5: {Key: 5, Type: nvm3.TypeDataLarge, Payload: payload},
	})

	buf, err := nvm3.EncodeImage(appObjects, nil, options)
	require.NoError(t, err)

	img, err := nvm3.ParseImage(buf, false)
	require.NoError(t, err)
	v, ok := img.ApplicationObjects.Get(5)
	require.True(t, ok)
	require.Equal(t, payload, v.Payload)
	require.Empty(t, img.Diagnostics)
}

func TestEncodeImage_InvalidPageSize(t *testing.T) {
	options := nvm3.DefaultEncodeOptions()
	options.PageSize = 700 // not a power-of-two multiple of the minimum

	_, err := nvm3.EncodeImage(nil, nil, options)
	_, ok := nvm3errors.As(err, nvm3errors.KindInvalidOption)
	require.True(t, ok)
}

func TestEncodeImage_PageSizeMustBePowerOfTwoMultiple(t *testing.T) {
	options := nvm3.DefaultEncodeOptions()
	options.PageSize = 512 * 3 // not a power-of-two multiple of the minimum page size

	_, err := nvm3.EncodeImage(nil, nil, options)
	_, ok := nvm3errors.As(err, nvm3errors.KindInvalidOption)
	require.True(t, ok)
}

func TestEncodeImage_InsufficientSpace(t *testing.T) {
	options := nvm3.DefaultEncodeOptions()
	options.PageSize = nvm3.MinPageSize

	objects := map[uint32]nvm3.Object{}
	for i := uint32(0); i < 2000; i++ {
		objects[i] = nvm3.Object{Key: i, Type: nvm3.TypeDataSmall, Payload: []byte("0123456789abcdef0123456789abcdef")}
	}

	_, err := nvm3.EncodeImage(buildLiveObjects(objects), nil, options)
	_, ok := nvm3errors.As(err, nvm3errors.KindInsufficientSpace)
	require.True(t, ok)
}

func buildLiveObjects(objects map[uint32]nvm3.Object) *nvm3.LiveObjects {
	m := nvm3.NewLiveObjects()
	for key, obj := range objects {
		m.Set(key, obj)
	}
	return m
}
