package bufpool_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zollek/nvm3/internal/bufpool"
)

func TestPagePool_GetIsErasedAndRightSize(t *testing.T) {
	p := bufpool.NewPagePool(2048)
	buf := p.Get()
	require.Len(t, buf, 2048)
	for _, b := range buf {
		require.Equal(t, byte(0xFF), b)
	}
}

func TestPagePool_PutReusesBuffer(t *testing.T) {
	p := bufpool.NewPagePool(16)
	buf := p.Get()
	buf[0] = 0x01
	p.Put(buf)

	again := p.Get()
	require.Len(t, again, 16)
	require.Equal(t, byte(0xFF), again[0])
}

func TestPagePool_PutWrongSizeDropped(t *testing.T) {
	p := bufpool.NewPagePool(16)
	p.Put(make([]byte, 8))
}
