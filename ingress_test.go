package kernel

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIngress_DrainReturnsAndClearsPending(t *testing.T) {
	in := newIngress()
	var ran []int
	assert.True(t, in.push(func() { ran = append(ran, 1) }))
	assert.True(t, in.push(func() { ran = append(ran, 2) }))

	fns := in.drain()
	assert.Len(t, fns, 2)
	for _, fn := range fns {
		fn()
	}
	assert.Equal(t, []int{1, 2}, ran)

	assert.Nil(t, in.drain())
}

func TestIngress_CloseRejectsFurtherPushes(t *testing.T) {
	in := newIngress()
	in.close()
	assert.False(t, in.push(func() {}))
	assert.Nil(t, in.drain())
}
