package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewDistributedLock_Key(t *testing.T) {
	l := NewDistributedLock(nil, TransactionLockKey("ref-1-1"), time.Second)

	assert.Equal(t, "lock:transaction:ref-1-1", l.Key())
}

func TestNewDistributedLock_UniqueOwners(t *testing.T) {
	a := NewDistributedLock(nil, "k", time.Second)
	b := NewDistributedLock(nil, "k", time.Second)

	assert.NotEqual(t, a.value, b.value)
}

func TestDistributedLock_ReleaseWithoutAcquire(t *testing.T) {
	l := NewDistributedLock(nil, "k", time.Second)

	assert.NoError(t, l.Release(context.Background()))
}

func TestNewStreamProducer_DefaultStream(t *testing.T) {
	assert.Equal(t, TransactionStream, NewStreamProducer(nil, "").Stream())
	assert.Equal(t, "custom", NewStreamProducer(nil, "custom").Stream())
}
