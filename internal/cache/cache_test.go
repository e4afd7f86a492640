package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestKey(t *testing.T) {
	assert.Equal(t, "dashboard-stats", Key(GroupDashboardStats))
	assert.Equal(t, "user-submission:abc:2024-06-01", Key(GroupUserSubmission, "abc", "2024-06-01"))
}

func TestNilClientIsDisabledCache(t *testing.T) {
	var c *Client
	ctx := context.Background()

	got, err := c.Get(ctx, "iuran:active")
	assert.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	assert.NoError(t, c.Delete(ctx, "k"))
	assert.NoError(t, c.InvalidateGroups(ctx, GroupIuran, GroupDashboardStats))
	assert.NoError(t, c.Ping(ctx))
	assert.NoError(t, c.Close())
}
