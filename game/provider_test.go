package game

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shrey-Parekh/game-arena/domain"
)

func TestDrawWithReset(t *testing.T) {
	t.Run("passes the exclusion list through", func(t *testing.T) {
		used := []string{"a", "b"}
		var seen []string
		_, err := drawWithReset(&used, func(excludeIDs []string) (string, error) {
			seen = excludeIDs
			return "c", nil
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, seen)
		assert.Equal(t, []string{"a", "b"}, used, "a successful draw leaves the list alone")
	})

	t.Run("exhaustion resets the list and retries once", func(t *testing.T) {
		used := []string{"a", "b"}
		calls := 0
		item, err := drawWithReset(&used, func(excludeIDs []string) (string, error) {
			calls++
			if len(excludeIDs) > 0 {
				return "", domain.ErrContentExhausted
			}
			return "a", nil
		})
		require.NoError(t, err)
		assert.Equal(t, "a", item)
		assert.Equal(t, 2, calls)
		assert.Empty(t, used)
	})

	t.Run("exhaustion on the retry surfaces", func(t *testing.T) {
		used := []string{"a"}
		_, err := drawWithReset(&used, func([]string) (string, error) {
			return "", domain.ErrContentExhausted
		})
		assert.ErrorIs(t, err, domain.ErrContentExhausted)
	})

	t.Run("transport failures are not retried", func(t *testing.T) {
		boom := errors.New("connection refused")
		used := []string{"a"}
		calls := 0
		_, err := drawWithReset(&used, func([]string) (string, error) {
			calls++
			return "", boom
		})
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 1, calls)
		assert.Equal(t, []string{"a"}, used)
	})
}
