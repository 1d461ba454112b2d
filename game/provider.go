package game

import (
	"context"
	"errors"

	"github.com/Shrey-Parekh/game-arena/domain"
)

// ContentProvider supplies random prompts/statements/questions, honoring an
// exclusion list of already-used ids. Implementations must distinguish an
// exhausted pool (domain.ErrContentExhausted) from a transport failure.
type ContentProvider interface {
	RandomQuestion(ctx context.Context, questionType, spiceLevel string, excludeIDs []string) (domain.Question, error)
	RandomPromptPair(ctx context.Context, excludeIDs []string) (domain.PromptPair, error)
	RandomStatement(ctx context.Context, categories []string, excludeIDs []string) (domain.Statement, error)
}

// drawWithReset runs one draw against the current exclusion list. If the
// provider reports exhaustion, the room's exclusion list is reset and the
// draw retried once, letting long sessions recycle the pool.
func drawWithReset[T any](usedIDs *[]string, draw func(excludeIDs []string) (T, error)) (T, error) {
	item, err := draw(*usedIDs)
	if errors.Is(err, domain.ErrContentExhausted) {
		*usedIDs = (*usedIDs)[:0]
		return draw(nil)
	}
	return item, err
}
