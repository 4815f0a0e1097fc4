package application

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-triage/internal/domain"
	"github.com/ahrav/go-triage/internal/testutils"
)

func TestEngine_EvaluateBatch(t *testing.T) {
	engine := newDefaultEngine(t)
	inputs := []domain.Input{
		testutils.StrongCodeInput(),
		testutils.CustomerOverrideInput(),
		testutils.DiversityInput(),
		{},
		testutils.ConfigurationInput(),
	}

	for _, concurrency := range []int{0, 1, 2, 16} {
		results, err := engine.EvaluateBatch(context.Background(), inputs, concurrency)
		require.NoError(t, err)
		require.Len(t, results, len(inputs))

		for i, in := range inputs {
			c, r := engine.Evaluate(context.Background(), in)
			assert.Equal(t, domain.Evaluation{Classification: c, Resolution: r}, results[i],
				"concurrency=%d input=%d", concurrency, i)
		}
	}
}

func TestEngine_EvaluateBatch_Empty(t *testing.T) {
	results, err := newDefaultEngine(t).EvaluateBatch(context.Background(), nil, 4)
	require.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results)
}

func TestEngine_EvaluateBatch_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	inputs := make([]domain.Input, 50)
	results, err := newDefaultEngine(t).EvaluateBatch(ctx, inputs, 2)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, results)
}
