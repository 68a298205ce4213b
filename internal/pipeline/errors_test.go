package pipeline

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/shirayuki/bilisync/internal/bilibili"
	"github.com/shirayuki/bilisync/internal/stream"
)

func TestStageErrWrapsAndUnwraps(t *testing.T) {
	inner := errors.New("boom")
	err := stageErr("My Source", "refresh", inner)

	var se *StageError
	assert.ErrorAs(t, err, &se)
	assert.Equal(t, "My Source", se.Source)
	assert.Equal(t, "refresh", se.Stage)
	assert.ErrorIs(t, err, inner)
	assert.Contains(t, err.Error(), "My Source")
	assert.Contains(t, err.Error(), "refresh")
}

func TestStageErrNilPassthrough(t *testing.T) {
	assert.NoError(t, stageErr("src", "enrich", nil))
}

func TestIsRiskControl(t *testing.T) {
	assert.True(t, isRiskControl(bilibili.ErrRiskControl))
	assert.True(t, isRiskControl(stream.ErrRiskControl))
	assert.True(t, isRiskControl(stageErr("src", "download", bilibili.ErrRiskControl)))
	assert.False(t, isRiskControl(errors.New("some other failure")))
}
