package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
)

func TestCheckpointAdvancesHelp(t *testing.T) {
	ch := make(chan *prometheus.Desc, 1)
	CheckpointAdvances.Describe(ch)
	desc := (<-ch).String()
	assert.Contains(t, desc, "ingest_checkpoint_advances_total")
	assert.Contains(t, desc, "checkpoint advances")
	assert.NotContains(t, desc, "checkpoint writes")
}
