package planerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrorKinds(t *testing.T) {
	var err error = &MissingFieldError{Field: "vpc_availability_zones"}
	require.ErrorIs(t, err, ErrMissingInputField)
	require.Contains(t, err.Error(), "vpc_availability_zones")

	err = &NumericInputError{Name: "comp-memory", Value: "lots"}
	require.ErrorIs(t, err, ErrInvalidNumericInput)
	require.NotErrorIs(t, err, ErrMissingInputField)

	err = fmt.Errorf("planning failed: %w", NewTopologyError("storage", "need %d nodes", 2))
	require.ErrorIs(t, err, ErrInconsistentTopology)

	var topoErr *TopologyError
	require.True(t, errors.As(err, &topoErr))
	require.Equal(t, "storage", topoErr.ClusterType)
	require.Equal(t, "need 2 nodes", topoErr.Reason)
}
