package agents

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticDirectoryKeepsRegistrationOrder(t *testing.T) {
	d, err := NewStaticDirectory(
		Definition{ID: "orch", Role: RoleOrchestrator},
		Definition{ID: "writer"},
		Definition{ID: "coder"},
	)
	require.NoError(t, err)

	all, err := d.All(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"orch", "writer", "coder"}, []string{all[0].ID, all[1].ID, all[2].ID})
	assert.Equal(t, RoleSpecialist, all[1].Role, "empty role defaults to specialist")
	assert.True(t, all[0].IsOrchestrator())
}

func TestStaticDirectoryRejectsDuplicates(t *testing.T) {
	_, err := NewStaticDirectory(Definition{ID: "a"}, Definition{ID: "a"})
	assert.Error(t, err)

	_, err = NewStaticDirectory(Definition{})
	assert.Error(t, err)
}

func TestStaticDirectoryGet(t *testing.T) {
	d, err := NewStaticDirectory(Definition{
		ID:           "coder",
		Capabilities: []Capability{{ID: "code", Name: "Coding"}},
	})
	require.NoError(t, err)

	def, err := d.Get(context.Background(), "coder")
	require.NoError(t, err)
	assert.Equal(t, "Coding", def.Capabilities[0].Name)

	// Returned definitions are copies.
	def.Capabilities[0].Name = "changed"
	again, _ := d.Get(context.Background(), "coder")
	assert.Equal(t, "Coding", again.Capabilities[0].Name)

	_, err = d.Get(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrAgentNotFound)
}
