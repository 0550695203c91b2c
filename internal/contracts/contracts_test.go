package contracts

import (
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessagePublishedTopicMatchesABI(t *testing.T) {
	ev, ok := Core.Events["LogMessagePublished"]
	require.True(t, ok)
	assert.Equal(t, MessagePublishedTopic, ev.ID)
	assert.Equal(t, crypto.Keccak256Hash([]byte("LogMessagePublished(address,uint64,uint32,bytes,uint8)")), ev.ID)
}

func TestMultisigEventSignatures(t *testing.T) {
	assert.Equal(t, crypto.Keccak256Hash([]byte("Submission(uint256)")), SubmissionTopic)
	assert.Equal(t, crypto.Keccak256Hash([]byte("Confirmation(address,uint256)")), ConfirmationTopic)
	assert.Equal(t, crypto.Keccak256Hash([]byte("Execution(uint256)")), ExecutionTopic)
}

func TestVAAMethodsTakeBytes(t *testing.T) {
	for name, parsed := range VAAMethods {
		m, ok := parsed.Methods[name]
		require.True(t, ok, name)
		require.Len(t, m.Inputs, 1, name)
		assert.Equal(t, "bytes", m.Inputs[0].Type.String(), name)
	}
}
