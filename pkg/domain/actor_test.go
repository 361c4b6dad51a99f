package domain

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "ecertify/pkg/domain-errors"
)

// Reference vectors from EIP-55.
var checksummed = []string{
	"0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
	"0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359",
	"0xdbF03B407c01E7cD3CBea99509d93f8DDDC8C6FB",
	"0xD1220A0cf47c7B9Be7A2E6BA89F429762e7b9aDb",
}

func TestParseActorID_Invariants(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseActorID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects missing prefix", func(t *testing.T) {
		_, err := ParseActorID(strings.TrimPrefix(checksummed[0], "0x"))
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects wrong length", func(t *testing.T) {
		_, err := ParseActorID("0x1234")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects non-hex", func(t *testing.T) {
		_, err := ParseActorID("0x" + strings.Repeat("zz", 20))
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects mixed case with bad checksum", func(t *testing.T) {
		bad := "0x5AAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"
		_, err := ParseActorID(bad)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("accepts checksummed, lowercase and uppercase forms", func(t *testing.T) {
		for _, addr := range checksummed {
			body := addr[2:]
			for _, in := range []string{addr, "0x" + strings.ToLower(body), "0x" + strings.ToUpper(body)} {
				id, err := ParseActorID(in)
				require.NoError(t, err, in)
				assert.Equal(t, addr, id.String())
			}
		}
	})
}

func TestActorID_ZeroValue(t *testing.T) {
	assert.True(t, ZeroActor.IsZero())
	assert.Equal(t, "0x0000000000000000000000000000000000000000", ZeroActor.String())

	id := MustActorID(checksummed[0])
	assert.False(t, id.IsZero())
}

func TestActorID_JSON(t *testing.T) {
	type payload struct {
		Actor ActorID `json:"actor"`
	}
	in := payload{Actor: MustActorID(checksummed[1])}

	raw, err := json.Marshal(in)
	require.NoError(t, err)
	assert.JSONEq(t, `{"actor":"`+checksummed[1]+`"}`, string(raw))

	var out payload
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, in, out)

	err = json.Unmarshal([]byte(`{"actor":"nope"}`), &out)
	require.Error(t, err)
}

func TestActorID_SQL(t *testing.T) {
	in := MustActorID(checksummed[2])
	v, err := in.Value()
	require.NoError(t, err)

	var out ActorID
	require.NoError(t, out.Scan(v))
	assert.Equal(t, in, out)

	assert.Error(t, out.Scan("0x00"))
	assert.Error(t, out.Scan([]byte{1, 2, 3}))
}
