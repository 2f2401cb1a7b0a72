package client

import (
	"bytes"
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrompter_ReadsLinesFromPipe(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()

	_, err = w.WriteString("first secret\r\nsecond")
	require.NoError(t, err)
	require.NoError(t, w.Close())

	var out bytes.Buffer
	p := &Prompter{In: r, Out: &out}

	s, err := p.Secret("Password")
	require.NoError(t, err)
	assert.Equal(t, "first secret", s)

	s, err = p.Secret("Key")
	require.NoError(t, err)
	assert.Equal(t, "second", s)

	_, err = p.Secret("More")
	require.ErrorIs(t, err, io.EOF)

	assert.Equal(t, "Password: Key: More: ", out.String())
}
