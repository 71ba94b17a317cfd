package iocli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Проверяем что NewStdio возвращает валидный объект
func TestNewStdio(t *testing.T) {
	stdio := NewStdio(nil, nil)
	assert.NotNil(t, stdio)
}

func TestPrintlnAndPrintf(t *testing.T) {
	var out bytes.Buffer
	stdio := NewStdio(strings.NewReader(""), &out)

	stdio.Println("hello", "world")
	stdio.Printf("test %d %s\n", 1, "abc")
	_, err := stdio.Write([]byte("raw"))
	require.NoError(t, err)

	assert.Equal(t, "hello world\ntest 1 abc\nraw", out.String())
}

// Тест ReadAll: payload приходит через pipe
func TestReadAll(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)

	go func() {
		_, _ = w.Write([]byte(`{"name":"x"}`))
		_ = w.Close()
	}()

	stdio := NewStdio(r, &bytes.Buffer{})
	data, err := stdio.ReadAll()
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"x"}`, string(data))
}

// Вывод в буфер или обычный файл не считается терминалом
func TestIsTerminal(t *testing.T) {
	assert.False(t, NewStdio(nil, &bytes.Buffer{}).IsTerminal())

	f, err := os.Create(filepath.Join(t.TempDir(), "out.txt"))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	assert.False(t, NewStdio(nil, f).IsTerminal())
}
