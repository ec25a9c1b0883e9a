package persistence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// 文件存储保存读回往返
func TestJSONFileStoreRoundtrip(t *testing.T) {
	svc := NewJSONFileService(t.TempDir())
	store := svc.NewStore("risk", "cancel", "daily")

	var missing payload
	assert.ErrorIs(t, store.Load(&missing), ErrNotExists)

	in := payload{Name: "rb2510.SHFE", Count: 3}
	require.NoError(t, store.Save(in))

	var out payload
	require.NoError(t, store.Load(&out))
	assert.Equal(t, in, out)
}

// 键里的非法字符被替换，不会逃出存储目录
func TestKeySanitized(t *testing.T) {
	svc := NewJSONFileService(t.TempDir())
	store := svc.NewStore("a/b", "../c", "d e")

	require.NoError(t, store.Save(payload{Name: "x"}))
	var out payload
	require.NoError(t, store.Load(&out))
	assert.Equal(t, "x", out.Name)
}

// 内存实现和文件实现语义一致
func TestMemoryStore(t *testing.T) {
	svc := NewMemoryService()
	store := svc.NewStore("p", "i", "t")

	var missing payload
	assert.ErrorIs(t, store.Load(&missing), ErrNotExists)

	require.NoError(t, store.Save(payload{Count: 7}))

	// 同键取回同一存储
	again := svc.NewStore("p", "i", "t")
	var out payload
	require.NoError(t, again.Load(&out))
	assert.Equal(t, 7, out.Count)
}
